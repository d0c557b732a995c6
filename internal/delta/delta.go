// Package delta encodes the difference between two revisions of a page body as
// a compact, reversible binary payload that travels over the RPC transport.
//
// A delta is a go-diff delta string compressed with zlib. Applying it requires
// the exact base text it was computed from.
package delta

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/klauspost/compress/zlib"
	"github.com/sergi/go-diff/diffmatchpatch"
)

var (
	// ErrNotText is returned when a body or a decoded delta is not valid UTF-8.
	ErrNotText = errors.New("delta: content is not valid UTF-8 text")

	// ErrBaseMismatch is returned when a delta is applied to a base it was
	// not computed from.
	ErrBaseMismatch = errors.New("delta: base text does not match delta")
)

// maxDecoded bounds the size of a decompressed delta.
const maxDecoded = 64 << 20

func newDMP() *diffmatchpatch.DiffMatchPatch {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	return dmp
}

// Make returns the delta that turns base into target.
func Make(base, target []byte) ([]byte, error) {
	if !utf8.Valid(base) || !utf8.Valid(target) {
		return nil, ErrNotText
	}
	dmp := newDMP()
	diffs := dmp.DiffMain(string(base), string(target), true)
	diffs = dmp.DiffCleanupEfficiency(diffs)

	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("create compressor: %w", err)
	}
	if _, err := io.WriteString(zw, dmp.DiffToDelta(diffs)); err != nil {
		return nil, fmt.Errorf("compress delta: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress delta: %w", err)
	}
	return buf.Bytes(), nil
}

// Apply patches base with a delta produced by Make and returns the target.
func Apply(base, delta []byte) ([]byte, error) {
	if !utf8.Valid(base) {
		return nil, ErrNotText
	}
	encoded, err := decompress(delta)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(encoded) {
		return nil, ErrNotText
	}

	dmp := newDMP()
	diffs, err := dmp.DiffFromDelta(string(base), string(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBaseMismatch, err)
	}
	return []byte(dmp.DiffText2(diffs)), nil
}

func decompress(delta []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(delta))
	if err != nil {
		return nil, fmt.Errorf("open delta: %w", err)
	}
	defer zr.Close()

	encoded, err := io.ReadAll(io.LimitReader(zr, maxDecoded+1))
	if err != nil {
		return nil, fmt.Errorf("decompress delta: %w", err)
	}
	if len(encoded) > maxDecoded {
		return nil, fmt.Errorf("decompress delta: payload exceeds %d bytes", maxDecoded)
	}
	return encoded, nil
}
