// Package tagstore persists the synchronization history of local pages.
//
// Each page has its own tag log at <root>/pages/<quoted name>/synctags,
// guarded by a lock file in the page's cache directory. Readers take a
// shared lock and writers an exclusive one, and every write replaces the
// whole log atomically, so a failed or timed-out write leaves the previous
// log intact.
package tagstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"

	"github.com/klauern/wikisync/internal/logging"
	"github.com/klauern/wikisync/internal/model"
	"github.com/klauern/wikisync/internal/pagename"
)

const (
	// DefaultReadTimeout bounds the wait for a shared lock.
	DefaultReadTimeout = 3 * time.Second
	// DefaultWriteTimeout bounds the wait for an exclusive lock.
	DefaultWriteTimeout = 10 * time.Second

	logFileName   = "synctags"
	lockDirName   = "cache"
	lockFileName  = "__taglock__"
	formatVersion = 1
	retryDelay    = 25 * time.Millisecond
)

type document struct {
	Version int         `json:"version"`
	Tags    []model.Tag `json:"tags"`
}

// Store is the tag log of a single local page.
type Store struct {
	page         string
	path         string
	lockPath     string
	readTimeout  time.Duration
	writeTimeout time.Duration
	logger       *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithReadTimeout sets how long readers wait for the shared lock.
func WithReadTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.readTimeout = d
		}
	}
}

// WithWriteTimeout sets how long writers wait for the exclusive lock.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

// WithLogger sets the logger used for lock diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Open returns the tag store of pageName below root. Nothing is created on
// disk until the first tag is added.
func Open(root, pageName string, opts ...Option) (*Store, error) {
	if root == "" {
		return nil, errors.New("tag store root is required")
	}
	if pageName == "" {
		return nil, errors.New("page name is required")
	}
	pageDir := PageDir(root, pageName)
	s := &Store{
		page:         pageName,
		path:         filepath.Join(pageDir, logFileName),
		lockPath:     LockPath(root, pageName),
		readTimeout:  DefaultReadTimeout,
		writeTimeout: DefaultWriteTimeout,
		logger:       logging.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// PageDir returns the directory holding the data of pageName below root.
func PageDir(root, pageName string) string {
	return filepath.Join(root, "pages", pagename.QuoteFS(pageName))
}

// LockPath returns the lock file guarding the tag log of pageName.
func LockPath(root, pageName string) string {
	return filepath.Join(PageDir(root, pageName), lockDirName, lockFileName)
}

// Path returns the location of the tag log.
func (s *Store) Path() string { return s.path }

// Page returns the local page name this store belongs to.
func (s *Store) Page() string { return s.page }

// Add appends tag to the log and persists it before returning.
func (s *Store) Add(ctx context.Context, tag model.Tag) error {
	if err := tag.Validate(); err != nil {
		return err
	}
	return s.update(ctx, func(tags []model.Tag) []model.Tag {
		return append(tags, tag)
	})
}

// All returns every tag of the page in the order they were added.
func (s *Store) All(ctx context.Context) ([]model.Tag, error) {
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	unlock, err := s.lock(ctx, false)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return s.load()
}

// Clear removes all tags of the page.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return s.update(ctx, func([]model.Tag) []model.Tag { return nil })
}

// Fetch returns the tags recorded against the wiki identified by token.
// An empty direction returns tags of every direction.
func (s *Store) Fetch(ctx context.Context, token string, direction model.Direction) ([]model.Tag, error) {
	tags, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	return model.MatchTags(tags, token, direction), nil
}

func (s *Store) update(ctx context.Context, modify func([]model.Tag) []model.Tag) error {
	unlock, err := s.lock(ctx, true)
	if err != nil {
		return err
	}
	defer unlock()

	tags, err := s.load()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(document{Version: formatVersion, Tags: modify(tags)}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode tag log: %w", err)
	}
	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write tag log %s: %w", s.path, err)
	}
	return nil
}

func (s *Store) load() ([]model.Tag, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read tag log %s: %w", s.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &model.CorruptTagLogError{Path: s.path, Err: err}
	}
	if doc.Version != formatVersion {
		return nil, &model.CorruptTagLogError{Path: s.path, Err: fmt.Errorf("unsupported version %d", doc.Version)}
	}
	for i, tag := range doc.Tags {
		if err := tag.Validate(); err != nil {
			return nil, &model.CorruptTagLogError{Path: s.path, Err: fmt.Errorf("tag %d: %w", i, err)}
		}
	}
	return doc.Tags, nil
}

func (s *Store) lock(ctx context.Context, exclusive bool) (unlock func(), err error) {
	mode, timeout := "read", s.readTimeout
	if exclusive {
		mode, timeout = "write", s.writeTimeout
	}
	if err := os.MkdirAll(filepath.Dir(s.lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create tag lock directory: %w", err)
	}

	lockCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fl := flock.New(s.lockPath)
	var locked bool
	if exclusive {
		locked, err = fl.TryLockContext(lockCtx, retryDelay)
	} else {
		locked, err = fl.TryRLockContext(lockCtx, retryDelay)
	}
	if !locked {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err == nil || errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("tag lock timeout",
				logging.Page(s.page), slog.String("mode", mode), logging.Path(s.lockPath))
			return nil, &model.LockTimeoutError{Page: s.page, Mode: mode, Timeout: timeout}
		}
		return nil, fmt.Errorf("acquire %s lock %s: %w", mode, s.lockPath, err)
	}
	return func() { _ = fl.Unlock() }, nil
}
