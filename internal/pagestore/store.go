// Package pagestore holds page bodies and their revision history.
//
// Revisions of a page are numbered from 1 and never change once written.
// Revision 0 is used by callers to mean "the current revision". A deletion is
// itself a revision with an empty body.
package pagestore

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when a page has no revisions at all.
	ErrNotFound = errors.New("page not found")

	// ErrRevisionNotFound is returned when a page exists but the requested
	// revision does not.
	ErrRevisionNotFound = errors.New("revision not found")

	// ErrUnchanged is returned by Save when the body equals the current body.
	ErrUnchanged = errors.New("page content unchanged")

	// ErrEditConflict is returned by Save and Delete when the page moved past
	// the revision the caller based its edit on.
	ErrEditConflict = errors.New("edit conflict")
)

// PageInfo describes the current revision of a page.
type PageInfo struct {
	Name     string
	Revision int
	Deleted  bool
}

// ListFilter narrows a page listing.
type ListFilter struct {
	// Prefix keeps only pages whose name starts with it.
	Prefix string

	// IncludeDeleted also lists pages whose current revision is a deletion.
	IncludeDeleted bool

	// Match, if set, must return true for a page to be listed.
	Match func(name string) bool
}

func (f ListFilter) keep(info PageInfo) bool {
	if info.Deleted && !f.IncludeDeleted {
		return false
	}
	if !strings.HasPrefix(info.Name, f.Prefix) {
		return false
	}
	return f.Match == nil || f.Match(info.Name)
}

// Store is the page content collaborator used by the local wiki endpoint and
// the RPC server.
type Store interface {
	// RawBody returns the body of a page at rev, or at its current revision
	// when rev is 0.
	RawBody(ctx context.Context, name string, rev int) ([]byte, error)

	// Lines returns the body split into lines without line terminators.
	Lines(ctx context.Context, name string, rev int) ([]string, error)

	// RealRevision returns the current revision number of a page.
	RealRevision(ctx context.Context, name string) (int, error)

	// Exists reports whether a page has revisions and is not deleted.
	Exists(ctx context.Context, name string) (bool, error)

	// List returns the current revision of every page that passes filter,
	// sorted by name.
	List(ctx context.Context, filter ListFilter) ([]PageInfo, error)

	// Save stores body as a new revision. expectedRev must equal the current
	// revision (0 for a new page). It returns the new revision number, or the
	// current one together with ErrUnchanged.
	Save(ctx context.Context, name string, body []byte, expectedRev int, comment string) (int, error)

	// Delete records a deletion revision.
	Delete(ctx context.Context, name string, expectedRev int, comment string) (int, error)

	Close() error
}

// SplitLines splits a body into lines. A trailing newline does not produce an
// empty last line.
func SplitLines(body []byte) []string {
	if len(body) == 0 {
		return nil
	}
	text := strings.ReplaceAll(string(body), "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	return strings.Split(text, "\n")
}

// JoinLines is the inverse of SplitLines for bodies that end in a newline.
func JoinLines(lines []string) []byte {
	if len(lines) == 0 {
		return nil
	}
	return []byte(strings.Join(lines, "\n") + "\n")
}
