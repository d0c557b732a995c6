// Package endpoint gives the sync engine a uniform view of the two wikis
// taking part in a run: the local wiki, read from its page store, and a
// remote wiki reached over RPC.
package endpoint

import (
	"context"
	"slices"

	"github.com/klauern/wikisync/internal/model"
	"github.com/klauern/wikisync/internal/rpc"
)

// ListOptions tune a page listing.
type ListOptions struct {
	// ExcludeNonWritable drops pages the listing wiki will not let us write.
	ExcludeNonWritable bool
}

// Endpoint is the capability every wiki offers.
type Endpoint interface {
	// Pages lists the wiki's pages as SyncPages keyed by canonical name.
	Pages(ctx context.Context, opts ListOptions) ([]model.SyncPage, error)
	InterwikiName() string
	IWID() string
}

// Merger is the extra capability of wikis that accept diffs. Callers check
// for it with a type assertion.
type Merger interface {
	Endpoint
	Diff(ctx context.Context, name string, fromRevision, toRevision int) (rpc.DiffResult, error)
	ApplyMerge(ctx context.Context, req MergeRequest) (int, error)
}

// MergeRequest asks a remote wiki to apply a diff to its copy of a page.
type MergeRequest struct {
	// Name is the concrete page name on the remote wiki.
	Name string
	Diff []byte
	// LocalRevision is the local revision the merged content corresponds to.
	LocalRevision int
	// DeltaRemoteRevision is the remote revision Diff was computed against.
	DeltaRemoteRevision int
	// LastRemoteRevision is the remote revision the caller last saw.
	LastRemoteRevision int
	// Caller is the identity of the wiki sending the diff.
	Caller        model.Identity
	CanonicalName string
}

// Resolver maps an interwiki name to a base URL.
type Resolver interface {
	Resolve(name string) (tag, baseURL string, ok bool)
}

// allowed reports whether canonical is allowed by list. A nil list allows
// every name.
func allowed(list []string, canonical string) bool {
	if list == nil {
		return true
	}
	return slices.Contains(list, canonical)
}
