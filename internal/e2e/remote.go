package e2e

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/klauern/wikisync/internal/model"
	"github.com/klauern/wikisync/internal/pagestore"
	"github.com/klauern/wikisync/internal/rpc"
	"github.com/klauern/wikisync/internal/tagstore"
)

// RemoteWiki is a wiki with its own SQLite page database, served over RPC.
type RemoteWiki struct {
	t        *testing.T
	Identity model.Identity
	Store    *pagestore.SQLite
	TagRoot  string
	Server   *httptest.Server
}

// RemoteOption customizes a RemoteWiki.
type RemoteOption func(*rpc.ServerOptions)

// WithReadOnly marks pages remote wikis may not write.
func WithReadOnly(pages ...string) RemoteOption {
	return func(o *rpc.ServerOptions) {
		o.ReadOnly = func(name string) bool {
			for _, p := range pages {
				if p == name {
					return true
				}
			}
			return false
		}
	}
}

// NewRemoteWiki starts a remote wiki called name. It is shut down when the
// test completes.
func NewRemoteWiki(t *testing.T, name string, opts ...RemoteOption) *RemoteWiki {
	t.Helper()
	dir := t.TempDir()

	store, err := pagestore.OpenSQLite(context.Background(), filepath.Join(dir, "pages.db"), 0)
	if err != nil {
		t.Fatalf("open remote store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	w := &RemoteWiki{
		t:        t,
		Identity: model.Identity{IWID: "iwid-" + name, InterwikiName: name},
		Store:    store,
		TagRoot:  dir,
	}
	serverOpts := rpc.ServerOptions{Identity: w.Identity, Store: store, TagRoot: dir}
	for _, opt := range opts {
		opt(&serverOpts)
	}
	srv, err := rpc.NewServer(serverOpts)
	if err != nil {
		t.Fatalf("create rpc server: %v", err)
	}
	w.Server = httptest.NewServer(srv)
	t.Cleanup(w.Server.Close)
	return w
}

// URL returns the base URL of the wiki.
func (w *RemoteWiki) URL() string {
	return w.Server.URL
}

// Entry returns the Name=URL interwiki entry for "wikisync init --remote".
func (w *RemoteWiki) Entry() string {
	return w.Identity.InterwikiName + "=" + w.URL()
}

// Save stores body as the next revision of page and returns the revision.
func (w *RemoteWiki) Save(page, body string) int {
	w.t.Helper()
	ctx := context.Background()
	current, err := w.Store.RealRevision(ctx, page)
	if err != nil && !errors.Is(err, pagestore.ErrNotFound) {
		w.t.Fatalf("revision of %s: %v", page, err)
	}
	rev, err := w.Store.Save(ctx, page, []byte(body), current, "")
	if err != nil {
		w.t.Fatalf("save %s: %v", page, err)
	}
	return rev
}

// Delete records a deletion of page.
func (w *RemoteWiki) Delete(page string) {
	w.t.Helper()
	if _, err := w.Store.Delete(context.Background(), page, 0, ""); err != nil {
		w.t.Fatalf("delete %s: %v", page, err)
	}
}

// Body returns the current body of page.
func (w *RemoteWiki) Body(page string) string {
	w.t.Helper()
	body, err := w.Store.RawBody(context.Background(), page, 0)
	if err != nil {
		w.t.Fatalf("read %s: %v", page, err)
	}
	return string(body)
}

// Revision returns the current revision of page, 0 if it does not exist.
func (w *RemoteWiki) Revision(page string) int {
	w.t.Helper()
	rev, err := w.Store.RealRevision(context.Background(), page)
	if errors.Is(err, pagestore.ErrNotFound) {
		return 0
	}
	if err != nil {
		w.t.Fatalf("revision of %s: %v", page, err)
	}
	return rev
}

// Tags returns the tags the wiki recorded for page.
func (w *RemoteWiki) Tags(page string) []model.Tag {
	w.t.Helper()
	store, err := tagstore.Open(w.TagRoot, page)
	if err != nil {
		w.t.Fatalf("open tags of %s: %v", page, err)
	}
	tags, err := store.All(context.Background())
	if err != nil {
		w.t.Fatalf("read tags of %s: %v", page, err)
	}
	return tags
}
