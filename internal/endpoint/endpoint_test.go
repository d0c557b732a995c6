package endpoint

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klauern/wikisync/internal/delta"
	"github.com/klauern/wikisync/internal/interwiki"
	"github.com/klauern/wikisync/internal/model"
	"github.com/klauern/wikisync/internal/pagestore"
	"github.com/klauern/wikisync/internal/rpc"
)

func savePages(t *testing.T, store pagestore.Store, pages map[string]string) {
	t.Helper()
	for name, body := range pages {
		_, err := store.Save(context.Background(), name, []byte(body), 0, "")
		require.NoError(t, err)
	}
}

// startRemote serves store over RPC and returns a resolver that knows it as
// configuredName.
func startRemote(t *testing.T, store pagestore.Store, identity model.Identity, configuredName string) *interwiki.Map {
	t.Helper()
	srv, err := rpc.NewServer(rpc.ServerOptions{Identity: identity, Store: store, TagRoot: t.TempDir()})
	require.NoError(t, err)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	m, err := interwiki.Build(interwiki.Source{Entries: map[string]string{configuredName: ts.URL}})
	require.NoError(t, err)
	return m
}

var fastClient = rpc.ClientOptions{Timeout: 5 * time.Second}

func TestLocal_Pages(t *testing.T) {
	ctx := context.Background()
	store := pagestore.NewMemory()
	savePages(t, store, map[string]string{
		"Local/A": "a\n",
		"Local/B": "b\n",
		"Local/":  "prefix page\n",
		"Other":   "o\n",
		"Local/C": "c\n",
	})
	_, err := store.Delete(ctx, "Local/C", 0, "")
	require.NoError(t, err)

	local := NewLocal(store, model.Identity{IWID: "iwid-local", InterwikiName: "Home"}, "Local/", nil)
	pages, err := local.Pages(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []model.SyncPage{
		{Name: "A", LocalRevision: 1, LocalName: "Local/A"},
		{Name: "B", LocalRevision: 1, LocalName: "Local/B"},
	}, pages)
	assert.Equal(t, "Home", local.InterwikiName())
	assert.Equal(t, "iwid-local", local.IWID())

	restricted := NewLocal(store, model.Identity{IWID: "iwid-local"}, "Local/", []string{"B"})
	pages, err = restricted.Pages(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, model.Names(pages))
}

func TestLocal_GroupMembers(t *testing.T) {
	store := pagestore.NewMemory()
	savePages(t, store, map[string]string{
		"SyncGroup":  " * Local/A\n * Elsewhere\n",
		"OtherGroup": " * Local/B\n",
	})
	local := NewLocal(store, model.Identity{IWID: "iwid-local"}, "Local/", nil)

	names, err := local.GroupMembers(context.Background(), []string{"SyncGroup", "OtherGroup"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, names)
}

func TestRemote_PagesWithPrefix(t *testing.T) {
	store := pagestore.NewMemory()
	savePages(t, store, map[string]string{"Sub/Page1": "x\n", "Other": "y\n"})
	resolver := startRemote(t, store, model.Identity{IWID: "iwid-remote", InterwikiName: "Remote"}, "Remote")

	remote, err := NewRemote(context.Background(), resolver, "Remote", RemoteOptions{Prefix: "Sub/", Client: fastClient})
	require.NoError(t, err)

	pages, err := remote.Pages(context.Background(), ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []model.SyncPage{{Name: "Page1", RemoteRevision: 1, RemoteName: "Sub/Page1"}}, pages)
	assert.Equal(t, model.Identity{IWID: "iwid-remote", InterwikiName: "Remote"}, remote.Identity())
}

func TestRemote_NameMismatch(t *testing.T) {
	resolver := startRemote(t, pagestore.NewMemory(), model.Identity{IWID: "iwid-remote", InterwikiName: "RealName"}, "Configured")

	_, err := NewRemote(context.Background(), resolver, "Configured", RemoteOptions{Client: fastClient})
	var mismatch *model.ConfigurationMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "Configured", mismatch.Configured)
	assert.Equal(t, "RealName", mismatch.Reported)
	assert.True(t, model.IsFatal(err))
}

func TestRemote_Anonymous(t *testing.T) {
	resolver := startRemote(t, pagestore.NewMemory(), model.Identity{IWID: "iwid-anon"}, "Anon")

	remote, err := NewRemote(context.Background(), resolver, "Anon", RemoteOptions{Client: fastClient})
	require.NoError(t, err)
	assert.True(t, remote.Identity().IsAnonymous())
	assert.Equal(t, "iwid-anon", remote.Identity().Token())
	assert.Empty(t, remote.InterwikiName())
}

func TestRemote_Unresolvable(t *testing.T) {
	resolver, err := interwiki.Build(interwiki.Source{})
	require.NoError(t, err)

	remote, err := NewRemote(context.Background(), resolver, "Nowhere", RemoteOptions{Client: fastClient})
	var cfgErr *model.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	require.NotNil(t, remote)
	assert.False(t, remote.Valid())

	_, err = remote.Pages(context.Background(), ListOptions{})
	require.ErrorAs(t, err, &cfgErr, "an invalid remote fails fast")
	_, err = remote.Diff(context.Background(), "Page", 0, 0)
	require.ErrorAs(t, err, &cfgErr)
	_, err = remote.ApplyMerge(context.Background(), MergeRequest{Name: "Page"})
	require.ErrorAs(t, err, &cfgErr)
}

func TestRemote_Unsupported(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()
	resolver, err := interwiki.Build(interwiki.Source{Entries: map[string]string{"Old": ts.URL}})
	require.NoError(t, err)

	_, err = NewRemote(context.Background(), resolver, "Old", RemoteOptions{Client: fastClient})
	var unsupported *model.UnsupportedRemoteWikiError
	require.ErrorAs(t, err, &unsupported)
}

func TestRemote_DiffAndMerge(t *testing.T) {
	ctx := context.Background()
	store := pagestore.NewMemory()
	savePages(t, store, map[string]string{"Page": "one\n"})
	resolver := startRemote(t, store, model.Identity{IWID: "iwid-remote", InterwikiName: "Remote"}, "Remote")

	remote, err := NewRemote(ctx, resolver, "Remote", RemoteOptions{Client: fastClient})
	require.NoError(t, err)

	res, err := remote.Diff(ctx, "Page", 0, 0)
	require.NoError(t, err)
	body, err := delta.Apply(nil, res.Diff)
	require.NoError(t, err)
	assert.Equal(t, "one\n", string(body))

	_, err = remote.Diff(ctx, "Missing", 0, 0)
	var fault *model.RemoteFaultError
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, rpc.FaultNotExist, fault.Code)

	diff, err := delta.Make([]byte("one\n"), []byte("one\ntwo\n"))
	require.NoError(t, err)
	caller := model.Identity{IWID: "iwid-local", InterwikiName: "Home"}
	req := MergeRequest{Name: "Page", Diff: diff, LocalRevision: 3, DeltaRemoteRevision: 1, LastRemoteRevision: 1, Caller: caller, CanonicalName: "Page"}

	current, err := remote.ApplyMerge(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 2, current)

	_, err = remote.ApplyMerge(ctx, req)
	var rejected *model.MergeRejectedError
	require.ErrorAs(t, err, &rejected, "replaying against a moved page is rejected")
	assert.False(t, model.IsFatal(err))
}
