package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klauern/wikisync/internal/delta"
	"github.com/klauern/wikisync/internal/model"
	"github.com/klauern/wikisync/internal/pagestore"
	"github.com/klauern/wikisync/internal/tagstore"
)

type fixture struct {
	store   *pagestore.Memory
	tagRoot string
	server  *httptest.Server
	client  *Client
}

func newFixture(t *testing.T, identity model.Identity) *fixture {
	t.Helper()
	f := &fixture{store: pagestore.NewMemory(), tagRoot: t.TempDir()}
	srv, err := NewServer(ServerOptions{
		Identity: identity,
		Store:    f.store,
		TagRoot:  f.tagRoot,
		ReadOnly: func(name string) bool { return strings.HasPrefix(name, "System") },
	})
	require.NoError(t, err)
	f.server = httptest.NewServer(srv)
	t.Cleanup(f.server.Close)

	f.client, err = NewClient("Remote", f.server.URL, ClientOptions{Timeout: 5 * time.Second})
	require.NoError(t, err)
	return f
}

func (f *fixture) save(t *testing.T, name, body string) int {
	t.Helper()
	current, err := f.store.RealRevision(context.Background(), name)
	if err != nil {
		current = 0
	}
	rev, err := f.store.Save(context.Background(), name, []byte(body), current, "")
	require.NoError(t, err)
	return rev
}

func TestHandshake_Supported(t *testing.T) {
	f := newFixture(t, model.Identity{IWID: "iwid-remote", InterwikiName: "Remote"})

	support, err := f.client.Handshake(context.Background())
	require.NoError(t, err)
	assert.True(t, support.Supported)
	assert.Equal(t, "Remote", support.Identity.InterwikiName)
	assert.Equal(t, "iwid-remote", support.Identity.IWID)
	assert.Equal(t, ProtocolVersion, support.Identity.ProtocolVersion)
}

func TestHandshake_Unsupported(t *testing.T) {
	tests := map[string]http.HandlerFunc{
		"no rpc endpoint": http.NotFound,
		"not json": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>hello</html>"))
		},
		"method not found": func(w http.ResponseWriter, r *http.Request) {
			var req request
			_ = json.NewDecoder(r.Body).Decode(&req)
			_ = json.NewEncoder(w).Encode(response{JSONRPC: "2.0", ID: req.ID, Error: &wireError{Code: codeMethodNotFound, Message: "no"}})
		},
		"old protocol": func(w http.ResponseWriter, r *http.Request) {
			var req request
			_ = json.NewDecoder(r.Body).Decode(&req)
			result, _ := json.Marshal(IdentityResult{IWID: "x", ProtocolVersion: 0})
			_ = json.NewEncoder(w).Encode(response{JSONRPC: "2.0", ID: req.ID, Result: result})
		},
	}
	for name, handler := range tests {
		t.Run(name, func(t *testing.T) {
			ts := httptest.NewServer(handler)
			defer ts.Close()
			client, err := NewClient("Remote", ts.URL, ClientOptions{Timeout: time.Second})
			require.NoError(t, err)

			support, err := client.Handshake(context.Background())
			require.NoError(t, err)
			assert.False(t, support.Supported)
			assert.NotEmpty(t, support.Reason)
		})
	}
}

func TestHandshake_Unavailable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	client, err := NewClient("Remote", url, ClientOptions{Timeout: time.Second})
	require.NoError(t, err)
	_, err = client.Handshake(context.Background())
	var unavailable *model.RemoteUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "Remote", unavailable.Wiki)
	assert.True(t, model.IsFatal(err))
}

func TestCall_GatewayErrorIsUnavailable(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	client, err := NewClient("Remote", ts.URL, ClientOptions{Timeout: time.Second})
	require.NoError(t, err)
	_, err = client.ListPages(context.Background(), ListOptions{})
	var unavailable *model.RemoteUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, MethodListPages, unavailable.Operation)
	assert.Equal(t, int32(1), calls.Load(), "calls are not retried by default")
}

func TestListPages(t *testing.T) {
	f := newFixture(t, model.Identity{IWID: "iwid-remote"})
	ctx := context.Background()
	f.save(t, "Sub/A", "a\n")
	f.save(t, "Sub/B", "b\n")
	f.save(t, "Sub/B", "b2\n")
	f.save(t, "Other", "o\n")
	f.save(t, "SystemPage", "s\n")
	f.save(t, "Sub/Gone", "g\n")
	_, err := f.store.Delete(ctx, "Sub/Gone", 0, "")
	require.NoError(t, err)

	entries, err := f.client.ListPages(ctx, ListOptions{IncludeRevision: true, Prefix: "Sub/"})
	require.NoError(t, err)
	assert.Equal(t, []PageEntry{{Name: "Sub/A", Revision: 1}, {Name: "Sub/B", Revision: 2}}, entries)

	entries, err = f.client.ListPages(ctx, ListOptions{IncludeRevision: true, IncludeDeleted: true, Prefix: "Sub/", ExplicitList: []string{"B", "Gone"}})
	require.NoError(t, err)
	assert.Equal(t, []PageEntry{{Name: "Sub/B", Revision: 2}, {Name: "Sub/Gone", Revision: 2, Deleted: true}}, entries)

	entries, err = f.client.ListPages(ctx, ListOptions{ExcludeNonWritable: true})
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotEqual(t, "SystemPage", e.Name)
		assert.Zero(t, e.Revision, "revisions are only sent when requested")
	}
}

func TestGetDiff(t *testing.T) {
	f := newFixture(t, model.Identity{IWID: "iwid-remote"})
	ctx := context.Background()
	f.save(t, "Page", "first\n")
	f.save(t, "Page", "first\nGrüße ☃\n")

	res, err := f.client.GetDiff(ctx, DiffParams{Name: "Page", FromRevision: 0, ToRevision: 0})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 2, res.Current)
	body, err := delta.Apply(nil, res.Diff)
	require.NoError(t, err)
	assert.Equal(t, "first\nGrüße ☃\n", string(body), "binary diffs survive the transport")

	res, err = f.client.GetDiff(ctx, DiffParams{Name: "Page", FromRevision: 1, ToRevision: 2})
	require.NoError(t, err)
	body, err = delta.Apply([]byte("first\n"), res.Diff)
	require.NoError(t, err)
	assert.Equal(t, "first\nGrüße ☃\n", string(body))

	res, err = f.client.GetDiff(ctx, DiffParams{Name: "Page", FromRevision: 2})
	require.NoError(t, err)
	assert.Equal(t, StatusAlreadyCurrent, res.Status)
	assert.Empty(t, res.Diff)
}

func TestGetDiff_Faults(t *testing.T) {
	f := newFixture(t, model.Identity{IWID: "iwid-remote"})
	f.save(t, "Page", "x\n")

	tests := map[string]struct {
		params DiffParams
		code   string
	}{
		"missing page": {params: DiffParams{Name: "Nope"}, code: FaultNotExist},
		"bad from":     {params: DiffParams{Name: "Page", FromRevision: 5}, code: FaultFromRevInvalid},
		"bad to":       {params: DiffParams{Name: "Page", ToRevision: 9}, code: FaultToRevInvalid},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := f.client.GetDiff(context.Background(), tt.params)
			var fault *Fault
			require.ErrorAs(t, err, &fault)
			assert.Equal(t, tt.code, fault.Code)
			assert.False(t, model.IsFatal(err))
		})
	}
}

func TestGetDiff_ReportsConflict(t *testing.T) {
	f := newFixture(t, model.Identity{IWID: "iwid-remote"})
	f.save(t, "Page", model.ConflictMarkerStart+"\na\n"+model.ConflictMarkerMiddle+"\nb\n"+model.ConflictMarkerEnd+"\n")

	res, err := f.client.GetDiff(context.Background(), DiffParams{Name: "Page"})
	require.NoError(t, err)
	assert.True(t, res.Conflict)
}

func TestMergeDiff(t *testing.T) {
	f := newFixture(t, model.Identity{IWID: "iwid-remote", InterwikiName: "Remote"})
	ctx := context.Background()
	f.save(t, "Sub/Page", "base\n")

	diff, err := delta.Make([]byte("base\n"), []byte("base\nmerged\n"))
	require.NoError(t, err)
	caller := model.Identity{IWID: "iwid-local", InterwikiName: "Local"}

	res, err := f.client.MergeDiff(ctx, MergeParams{
		Name:                "Sub/Page",
		Diff:                diff,
		LocalRevision:       7,
		DeltaRemoteRevision: 1,
		LastRemoteRevision:  1,
		InterwikiName:       caller.Token(),
		CanonicalName:       "Page",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 2, res.Current)

	body, err := f.store.RawBody(ctx, "Sub/Page", 0)
	require.NoError(t, err)
	assert.Equal(t, "base\nmerged\n", string(body))

	tags, err := tagstore.Open(f.tagRoot, "Sub/Page")
	require.NoError(t, err)
	recorded, err := tags.Fetch(ctx, caller.Token(), model.DirectionBoth)
	require.NoError(t, err)
	require.Len(t, recorded, 1)
	assert.Equal(t, 7, recorded[0].RemoteRevision)
	assert.Equal(t, 2, recorded[0].LocalRevision)
	assert.Equal(t, "Page", recorded[0].CanonicalName)
}

func TestMergeDiff_Faults(t *testing.T) {
	f := newFixture(t, model.Identity{IWID: "iwid-remote"})
	ctx := context.Background()
	f.save(t, "Page", "one\n")
	f.save(t, "Page", "two\n")
	f.save(t, "SystemPage", "sys\n")

	diff, err := delta.Make([]byte("a much longer base text\n"), []byte("a much longer base text, edited\n"))
	require.NoError(t, err)

	tests := map[string]struct {
		params MergeParams
		code   string
	}{
		"stale base": {
			params: MergeParams{Name: "Page", Diff: diff, DeltaRemoteRevision: 1, LastRemoteRevision: 1},
			code:   FaultLastRevInvalid,
		},
		"read only": {
			params: MergeParams{Name: "SystemPage", Diff: diff, DeltaRemoteRevision: 1, LastRemoteRevision: 1},
			code:   FaultNotAllowed,
		},
		"missing page without diff": {
			params: MergeParams{Name: "Nope"},
			code:   FaultNotExist,
		},
		"diff against wrong base": {
			params: MergeParams{Name: "Page", Diff: diff, DeltaRemoteRevision: 2, LastRemoteRevision: 2},
			code:   FaultInvalidDiff,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			tt.params.InterwikiName = "iwid-local"
			tt.params.CanonicalName = tt.params.Name
			_, err := f.client.MergeDiff(ctx, tt.params)
			var fault *Fault
			require.ErrorAs(t, err, &fault)
			assert.Equal(t, tt.code, fault.Code)
		})
	}

	rev, err := f.store.RealRevision(ctx, "Page")
	require.NoError(t, err)
	assert.Equal(t, 2, rev, "rejected merges never write")
}

func TestServer_UnknownMethod(t *testing.T) {
	f := newFixture(t, model.Identity{IWID: "iwid-remote"})
	err := f.client.call(context.Background(), "wikisync.fly", struct{}{}, nil)
	var notFound *MethodNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestServer_InvalidParams(t *testing.T) {
	f := newFixture(t, model.Identity{IWID: "iwid-remote"})
	err := f.client.call(context.Background(), MethodGetDiff, []int{1, 2}, nil)
	var fault *Fault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, FaultInternal, fault.Code)
	assert.Contains(t, fault.Message, "invalid params")
}

func TestNewClient_RejectsRelativeURL(t *testing.T) {
	_, err := NewClient("Remote", "/just/a/path", ClientOptions{})
	assert.Error(t, err)
}
