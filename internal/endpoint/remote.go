package endpoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/klauern/wikisync/internal/logging"
	"github.com/klauern/wikisync/internal/model"
	"github.com/klauern/wikisync/internal/pagename"
	"github.com/klauern/wikisync/internal/rpc"
)

// RemoteOptions configures NewRemote.
type RemoteOptions struct {
	// Prefix is the name prefix of synchronized pages on the remote wiki.
	Prefix string
	// PageList restricts the listing to these canonical names when non-nil.
	PageList []string
	Client   rpc.ClientOptions
	Logger   *slog.Logger
}

// Remote is a wiki reached over RPC.
type Remote struct {
	name     string
	prefix   string
	pageList []string
	client   *rpc.Client
	identity model.Identity
	logger   *slog.Logger

	// invalid is set when the remote could not be resolved; every call
	// returns it without touching the network.
	invalid error
}

// NewRemote resolves name through resolver, connects and performs the
// identity handshake.
//
// If name cannot be resolved the returned Remote is marked invalid and the
// error is a *model.ConfigurationError. Handshake failures return
// *model.UnsupportedRemoteWikiError, *model.ConfigurationMismatchError or
// *model.RemoteUnavailableError and no Remote.
func NewRemote(ctx context.Context, resolver Resolver, name string, opts RemoteOptions) (*Remote, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	r := &Remote{
		name:     name,
		prefix:   opts.Prefix,
		pageList: opts.PageList,
		logger:   logger.With(logging.Wiki(name)),
	}

	_, baseURL, ok := resolver.Resolve(name)
	if !ok {
		r.invalid = &model.ConfigurationError{Field: "remote_wiki", Message: fmt.Sprintf("unknown interwiki name %q", name)}
		return r, r.invalid
	}

	client, err := rpc.NewClient(name, baseURL, opts.Client)
	if err != nil {
		r.invalid = &model.ConfigurationError{Field: "remote_wiki", Message: "invalid remote wiki url", Err: err}
		return r, r.invalid
	}
	r.client = client

	support, err := client.Handshake(ctx)
	if err != nil {
		return nil, err
	}
	if !support.Supported {
		return nil, &model.UnsupportedRemoteWikiError{Wiki: name, Reason: support.Reason}
	}
	reported := support.Identity.InterwikiName
	if reported != "" && reported != name {
		return nil, &model.ConfigurationMismatchError{Configured: name, Reported: reported}
	}

	// An anonymous remote is known by its IWID alone. A named one is
	// recorded under the name we configured, which the check above made
	// equal to the reported one.
	r.identity = model.Identity{IWID: support.Identity.IWID}
	if reported != "" {
		r.identity.InterwikiName = name
	}
	r.logger.Debug("remote handshake complete", slog.String("iwid", r.identity.IWID), slog.Bool("anonymous", r.identity.IsAnonymous()))
	return r, nil
}

// Valid reports whether the remote was resolved.
func (r *Remote) Valid() bool { return r.invalid == nil }

// InterwikiName implements Endpoint. It is empty for an anonymous remote.
func (r *Remote) InterwikiName() string { return r.identity.InterwikiName }

// IWID implements Endpoint.
func (r *Remote) IWID() string { return r.identity.IWID }

// Identity returns the identity established by the handshake.
func (r *Remote) Identity() model.Identity { return r.identity }

// Name returns the interwiki name the remote was configured under.
func (r *Remote) Name() string { return r.name }

// Prefix returns the configured remote name prefix.
func (r *Remote) Prefix() string { return r.prefix }

// Pages implements Endpoint with a single listPages call.
func (r *Remote) Pages(ctx context.Context, opts ListOptions) ([]model.SyncPage, error) {
	if r.invalid != nil {
		return nil, r.invalid
	}
	entries, err := r.client.ListPages(ctx, rpc.ListOptions{
		IncludeRevision:    true,
		IncludeDeleted:     true,
		ExcludeNonWritable: opts.ExcludeNonWritable,
		Prefix:             r.prefix,
		ExplicitList:       r.pageList,
	})
	if err != nil {
		return nil, r.wrap("list pages", "", err)
	}

	pages := make([]model.SyncPage, 0, len(entries))
	for _, e := range entries {
		canonical, ok := pagename.Normalize(e.Name, r.prefix)
		if !ok || canonical == "" || e.Revision <= 0 || !allowed(r.pageList, canonical) {
			continue
		}
		pages = append(pages, model.SyncPage{
			Name:           canonical,
			RemoteRevision: e.Revision,
			RemoteName:     e.Name,
			RemoteDeleted:  e.Deleted,
		})
	}
	return pages, nil
}

// Diff implements Merger.
func (r *Remote) Diff(ctx context.Context, name string, fromRevision, toRevision int) (rpc.DiffResult, error) {
	if r.invalid != nil {
		return rpc.DiffResult{}, r.invalid
	}
	res, err := r.client.GetDiff(ctx, rpc.DiffParams{Name: name, FromRevision: fromRevision, ToRevision: toRevision})
	if err != nil {
		return rpc.DiffResult{}, r.wrap("get diff", name, err)
	}
	return res, nil
}

// ApplyMerge implements Merger. It returns the remote's new current revision.
// A stale base is reported as *model.MergeRejectedError.
func (r *Remote) ApplyMerge(ctx context.Context, req MergeRequest) (int, error) {
	if r.invalid != nil {
		return 0, r.invalid
	}
	res, err := r.client.MergeDiff(ctx, rpc.MergeParams{
		Name:                req.Name,
		Diff:                req.Diff,
		LocalRevision:       req.LocalRevision,
		DeltaRemoteRevision: req.DeltaRemoteRevision,
		LastRemoteRevision:  req.LastRemoteRevision,
		InterwikiName:       req.Caller.Token(),
		CanonicalName:       req.CanonicalName,
	})
	var fault *rpc.Fault
	if errors.As(err, &fault) && (fault.Code == rpc.FaultLastRevInvalid || fault.Code == rpc.FaultFromRevInvalid) {
		return 0, &model.MergeRejectedError{Page: req.Name, Code: fault.Code, Message: fault.Message}
	}
	if err != nil {
		return 0, r.wrap("merge diff", req.Name, err)
	}
	return res.Current, nil
}

// wrap turns RPC errors into the model error taxonomy. Transport failures
// are already *model.RemoteUnavailableError and pass through.
func (r *Remote) wrap(op, page string, err error) error {
	var fault *rpc.Fault
	if errors.As(err, &fault) {
		return &model.RemoteFaultError{Page: page, Code: fault.Code, Message: fault.Message}
	}
	var unavailable *model.RemoteUnavailableError
	if errors.As(err, &unavailable) {
		return err
	}
	return fmt.Errorf("%s on remote wiki %q: %w", op, r.name, err)
}

var (
	_ Endpoint = (*Local)(nil)
	_ Merger   = (*Remote)(nil)
)
