package sync

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	stdsync "sync"

	"golang.org/x/sync/errgroup"

	"github.com/klauern/wikisync/internal/endpoint"
	"github.com/klauern/wikisync/internal/interwiki"
	"github.com/klauern/wikisync/internal/logging"
	"github.com/klauern/wikisync/internal/model"
	"github.com/klauern/wikisync/internal/pagestore"
)

// Engine synchronizes the pages of the local wiki with one remote wiki.
// An Engine holds no per-run state and may run several times.
type Engine struct {
	store    pagestore.Store
	home     model.Identity
	resolver endpoint.Resolver
	tagRoot  string
	merger   *Merger
	logger   *slog.Logger
}

// New creates an Engine for the local wiki stored in store and known as
// home. Remote wikis are looked up through resolver and tag logs live under
// tagRoot. A nil logger uses the default logger.
func New(store pagestore.Store, home model.Identity, resolver endpoint.Resolver, tagRoot string, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		store:    store,
		home:     home,
		resolver: resolver,
		tagRoot:  tagRoot,
		merger:   NewMerger(),
		logger:   logger,
	}
}

// run is the state of one synchronization run.
type run struct {
	*Engine
	opts    Options
	matcher *regexp.Regexp
	local   *endpoint.Local
	remote  *endpoint.Remote
	result  *Result
	logger  *slog.Logger

	progressMu stdsync.Mutex
	completed  int
}

// Run performs one synchronization run.
//
// A fatal error (see model.IsFatal) aborts the run and is returned together
// with whatever was classified before the failure. Per-page failures are
// recorded in the result and do not produce an error. If ctx is canceled,
// pages not yet started are left out and ctx.Err() is returned.
func (e *Engine) Run(ctx context.Context, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	r := &run{
		Engine: e,
		opts:   opts,
		result: &Result{
			RemoteWiki: opts.RemoteWiki,
			Direction:  opts.Direction,
			DryRun:     opts.DryRun,
		},
		logger: e.logger.With(logging.Wiki(opts.RemoteWiki), logging.Direction(opts.Direction)),
	}
	timer := logging.StartTimer(r.logger, "sync")

	err := r.execute(ctx)
	if err != nil {
		r.enter(StateAborted)
		r.logger.Warn("sync aborted", logging.Err(err))
	} else {
		r.enter(StateDone)
	}
	timer.Stop(logging.Count(len(r.result.Pages)))
	return r.result, err
}

func (r *run) enter(s State) {
	r.result.State = s
	r.logger.Debug("sync state changed", logging.State(s))
}

func (r *run) execute(ctx context.Context) error {
	r.enter(StateInit)
	if err := r.init(); err != nil {
		return err
	}

	r.enter(StateListing)
	localPages, remotePages, err := r.list(ctx)
	if err != nil {
		return err
	}

	r.enter(StateFiltering)
	pages, err := r.filter(ctx, localPages, remotePages)
	if err != nil {
		return err
	}

	r.enter(StatePartitioning)
	part := model.PartitionPages(pages)
	for _, sp := range part.OnlyLocal {
		r.result.OnlyLocal = append(r.result.OnlyLocal, sp.WithMissingNames(r.opts.LocalPrefix, r.opts.RemotePrefix))
	}
	for _, sp := range part.OnlyRemote {
		r.result.OnlyRemote = append(r.result.OnlyRemote, sp.WithMissingNames(r.opts.LocalPrefix, r.opts.RemotePrefix))
	}
	r.logger.Info("pages classified",
		slog.Int("only_local", len(part.OnlyLocal)),
		slog.Int("only_remote", len(part.OnlyRemote)),
		slog.Int("both", len(part.OnBothSides)),
	)

	r.enter(StateReconciling)
	return r.reconcileAll(ctx, part.OnBothSides)
}

func (r *run) init() error {
	if r.home.IWID == "" || r.home.InterwikiName == "" {
		return &model.ConfigurationError{Field: "wiki.interwiki_name", Message: "the local wiki needs an interwiki name and IWID"}
	}
	if err := r.opts.Validate(); err != nil {
		return err
	}
	if r.opts.RemoteWiki == r.home.InterwikiName || r.opts.RemoteWiki == interwiki.SelfName {
		return &model.ConfigurationError{Field: "sync.remote_wiki", Message: "a wiki cannot synchronize with itself"}
	}
	matcher, err := r.opts.nameMatcher()
	if err != nil {
		return err
	}
	r.matcher = matcher
	return nil
}

// list connects to the remote and fetches both listings concurrently.
func (r *run) list(ctx context.Context) (localPages, remotePages []model.SyncPage, err error) {
	allow := r.opts.allowList()
	r.local = endpoint.NewLocal(r.store, r.home, r.opts.LocalPrefix, allow)
	r.remote, err = endpoint.NewRemote(ctx, r.resolver, r.opts.RemoteWiki, endpoint.RemoteOptions{
		Prefix:   r.opts.RemotePrefix,
		PageList: allow,
		Client:   r.opts.RPC,
		Logger:   r.logger,
	})
	if err != nil {
		return nil, nil, err
	}

	listOpts := endpoint.ListOptions{ExcludeNonWritable: r.opts.ExcludeNonWritable}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		localPages, err = r.local.Pages(gctx, listOpts)
		return err
	})
	g.Go(func() error {
		var err error
		remotePages, err = r.remote.Pages(gctx, listOpts)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	r.logger.Debug("pages listed",
		slog.Int("local", len(localPages)),
		slog.Int("remote", len(remotePages)),
	)
	return localPages, remotePages, nil
}

// filter restricts both listings to the configured pages and merges them.
// A group list takes precedence over the name filters.
func (r *run) filter(ctx context.Context, localPages, remotePages []model.SyncPage) ([]model.SyncPage, error) {
	var keep func(string) bool
	switch {
	case len(r.opts.GroupList) > 0:
		members, err := r.local.GroupMembers(ctx, r.opts.GroupList)
		if err != nil {
			return nil, &model.ConfigurationError{Field: "sync.group_list", Message: "cannot expand page groups", Err: err}
		}
		keep = func(name string) bool { return slices.Contains(members, name) }
	case r.matcher != nil:
		keep = r.matcher.MatchString
	}
	if keep != nil {
		localPages = model.Filter(localPages, keep)
		remotePages = model.Filter(remotePages, keep)
	}
	return model.Merge(localPages, remotePages), nil
}

// reconcileAll reconciles the pages present on both sides with a bounded
// pool of workers. A fatal error stops pages that have not started yet.
func (r *run) reconcileAll(ctx context.Context, pages []model.SyncPage) error {
	if err := r.emit(ProgressEvent{Type: ProgressEventStart, Total: len(pages)}); err != nil {
		return err
	}

	results := make([]PageResult, len(pages))
	done := make([]bool, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)

	for i, sp := range pages {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			if err := r.emit(ProgressEvent{Type: ProgressEventPageStart, Page: sp.Name, Total: len(pages)}); err != nil {
				return err
			}
			pr := r.reconcile(gctx, sp)
			results[i], done[i] = pr, true
			if pr.Action == ActionFailed && model.IsFatal(pr.Error) {
				return pr.Error
			}
			return r.pageDone(pr, len(pages))
		})
	}
	err := g.Wait()

	for i := range pages {
		if done[i] {
			r.result.Pages = append(r.result.Pages, results[i])
		}
	}
	slices.SortFunc(r.result.Pages, func(a, b PageResult) int { return a.Page.Compare(b.Page) })

	if err == nil {
		// The loop may have stopped early on cancellation without any
		// worker reporting it.
		err = ctx.Err()
	}
	if err != nil {
		return err
	}
	return r.emit(ProgressEvent{Type: ProgressEventComplete, Current: len(pages), Total: len(pages)})
}

func (r *run) pageDone(pr PageResult, total int) error {
	r.progressMu.Lock()
	r.completed++
	current := r.completed
	r.progressMu.Unlock()
	return r.emit(ProgressEvent{
		Type:    ProgressEventPageComplete,
		Page:    pr.Page.Name,
		Action:  pr.Action,
		Current: current,
		Total:   total,
		Message: pr.Message,
	})
}

// emit calls the progress callback, one event at a time.
func (r *run) emit(ev ProgressEvent) error {
	if r.opts.Progress == nil {
		return nil
	}
	r.progressMu.Lock()
	defer r.progressMu.Unlock()
	if err := r.opts.Progress(ev); err != nil {
		return fmt.Errorf("sync canceled by progress callback: %w", err)
	}
	return nil
}
