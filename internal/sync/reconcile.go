package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/klauern/wikisync/internal/delta"
	"github.com/klauern/wikisync/internal/endpoint"
	"github.com/klauern/wikisync/internal/logging"
	"github.com/klauern/wikisync/internal/model"
	"github.com/klauern/wikisync/internal/pagestore"
	"github.com/klauern/wikisync/internal/tagstore"
)

// upToDate applies the skip rules: a pull is needed only when the remote
// moved past the tag, a push only when the local page did.
func upToDate(direction model.Direction, last model.Tag, sp model.SyncPage) bool {
	remoteSeen := last.RemoteRevision == sp.RemoteRevision
	localSeen := last.LocalRevision == sp.LocalRevision
	switch direction {
	case model.DirectionDown:
		return remoteSeen
	case model.DirectionUp:
		return localSeen
	default:
		return remoteSeen && localSeen
	}
}

// pageState is everything a page merge works from.
type pageState struct {
	base, remote, local []byte
	// remoteRev is the remote revision remote was read at.
	remoteRev int
}

// reconcile brings one page up to date. It never returns an error; the
// outcome, including fatal errors, is carried by the PageResult.
func (r *run) reconcile(ctx context.Context, sp model.SyncPage) PageResult {
	logger := r.logger.With(logging.Page(sp.Name))
	pr := PageResult{Page: sp}

	// A started page runs to the end so the tag log matches what was written.
	ctx = context.WithoutCancel(ctx)

	if sp.RemoteDeleted {
		return r.skip(logger, pr, "deleted on remote wiki")
	}

	tags, err := tagstore.Open(r.tagRoot, sp.LocalName,
		tagstore.WithReadTimeout(r.opts.TagReadTimeout),
		tagstore.WithWriteTimeout(r.opts.TagWriteTimeout),
		tagstore.WithLogger(logger),
	)
	if err != nil {
		return r.fail(logger, pr, err)
	}
	var tagDirection model.Direction
	if r.opts.Direction == model.DirectionBoth {
		tagDirection = model.DirectionBoth
	}
	matching, err := tags.Fetch(ctx, r.remote.Identity().Token(), tagDirection)
	if err != nil {
		return r.fail(logger, pr, err)
	}
	last, hasTag := model.NewestTag(matching)
	if hasTag && upToDate(r.opts.Direction, last, sp) {
		return r.skip(logger, pr, "already current")
	}

	if r.opts.DryRun {
		pr.Action = ActionPending
		pr.Message = fmt.Sprintf("would reconcile (%s)", r.opts.Direction)
		return pr
	}

	state, err := r.load(ctx, sp, last, hasTag)
	if err != nil {
		return r.fail(logger, pr, err)
	}
	merged := r.merger.ThreeWayMerge(sp.Name, string(state.base), string(state.remote), string(state.local))
	content := []byte(merged.Content)
	conflicted := merged.HasConflictMarkers() || model.HasConflictMarkers(merged.Content)

	localRev, remoteRev := sp.LocalRevision, state.remoteRev
	direction := r.opts.Direction

	if direction.Pulls() && !bytes.Equal(content, state.local) {
		localRev, err = r.saveLocal(ctx, sp, content)
		if err != nil {
			return r.fail(logger, pr, err)
		}
	}

	if direction.Pushes() {
		switch {
		case conflicted && direction == model.DirectionUp:
			return r.fail(logger, pr, &model.MergeConflictError{Page: sp.Name, Conflicts: max(len(merged.Conflicts), 1)})
		case conflicted:
			// The conflict markers are now in the local page. The
			// resolved page is pushed by a later run.
		case !bytes.Equal(content, state.remote):
			remoteRev, err = r.push(ctx, sp, state, content, localRev)
			if err != nil {
				return r.fail(logger, pr, err)
			}
		}
	}

	tag, err := model.NewTag(r.remote.Identity().Token(), remoteRev, localRev, direction, sp.Name)
	if err == nil {
		err = tags.Add(ctx, tag)
	}
	if err != nil {
		return r.fail(logger, pr, fmt.Errorf("record sync tag: %w", err))
	}

	pr.LocalRevision, pr.RemoteRevision = localRev, remoteRev
	if conflicted {
		pr.Action = ActionConflict
		pr.Message = fmt.Sprintf("%d conflict(s) written to local revision %d", max(len(merged.Conflicts), 1), localRev)
		logger.Warn("page merged with conflicts", slog.Int("local_rev", localRev))
		return pr
	}
	pr.Action = ActionReconciled
	pr.Message = fmt.Sprintf("local revision %d, remote revision %d", localRev, remoteRev)
	logger.Info("page reconciled", slog.Int("local_rev", localRev), slog.Int("remote_rev", remoteRev))
	return pr
}

// load reads the current remote and local bodies and the merge base.
//
// After a pull (DOWN or BOTH tag) the local page contains the remote body
// at the tagged remote revision, so that body is the base. After a push
// only the remote was written and the tagged local body is the base. With
// no tag the lines both sides share stand in for the base.
func (r *run) load(ctx context.Context, sp model.SyncPage, last model.Tag, hasTag bool) (pageState, error) {
	var state pageState
	var err error

	state.remote, state.remoteRev, err = r.remoteBody(ctx, sp.RemoteName, 0)
	if err != nil {
		return state, err
	}
	state.local, err = r.store.RawBody(ctx, sp.LocalName, sp.LocalRevision)
	if err != nil {
		return state, fmt.Errorf("read local page %q: %w", sp.LocalName, err)
	}

	switch {
	case !hasTag:
		state.base = []byte(r.merger.CommonBase(string(state.remote), string(state.local)))
	case last.Direction == model.DirectionUp:
		state.base, err = r.store.RawBody(ctx, sp.LocalName, last.LocalRevision)
		if err != nil {
			return state, fmt.Errorf("read base revision %d of %q: %w", last.LocalRevision, sp.LocalName, err)
		}
	case last.RemoteRevision == state.remoteRev:
		state.base = state.remote
	default:
		state.base, _, err = r.remoteBody(ctx, sp.RemoteName, last.RemoteRevision)
		if err != nil {
			return state, err
		}
	}
	return state, nil
}

// remoteBody fetches a remote page body as a diff from the empty revision.
// rev 0 asks for the current revision.
func (r *run) remoteBody(ctx context.Context, name string, rev int) ([]byte, int, error) {
	res, err := r.remote.Diff(ctx, name, 0, rev)
	if err != nil {
		return nil, 0, err
	}
	body, err := delta.Apply(nil, res.Diff)
	if err != nil {
		return nil, 0, fmt.Errorf("decode diff of remote page %q: %w", name, err)
	}
	if rev == 0 {
		rev = res.Current
	}
	return body, rev, nil
}

func (r *run) saveLocal(ctx context.Context, sp model.SyncPage, content []byte) (int, error) {
	comment := fmt.Sprintf("merged changes from %s", r.opts.RemoteWiki)
	rev, err := r.store.Save(ctx, sp.LocalName, content, sp.LocalRevision, comment)
	switch {
	case errors.Is(err, pagestore.ErrUnchanged):
		return rev, nil
	case err != nil:
		return 0, fmt.Errorf("save local page %q: %w", sp.LocalName, err)
	}
	return rev, nil
}

func (r *run) push(ctx context.Context, sp model.SyncPage, state pageState, content []byte, localRev int) (int, error) {
	diff, err := delta.Make(state.remote, content)
	if err != nil {
		return 0, fmt.Errorf("build diff for %q: %w", sp.Name, err)
	}
	return r.remote.ApplyMerge(ctx, endpoint.MergeRequest{
		Name:                sp.RemoteName,
		Diff:                diff,
		LocalRevision:       localRev,
		DeltaRemoteRevision: state.remoteRev,
		LastRemoteRevision:  state.remoteRev,
		Caller:              r.home,
		CanonicalName:       sp.Name,
	})
}

func (r *run) skip(logger *slog.Logger, pr PageResult, reason string) PageResult {
	pr.Action = ActionSkipped
	pr.Message = reason
	logger.Debug("page skipped", slog.String("reason", reason))
	return pr
}

func (r *run) fail(logger *slog.Logger, pr PageResult, err error) PageResult {
	pr.Action = ActionFailed
	pr.Error = err
	pr.Message = err.Error()
	logger.Warn("page failed", logging.Err(err))
	return pr
}
