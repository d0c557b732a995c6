package sync

import (
	"fmt"
	"strings"

	"github.com/klauern/wikisync/internal/model"
)

// Action represents the outcome for a page during reconciliation.
type Action string

const (
	// ActionReconciled indicates the page was brought up to date.
	ActionReconciled Action = "reconciled"

	// ActionConflict indicates remote changes were merged into the local
	// page with conflict markers that must be resolved locally.
	ActionConflict Action = "conflict"

	// ActionSkipped indicates the page was already current or cannot be
	// reconciled (for example, deleted on the remote wiki).
	ActionSkipped Action = "skipped"

	// ActionPending indicates a dry run would have reconciled the page.
	ActionPending Action = "pending"

	// ActionFailed indicates an error occurred processing the page.
	ActionFailed Action = "failed"
)

// PageResult represents the outcome of reconciling a single page.
type PageResult struct {
	// Page is the page as classified before reconciliation.
	Page model.SyncPage

	// Action is the action that was taken.
	Action Action

	// LocalRevision and RemoteRevision are the revisions recorded in the
	// new tag. Zero when no tag was written.
	LocalRevision  int
	RemoteRevision int

	// Error contains any error that occurred during processing.
	Error error

	// Message provides additional context about the action.
	Message string
}

// Success returns true if the page was processed without error.
func (pr *PageResult) Success() bool {
	return pr.Action != ActionFailed
}

// Result contains the complete outcome of a synchronization run.
type Result struct {
	// RemoteWiki is the interwiki name of the remote wiki.
	RemoteWiki string

	// Direction is the direction content flowed.
	Direction model.Direction

	// State is the state the run ended in.
	State State

	// OnlyLocal and OnlyRemote are the one-sided pages, with the concrete
	// name they would have on the other side filled in.
	OnlyLocal  []model.SyncPage
	OnlyRemote []model.SyncPage

	// Pages contains the result for each page on both sides, sorted by
	// canonical name.
	Pages []PageResult

	// DryRun indicates if this was a dry run (no changes made).
	DryRun bool
}

// Reconciled returns pages that were brought up to date.
func (r *Result) Reconciled() []PageResult {
	return r.filterByAction(ActionReconciled)
}

// Conflicts returns pages merged with conflict markers.
func (r *Result) Conflicts() []PageResult {
	return r.filterByAction(ActionConflict)
}

// Skipped returns pages that were skipped.
func (r *Result) Skipped() []PageResult {
	return r.filterByAction(ActionSkipped)
}

// Pending returns pages a dry run would have reconciled.
func (r *Result) Pending() []PageResult {
	return r.filterByAction(ActionPending)
}

// Failed returns pages that failed to reconcile.
func (r *Result) Failed() []PageResult {
	return r.filterByAction(ActionFailed)
}

// HasConflicts returns true if there are unresolved conflicts.
func (r *Result) HasConflicts() bool {
	return len(r.Conflicts()) > 0
}

// filterByAction returns pages with the given action.
func (r *Result) filterByAction(action Action) []PageResult {
	var filtered []PageResult
	for _, pr := range r.Pages {
		if pr.Action == action {
			filtered = append(filtered, pr)
		}
	}
	return filtered
}

// Success returns true if all pages were processed and the run finished.
func (r *Result) Success() bool {
	return r.State == StateDone && len(r.Failed()) == 0
}

// TotalProcessed returns the number of pages present on both sides.
func (r *Result) TotalProcessed() int {
	return len(r.Pages)
}

// Summary returns a human-readable summary of the run.
func (r *Result) Summary() string {
	var sb strings.Builder

	if r.DryRun {
		sb.WriteString("Dry run - no changes made\n")
	}

	sb.WriteString(fmt.Sprintf("Synchronized with %s (direction: %s)\n", r.RemoteWiki, r.Direction))

	sb.WriteString(fmt.Sprintf("  Only local:  %d\n", len(r.OnlyLocal)))
	sb.WriteString(fmt.Sprintf("  Only remote: %d\n", len(r.OnlyRemote)))
	sb.WriteString(fmt.Sprintf("  Reconciled:  %d\n", len(r.Reconciled())))
	if r.DryRun {
		sb.WriteString(fmt.Sprintf("  Pending:     %d\n", len(r.Pending())))
	}
	sb.WriteString(fmt.Sprintf("  Conflicts:   %d\n", len(r.Conflicts())))
	sb.WriteString(fmt.Sprintf("  Skipped:     %d\n", len(r.Skipped())))
	sb.WriteString(fmt.Sprintf("  Failed:      %d\n", len(r.Failed())))

	if r.HasConflicts() {
		sb.WriteString("\nConflicts requiring resolution:\n")
		for _, c := range r.Conflicts() {
			sb.WriteString(fmt.Sprintf("  - %s: %s\n", c.Page.Name, c.Message))
		}
	}

	if failed := r.Failed(); len(failed) > 0 {
		sb.WriteString("\nErrors:\n")
		for _, f := range failed {
			sb.WriteString(fmt.Sprintf("  - %s: %v\n", f.Page.Name, f.Error))
		}
	}

	return sb.String()
}
