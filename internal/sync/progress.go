package sync

// ProgressEventType identifies a point in a synchronization run.
type ProgressEventType string

const (
	// ProgressEventStart is emitted once before the first page is reconciled.
	ProgressEventStart ProgressEventType = "start"

	// ProgressEventPageStart is emitted when a page is picked up.
	ProgressEventPageStart ProgressEventType = "page_start"

	// ProgressEventPageComplete is emitted when a page has an outcome.
	ProgressEventPageComplete ProgressEventType = "page_complete"

	// ProgressEventComplete is emitted once after the last page.
	ProgressEventComplete ProgressEventType = "complete"
)

// ProgressEvent describes the progress of the Reconciling phase.
type ProgressEvent struct {
	Type ProgressEventType

	// Page is the canonical page name; empty for run-level events.
	Page string

	// Action is the page outcome on ProgressEventPageComplete.
	Action Action

	// Current is the number of pages completed so far.
	Current int

	// Total is the number of pages to reconcile.
	Total int

	Message string
}

// PercentComplete returns the completed share of pages, 0 to 100.
func (e ProgressEvent) PercentComplete() int {
	if e.Total == 0 {
		return 100
	}
	return e.Current * 100 / e.Total
}

// ProgressCallback receives progress events. Callbacks are never invoked
// concurrently. Returning an error cancels the run.
type ProgressCallback func(ProgressEvent) error
