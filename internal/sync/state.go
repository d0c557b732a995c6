package sync

// State is a phase of a synchronization run.
type State string

const (
	StateInit         State = "init"
	StateListing      State = "listing"
	StateFiltering    State = "filtering"
	StatePartitioning State = "partitioning"
	StateReconciling  State = "reconciling"
	StateDone         State = "done"

	// StateAborted is reached from any state on a fatal error.
	StateAborted State = "aborted"
)

func (s State) String() string {
	return string(s)
}

// IsTerminal reports whether the run has finished.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateAborted
}
