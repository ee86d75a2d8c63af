package task

// State represents the lifecycle state of a managed task.
type State int

const (
	StateRunning State = iota + 1
	StateCancelling
	StateFinished
	StateFailed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "Running"
	case StateCancelling:
		return "Cancelling"
	case StateFinished:
		return "Finished"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Done reports whether the task has stopped running.
func (s State) Done() bool {
	return s == StateFinished || s == StateFailed
}
