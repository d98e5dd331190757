package orchestrator

// State is a phase of the orchestrator lifecycle.
type State int32

const (
	StateInit State = iota
	StateResolving
	StateStarting
	StateRunning
	StateShuttingDown
	StateDone
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateResolving:
		return "RESOLVING"
	case StateStarting:
		return "STARTING"
	case StateRunning:
		return "RUNNING"
	case StateShuttingDown:
		return "SHUTTING_DOWN"
	case StateDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}
