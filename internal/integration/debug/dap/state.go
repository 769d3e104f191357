package dap

// State is the lifecycle state of a debug session as seen by the client.
// Terminated and Failed are sinks.
type State int

const (
	StateNone State = iota
	StateInitializing
	StateInitialized
	StateRunning
	StateTerminated
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateInitializing:
		return "initializing"
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateTerminated || s == StateFailed
}

// canTransition reports whether moving from s to next is legal.
func (s State) canTransition(next State) bool {
	if s.Terminal() || next == s {
		return false
	}
	switch next {
	case StateInitializing:
		return s == StateNone
	case StateInitialized:
		return s == StateInitializing
	case StateRunning:
		return s == StateInitialized
	case StateTerminated, StateFailed:
		return true
	}
	return false
}

// Generation counts resumptions of the debuggee. Frame, scope and variable
// references obtained under an older generation may have been reused by
// the adapter and must not be merged into current state.
type Generation uint64
