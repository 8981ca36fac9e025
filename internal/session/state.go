package session

type State int

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	StateDraining
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateDraining:
		return "draining"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal states have no successors.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

var transitions = map[State][]State{
	StateIdle:       {StateConnecting, StateCancelled},
	StateConnecting: {StateStreaming, StateFailed, StateCancelled},
	StateStreaming:  {StateDraining, StateFailed, StateCancelled},
	StateDraining:   {StateCompleted, StateFailed, StateCancelled},
}

func canTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
