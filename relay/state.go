package relay

// State is the lifecycle stage of a relay session.
type State int

const (
	StateIdle State = iota
	StateSending
	StateStreaming
	StateBuffering
	StatePersisting
	StateDone
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateBuffering:
		return "buffering"
	case StatePersisting:
		return "persisting"
	case StateDone:
		return "done"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}
