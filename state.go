package tether

// State is the connection state of an agent.
type State uint8

const (
	// StateUnconfigured is an agent that never tried to connect.
	StateUnconfigured State = iota
	// StateConnecting waits for the broker to accept the session.
	StateConnecting
	// StateConnected permits publish and subscribe.
	StateConnected
	// StateDisconnected lost or closed its session. The transport may reconnect on its own.
	StateDisconnected
	// StateFailed could not establish a session.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
