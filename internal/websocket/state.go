package websocket

// ConnectionState is the lifecycle state of a Manager.
type ConnectionState int

const (
	// Disconnected is the state before the first dial.
	Disconnected ConnectionState = iota
	// Connecting means a dial is in flight.
	Connecting
	// Open means a transport is live and Send accepts frames.
	Open
	// Closed means the transport was lost or closed. A retry may be pending.
	Closed
	// GaveUp means automatic reconnection stopped after MaxAttempts retries.
	// Only Open leaves this state.
	GaveUp
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	case GaveUp:
		return "gave_up"
	default:
		return "unknown"
	}
}

// StateEvent describes one state transition. Err is the transport error
// that caused it, if any. Attempt is the number of automatic retries made
// since the last successful open.
type StateEvent struct {
	Old     ConnectionState
	New     ConnectionState
	Err     error
	Attempt int
}
