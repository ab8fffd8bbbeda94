package toolserver

// ServerState tracks the lifecycle of one supervised tool server. State is
// owned exclusively by the supervisor entry for that server name.
type ServerState int

const (
	StateNotRunning ServerState = iota
	StateStarting
	StateConnected
	StateError
	StateStopped
)

func (s ServerState) String() string {
	switch s {
	case StateNotRunning:
		return "not_running"
	case StateStarting:
		return "starting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
