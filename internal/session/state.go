package session

// State identifies where a session is in its lifecycle. The zero value is
// not meaningful; sessions start in StateDisconnected.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConfiguring  State = "configuring"
	StateReady        State = "ready"
	StateListening    State = "listening"
	StateProcessing   State = "processing"
	StateSpeaking     State = "speaking"
	StateError        State = "error"
)

func (s State) String() string { return string(s) }

// Active reports whether the session can carry caller audio in this state.
func (s State) Active() bool {
	switch s {
	case StateReady, StateListening, StateProcessing, StateSpeaking:
		return true
	}
	return false
}
