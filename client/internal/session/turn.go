package session

// TurnState is whose turn it is to speak
type TurnState int

const (
	TurnIdle TurnState = iota
	TurnAISpeaking
	TurnGraceWait
	TurnWaitingUser
	TurnUserResponded
)

func (t TurnState) String() string {
	switch t {
	case TurnAISpeaking:
		return "ai_speaking"
	case TurnGraceWait:
		return "grace_wait"
	case TurnWaitingUser:
		return "waiting_user"
	case TurnUserResponded:
		return "user_responded"
	default:
		return "idle"
	}
}

// MarshalText renders the state for JSON snapshots
func (t TurnState) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// acceptsInput reports whether user input may be submitted in this state
func (t TurnState) acceptsInput() bool {
	switch t {
	case TurnWaitingUser, TurnGraceWait, TurnUserResponded:
		return true
	}
	return false
}

// EndReason is why a session ended
type EndReason string

const (
	EndByUser          EndReason = "user"
	EndByRemote        EndReason = "remote"
	EndReconnectFailed EndReason = "reconnect_failed"
)
