package session

// State is a phase of the modem session.
type State int

const (
	Uninitialized State = iota
	ProbingReadiness
	ConfiguringParameters
	Joining
	Joined
	// Sending is an uplink in progress.
	Sending
	// Listening is the downlink window after an accepted uplink.
	Listening
	// Waiting is the pause between cycles.
	Waiting
	ReadinessFailed
	ConfigurationFailed
	JoinFailed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case ProbingReadiness:
		return "probing_readiness"
	case ConfiguringParameters:
		return "configuring_parameters"
	case Joining:
		return "joining"
	case Joined:
		return "joined"
	case Sending:
		return "sending"
	case Listening:
		return "listening"
	case Waiting:
		return "waiting"
	case ReadinessFailed:
		return "readiness_failed"
	case ConfigurationFailed:
		return "configuration_failed"
	case JoinFailed:
		return "join_failed"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON status documents.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether the session can no longer make progress.
func (s State) Terminal() bool {
	return s == ReadinessFailed || s == ConfigurationFailed || s == JoinFailed
}

// Operational reports whether the modem has joined and cycles are running.
func (s State) Operational() bool {
	switch s {
	case Joined, Sending, Listening, Waiting:
		return true
	default:
		return false
	}
}
