package gateway

// State is a step of the per-request filter flow.
type State int

const (
	// StateStart is the initial state.
	StateStart State = iota
	// StateGating runs the access gate.
	StateGating
	// StateDenied is terminal; the request was answered with 403.
	StateDenied
	// StateResolving looks up the called interface.
	StateResolving
	// StateForwarding proxies the request to the backend.
	StateForwarding
	// StateCompleting finishes the response tap and meters the call.
	StateCompleting
	// StateDone is terminal.
	StateDone
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateGating:
		return "gating"
	case StateDenied:
		return "denied"
	case StateResolving:
		return "resolving"
	case StateForwarding:
		return "forwarding"
	case StateCompleting:
		return "completing"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Request outcomes recorded in gateway_requests_total.
const (
	OutcomeDenied   = "denied"
	OutcomeDone     = "done"
	OutcomeDegraded = "degraded"
	OutcomeAborted  = "aborted"
	OutcomeFailed   = "failed"
)
