package auth

import (
	"errors"
	"fmt"

	"github.com/vyrodovalexey/signgw/internal/credentials"
)

// ErrAccessDenied is matched by every DenyError.
var ErrAccessDenied = errors.New("access denied")

// DenyReason says which check rejected a request.
type DenyReason int

// Deny reasons, in check order.
const (
	ReasonNone DenyReason = iota
	IPNotAllowed
	UnknownCredential
	InvalidNonce
	StaleRequest
	BadSignature
)

var reasonNames = [...]string{
	ReasonNone:        "none",
	IPNotAllowed:      "ip_not_allowed",
	UnknownCredential: "unknown_credential",
	InvalidNonce:      "invalid_nonce",
	StaleRequest:      "stale_request",
	BadSignature:      "bad_signature",
}

// String returns the snake_case name used in logs and metrics.
func (r DenyReason) String() string {
	if r < 0 || int(r) >= len(reasonNames) {
		return fmt.Sprintf("reason(%d)", int(r))
	}
	return reasonNames[r]
}

// Decision is the outcome of Gate.Evaluate.
type Decision struct {
	Allowed    bool
	Reason     DenyReason
	Credential *credentials.ClientCredential
}

// Allow admits a request made with cred.
func Allow(cred *credentials.ClientCredential) Decision {
	return Decision{Allowed: true, Credential: cred}
}

// Deny rejects a request.
func Deny(reason DenyReason) Decision {
	return Decision{Reason: reason}
}

// Outcome returns "allowed" or "denied".
func (d Decision) Outcome() string {
	if d.Allowed {
		return "allowed"
	}
	return "denied"
}

// Err returns nil for an allowed decision and a *DenyError otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &DenyError{Reason: d.Reason}
}

// DenyError carries the reason of a denied request.
type DenyError struct {
	Reason DenyReason
}

// Error implements error.
func (e *DenyError) Error() string {
	return "access denied: " + e.Reason.String()
}

// Is matches ErrAccessDenied.
func (e *DenyError) Is(target error) bool {
	return target == ErrAccessDenied
}
