package gateway

import "errors"

// Sentinel errors for filter construction.
var (
	// ErrNilAuthorizer indicates that no access gate was provided.
	ErrNilAuthorizer = errors.New("authorizer is required")

	// ErrNilForwarder indicates that no forwarder was provided.
	ErrNilForwarder = errors.New("forwarder is required")
)
