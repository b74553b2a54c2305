// Package registry resolves request paths and methods to registered backend
// interfaces.
package registry

import (
	"context"
	"errors"
	"strings"
)

// Sentinel errors for interface resolution.
var (
	// ErrNotFound is returned when no interface matches.
	ErrNotFound = errors.New("interface not found")

	// ErrUnavailable is returned when the registry could not answer.
	ErrUnavailable = errors.New("interface registry unavailable")
)

// InterfaceDescriptor describes a registered backend interface.
type InterfaceDescriptor struct {
	ID      string `json:"id"`
	Path    string `json:"path"`
	Method  string `json:"method"`
	OwnerID string `json:"ownerId,omitempty"`
	Enabled bool   `json:"enabled"`
}

// Registry resolves interfaces. Disabled interfaces are returned as found;
// callers decide how to treat them.
type Registry interface {
	Resolve(ctx context.Context, path, method string) (*InterfaceDescriptor, error)
	Close() error
}

// Pinger is implemented by registries backed by a remote service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// normalizeMethod upper-cases an HTTP method for storage and matching.
func normalizeMethod(method string) string {
	return strings.ToUpper(strings.TrimSpace(method))
}
