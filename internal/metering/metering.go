// Package metering records invocations of backend interfaces.
//
// Events are handed to a Dispatcher, which increments a Counter from a small
// worker pool so request handling never waits on the counter backend.
package metering

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for event submission.
var (
	// ErrQueueFull is returned by Submit when the event was dropped.
	ErrQueueFull = errors.New("metering queue is full")

	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("metering dispatcher is closed")
)

// InvocationEvent records one successful call of an interface by a user.
type InvocationEvent struct {
	UserID      string    `json:"userId"`
	InterfaceID string    `json:"interfaceId"`
	RequestID   string    `json:"requestId,omitempty"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// Counter increments the invocation count of (userID, interfaceID).
type Counter interface {
	Increment(ctx context.Context, userID, interfaceID string) error
	Close() error
}

// Pinger is implemented by counters backed by a remote service.
type Pinger interface {
	Ping(ctx context.Context) error
}
