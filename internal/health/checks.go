package health

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Check is a named dependency probe.
type Check interface {
	Name() string
	Check(ctx context.Context) error
}

// Pinger is implemented by collaborators that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

type checkFunc struct {
	name string
	fn   func(ctx context.Context) error
}

func (c *checkFunc) Name() string { return c.name }

func (c *checkFunc) Check(ctx context.Context) error { return c.fn(ctx) }

// NewCheck creates a Check from a function.
func NewCheck(name string, fn func(ctx context.Context) error) Check {
	return &checkFunc{name: name, fn: fn}
}

// PingCheck probes p. It returns nil, and registers nothing, when target
// does not implement Pinger.
func PingCheck(name string, target any) Check {
	p, ok := target.(Pinger)
	if !ok {
		return nil
	}
	return NewCheck(name, func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
		return nil
	})
}

// WithTimeout bounds a check. A nil check or a non-positive timeout is
// returned unchanged.
func WithTimeout(c Check, timeout time.Duration) Check {
	if c == nil || timeout <= 0 {
		return c
	}
	return NewCheck(c.Name(), func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		err := c.Check(ctx)
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%s check timed out after %s: %w", c.Name(), timeout, err)
		}
		return err
	})
}
