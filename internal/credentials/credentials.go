// Package credentials resolves client access keys to their secret keys and
// owning users.
package credentials

import (
	"context"
	"errors"

	"go.uber.org/zap/zapcore"
)

// ErrNotFound is returned when an access key is unknown.
var ErrNotFound = errors.New("credential not found")

// ClientCredential is the credential registered for an access key. The
// secret is never rendered by String or by the log encoder.
type ClientCredential struct {
	AccessKey string
	SecretKey string
	UserID    string
}

// String implements fmt.Stringer without the secret.
func (c *ClientCredential) String() string {
	if c == nil {
		return "<nil>"
	}
	return "ClientCredential{AccessKey:" + c.AccessKey + ", UserID:" + c.UserID + "}"
}

// MarshalLogObject implements zapcore.ObjectMarshaler without the secret.
func (c *ClientCredential) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("access_key", c.AccessKey)
	enc.AddString("user_id", c.UserID)
	return nil
}

// Store resolves access keys.
type Store interface {
	// Resolve returns the credential for accessKey, or an error wrapping
	// ErrNotFound when the key is unknown.
	Resolve(ctx context.Context, accessKey string) (*ClientCredential, error)

	// Close releases resources held by the store.
	Close() error
}

// Pinger is implemented by stores backed by a remote service.
type Pinger interface {
	Ping(ctx context.Context) error
}
