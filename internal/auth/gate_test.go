package auth

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/signgw/internal/auth/replay"
	"github.com/vyrodovalexey/signgw/internal/auth/signature"
	"github.com/vyrodovalexey/signgw/internal/credentials"
	"github.com/vyrodovalexey/signgw/internal/observability"
)

const (
	testAccessKey = "ak-1"
	testSecret    = "s3cr3t-value"
	testUserID    = "42"
	testIP        = "127.0.0.1"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixedIP string

func (f fixedIP) Extract(*http.Request) string { return string(f) }

// errStore fails every lookup with err.
type errStore struct {
	err error
}

func (s errStore) Resolve(context.Context, string) (*credentials.ClientCredential, error) {
	return nil, s.err
}

func (errStore) Close() error { return nil }

// slowStore blocks until the lookup context is done.
type slowStore struct{}

func (slowStore) Resolve(ctx context.Context, _ string) (*credentials.ClientCredential, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (slowStore) Close() error { return nil }

func newTestGate(t *testing.T, store credentials.Store, opts ...GateOption) *Gate {
	t.Helper()

	engine, err := signature.NewEngine(signature.DefaultAlgorithm)
	require.NoError(t, err)

	if store == nil {
		store = credentials.NewMemoryStore(credentials.ClientCredential{
			AccessKey: testAccessKey, SecretKey: testSecret, UserID: testUserID,
		})
	}
	guard := replay.NewGuard(10000, 5*time.Minute, 5*time.Second, replay.WithClock(func() time.Time { return testNow }))
	return NewGate([]string{testIP}, store, guard, engine, opts...)
}

// signedRequest builds a request signed with secret.
func signedRequest(t *testing.T, secret string, mutate func(f *signature.Fields)) *SignedRequest {
	t.Helper()

	fields := signature.Fields{
		AccessKey:     testAccessKey,
		RequestParams: `{"name":"x"}`,
		Nonce:         "42",
		Timestamp:     strconv.FormatInt(testNow.UnixMilli(), 10),
	}
	if mutate != nil {
		mutate(&fields)
	}

	engine, err := signature.NewEngine(signature.DefaultAlgorithm)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/api/name", http.NoBody)
	Apply(r, fields, engine.Sign(fields, secret))
	return ExtractSignedRequest(r, fixedIP(testIP))
}

func TestGate_Evaluate(t *testing.T) {
	t.Parallel()

	gate := newTestGate(t, nil)
	stale := strconv.FormatInt(testNow.Add(-6*time.Minute).UnixMilli(), 10)

	tests := []struct {
		name       string
		req        func(t *testing.T) *SignedRequest
		wantReason DenyReason
	}{
		{
			name: "valid",
			req:  func(t *testing.T) *SignedRequest { return signedRequest(t, testSecret, nil) },
		},
		{
			name: "ip not allowed wins over every other failure",
			req: func(t *testing.T) *SignedRequest {
				r := signedRequest(t, "wrong", func(f *signature.Fields) { f.AccessKey = "nope"; f.Nonce = "-5" })
				r.SourceIP = "10.0.0.1"
				return r
			},
			wantReason: IPNotAllowed,
		},
		{
			name: "unknown key checked before nonce",
			req: func(t *testing.T) *SignedRequest {
				return signedRequest(t, testSecret, func(f *signature.Fields) { f.AccessKey = "nope"; f.Nonce = "99999" })
			},
			wantReason: UnknownCredential,
		},
		{
			name: "missing access key",
			req: func(t *testing.T) *SignedRequest {
				return signedRequest(t, testSecret, func(f *signature.Fields) { f.AccessKey = "" })
			},
			wantReason: UnknownCredential,
		},
		{
			name: "nonce at ceiling",
			req: func(t *testing.T) *SignedRequest {
				return signedRequest(t, testSecret, func(f *signature.Fields) { f.Nonce = "10000" })
			},
			wantReason: InvalidNonce,
		},
		{
			name: "malformed nonce",
			req: func(t *testing.T) *SignedRequest {
				return signedRequest(t, testSecret, func(f *signature.Fields) { f.Nonce = "abc" })
			},
			wantReason: InvalidNonce,
		},
		{
			name: "nonce checked before timestamp",
			req: func(t *testing.T) *SignedRequest {
				return signedRequest(t, testSecret, func(f *signature.Fields) { f.Nonce = "-1"; f.Timestamp = stale })
			},
			wantReason: InvalidNonce,
		},
		{
			name: "stale timestamp",
			req: func(t *testing.T) *SignedRequest {
				return signedRequest(t, testSecret, func(f *signature.Fields) { f.Timestamp = stale })
			},
			wantReason: StaleRequest,
		},
		{
			name: "missing timestamp",
			req: func(t *testing.T) *SignedRequest {
				return signedRequest(t, testSecret, func(f *signature.Fields) { f.Timestamp = "" })
			},
			wantReason: StaleRequest,
		},
		{
			name: "wrong secret",
			req: func(t *testing.T) *SignedRequest {
				return signedRequest(t, "other-secret", nil)
			},
			wantReason: BadSignature,
		},
		{
			name: "missing signature",
			req: func(t *testing.T) *SignedRequest {
				r := signedRequest(t, testSecret, nil)
				r.ClientSignature = ""
				return r
			},
			wantReason: BadSignature,
		},
		{
			name: "tampered params",
			req: func(t *testing.T) *SignedRequest {
				r := signedRequest(t, testSecret, nil)
				r.RequestParams = `{"name":"y"}`
				return r
			},
			wantReason: BadSignature,
		},
		{
			name: "nonce signed verbatim",
			req: func(t *testing.T) *SignedRequest {
				r := signedRequest(t, testSecret, func(f *signature.Fields) { f.Nonce = "007" })
				r.RawNonce = "7"
				return r
			},
			wantReason: BadSignature,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d := gate.Evaluate(context.Background(), tt.req(t))
			if tt.wantReason == ReasonNone {
				require.True(t, d.Allowed)
				require.NotNil(t, d.Credential)
				assert.Equal(t, testUserID, d.Credential.UserID)
				assert.NoError(t, d.Err())
				return
			}
			assert.False(t, d.Allowed)
			assert.Equal(t, tt.wantReason, d.Reason)
			assert.Nil(t, d.Credential)

			var denyErr *DenyError
			require.ErrorAs(t, d.Err(), &denyErr)
			assert.Equal(t, tt.wantReason, denyErr.Reason)
			assert.ErrorIs(t, d.Err(), ErrAccessDenied)
		})
	}
}

func TestGate_StoreFailuresFailClosed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		store credentials.Store
	}{
		{name: "backend error", store: errStore{err: errors.New("connection refused")}},
		{name: "not found", store: errStore{err: credentials.ErrNotFound}},
		{name: "nil credential", store: errStore{}},
		{name: "timeout", store: slowStore{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			gate := newTestGate(t, tt.store, WithCredentialTimeout(10*time.Millisecond))
			d := gate.Evaluate(context.Background(), signedRequest(t, testSecret, nil))
			assert.False(t, d.Allowed)
			assert.Equal(t, UnknownCredential, d.Reason)
		})
	}
}

func TestGate_EmptyAllowListDeniesAll(t *testing.T) {
	t.Parallel()

	engine, err := signature.NewEngine("")
	require.NoError(t, err)
	gate := NewGate(nil, credentials.NewMemoryStore(), replay.NewGuard(10000, time.Minute, 0), engine)

	assert.False(t, gate.IPAllowed(testIP))
	assert.Equal(t, IPNotAllowed, gate.Evaluate(context.Background(), &SignedRequest{SourceIP: testIP}).Reason)
}

func TestGate_NeverLogsSecret(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := observability.NewLogger(observability.LogConfig{Level: "debug", Writer: &buf})
	require.NoError(t, err)

	gate := newTestGate(t, nil, WithLogger(logger))
	ctx := context.Background()

	assert.True(t, gate.Evaluate(ctx, signedRequest(t, testSecret, nil)).Allowed)
	assert.False(t, gate.Evaluate(ctx, signedRequest(t, "bad", nil)).Allowed)
	require.NoError(t, logger.Sync())

	assert.Contains(t, buf.String(), "access allowed")
	assert.Contains(t, buf.String(), "bad_signature")
	assert.NotContains(t, buf.String(), testSecret)
}

func TestGate_Metrics(t *testing.T) {
	t.Parallel()

	m := NewMetrics("test", prometheus.NewRegistry())
	gate := newTestGate(t, nil, WithMetrics(m))
	ctx := context.Background()

	gate.Evaluate(ctx, signedRequest(t, testSecret, nil))
	gate.Evaluate(ctx, signedRequest(t, "bad", nil))
	gate.Evaluate(ctx, signedRequest(t, "bad", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.decisions.WithLabelValues("allowed", "none")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.decisions.WithLabelValues("denied", "bad_signature")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
}
