package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/signgw/internal/observability"
)

func newBufferLogger(t *testing.T) (observability.Logger, *bytes.Buffer) {
	t.Helper()

	var buf bytes.Buffer
	logger, err := observability.NewLogger(observability.LogConfig{Level: "debug", Writer: &buf})
	require.NoError(t, err)
	return logger, &buf
}

func logEntries(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestClientIPExtractor_Extract(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		trusted    []string
		remoteAddr string
		xff        []string
		want       string
	}{
		{name: "peer ipv4", remoteAddr: "192.0.2.1:1234", want: "192.0.2.1"},
		{name: "peer ipv6", remoteAddr: "[2001:db8::1]:443", want: "2001:db8::1"},
		{name: "mapped ipv4", remoteAddr: "[::ffff:127.0.0.1]:80", want: "127.0.0.1"},
		{name: "no port", remoteAddr: "127.0.0.1", want: "127.0.0.1"},
		{
			name:       "xff ignored without trusted proxies",
			remoteAddr: "192.0.2.1:1234",
			xff:        []string{"127.0.0.1"},
			want:       "192.0.2.1",
		},
		{
			name:       "xff ignored from untrusted peer",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "192.0.2.1:1234",
			xff:        []string{"127.0.0.1"},
			want:       "192.0.2.1",
		},
		{
			name:       "rightmost untrusted hop",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "10.1.1.1:1234",
			xff:        []string{"127.0.0.1, 198.51.100.7, 10.2.2.2"},
			want:       "198.51.100.7",
		},
		{
			name:       "multiple header values",
			trusted:    []string{"10.0.0.1"},
			remoteAddr: "10.0.0.1:1234",
			xff:        []string{"203.0.113.5", "10.0.0.1"},
			want:       "203.0.113.5",
		},
		{
			name:       "all hops trusted",
			trusted:    []string{"10.0.0.0/8", "bogus"},
			remoteAddr: "10.0.0.1:1234",
			xff:        []string{"10.0.0.2"},
			want:       "10.0.0.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			r.RemoteAddr = tt.remoteAddr
			for _, v := range tt.xff {
				r.Header.Add(HeaderXForwardedFor, v)
			}

			assert.Equal(t, tt.want, NewClientIPExtractor(tt.trusted).Extract(r))
		})
	}
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		incoming string
		want     string
	}{
		{name: "generated", want: "generated-id"},
		{name: "reused", incoming: "abc-123", want: "abc-123"},
		{name: "rejects spaces", incoming: "a b", want: "generated-id"},
		{name: "rejects long", incoming: strings.Repeat("x", maxRequestIDLength+1), want: "generated-id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var seen string
			h := RequestIDWithGenerator(func() string { return "generated-id" })(
				http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
					seen = observability.RequestIDFromContext(r.Context())
				}),
			)

			r := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			if tt.incoming != "" {
				r.Header.Set(HeaderXRequestID, tt.incoming)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, r)

			assert.Equal(t, tt.want, seen)
			assert.Equal(t, tt.want, rec.Header().Get(HeaderXRequestID))
		})
	}
}

func TestRequestID_DefaultGenerator(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	RequestID()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	assert.Len(t, rec.Header().Get(HeaderXRequestID), 36)
}

func TestRecovery(t *testing.T) {
	t.Parallel()

	logger, buf := newBufferLogger(t)
	m := NewMetrics("test", prometheus.NewRegistry())

	h := Recovery(logger, m)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", http.NoBody))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, ContentTypeJSON, rec.Header().Get(HeaderContentType))
	assert.JSONEq(t, ErrInternalServerError, rec.Body.String())
	assert.InDelta(t, 1, testutil.ToFloat64(m.panicsRecovered), 0)

	entries := logEntries(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "panic recovered", entries[0]["message"])
	assert.Equal(t, "/x", entries[0]["path"])
}

func TestRecovery_AbortHandlerPropagates(t *testing.T) {
	t.Parallel()

	h := Recovery(observability.NopLogger(), nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	})
}

func TestAccessLog(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		level  string
	}{
		{name: "ok", status: http.StatusOK, level: "info"},
		{name: "forbidden", status: http.StatusForbidden, level: "warn"},
		{name: "bad gateway", status: http.StatusBadGateway, level: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger, buf := newBufferLogger(t)
			h := AccessLog(logger, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, "body")
			}))

			r := httptest.NewRequest(http.MethodPost, "/api/name?a=b", http.NoBody)
			r.RemoteAddr = "127.0.0.1:9999"
			h.ServeHTTP(httptest.NewRecorder(), r)

			entries := logEntries(t, buf)
			require.Len(t, entries, 1)
			e := entries[0]
			assert.Equal(t, tt.level, e["level"])
			assert.Equal(t, "http request", e["message"])
			assert.Equal(t, "/api/name", e["path"])
			assert.Equal(t, "a=b", e["query"])
			assert.Equal(t, "127.0.0.1", e["client_ip"])
			assert.InDelta(t, tt.status, e["status"], 0)
			assert.InDelta(t, 4, e["size"], 0)
		})
	}
}

func TestResponseWriter_FlushAndUnwrap(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, status: http.StatusOK}

	rw.WriteHeader(http.StatusAccepted)
	rw.WriteHeader(http.StatusTeapot)
	rw.Flush()

	assert.Equal(t, http.StatusAccepted, rw.status)
	assert.True(t, rec.Flushed)
	assert.Same(t, rec, rw.Unwrap())
}

func TestChain_Order(t *testing.T) {
	t.Parallel()

	var order []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mark("a"), mark("b"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	assert.Equal(t, []string{"a", "b", "handler"}, order)
}
