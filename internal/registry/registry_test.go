package registry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/signgw/internal/circuitbreaker"
	"github.com/vyrodovalexey/signgw/internal/config"
	"github.com/vyrodovalexey/signgw/internal/storage/sqlite"
)

const testPrefix = "http://localhost:8123"

func testDescriptors() []InterfaceDescriptor {
	return []InterfaceDescriptor{
		{ID: "1", Path: testPrefix + "/api/name", Method: "get", OwnerID: "u1", Enabled: true},
		{ID: "2", Path: testPrefix + "/api/name", Method: "POST", Enabled: true},
		{ID: "3", Path: testPrefix + "/api/off", Method: "GET", Enabled: false},
	}
}

// resolveCases exercises any registry seeded with testDescriptors.
func resolveCases(t *testing.T, r Registry) {
	t.Helper()

	tests := []struct {
		name        string
		path        string
		method      string
		wantID      string
		wantEnabled bool
		wantErr     error
	}{
		{name: "get", path: "/api/name", method: "GET", wantID: "1", wantEnabled: true},
		{name: "method case-insensitive", path: "/api/name", method: "get", wantID: "1", wantEnabled: true},
		{name: "post", path: "/api/name", method: "POST", wantID: "2", wantEnabled: true},
		{name: "disabled returned", path: "/api/off", method: "GET", wantID: "3", wantEnabled: false},
		{name: "unknown method", path: "/api/name", method: "DELETE", wantErr: ErrNotFound},
		{name: "unknown path", path: "/api/none", method: "GET", wantErr: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := r.Resolve(context.Background(), tt.path, tt.method)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, d)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, d.ID)
			assert.Equal(t, tt.wantEnabled, d.Enabled)
		})
	}
}

func TestMemoryRegistry_Resolve(t *testing.T) {
	t.Parallel()

	resolveCases(t, NewMemoryRegistry(testPrefix, testDescriptors()...))
}

func TestMemoryRegistry_EmptyPrefix(t *testing.T) {
	t.Parallel()

	r := NewMemoryRegistry("", InterfaceDescriptor{ID: "x", Path: "/api/name", Method: "GET", Enabled: true})

	d, err := r.Resolve(context.Background(), "/api/name", "GET")
	require.NoError(t, err)
	assert.Equal(t, "x", d.ID)
	require.NoError(t, r.Close())
}

func TestMemoryRegistry_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemoryRegistry(testPrefix, testDescriptors()...).Resolve(ctx, "/api/name", "GET")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestSQLiteRegistry_Resolve(t *testing.T) {
	t.Parallel()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)

	r := NewSQLiteRegistry(store, testPrefix, true)
	t.Cleanup(func() { _ = r.Close() })

	for _, d := range testDescriptors() {
		require.NoError(t, r.Register(context.Background(), d))
	}
	require.NoError(t, r.Ping(context.Background()))

	resolveCases(t, r)
}

func TestSQLiteRegistry_RegisterReplaces(t *testing.T) {
	t.Parallel()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	r := NewSQLiteRegistry(store, "", true)
	t.Cleanup(func() { _ = r.Close() })

	ctx := context.Background()
	require.NoError(t, r.Register(ctx, InterfaceDescriptor{ID: "1", Path: "/a", Method: "GET", Enabled: true}))
	require.NoError(t, r.Register(ctx, InterfaceDescriptor{ID: "1", Path: "/a", Method: "GET", Enabled: false}))

	d, err := r.Resolve(ctx, "/a", "GET")
	require.NoError(t, err)
	assert.False(t, d.Enabled)
}

// fakeRegistryServer answers resolve calls from testDescriptors; failing
// switches it to 500 responses.
func fakeRegistryServer(t *testing.T, failing *atomic.Bool, calls *atomic.Int32) *httptest.Server {
	t.Helper()

	byKey := make(map[string]InterfaceDescriptor)
	for _, d := range testDescriptors() {
		byKey[normalizeMethod(d.Method)+" "+d.Path] = d
	}

	mux := http.NewServeMux()
	mux.HandleFunc(resolvePath, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		q := r.URL.Query()
		assert.Equal(t, testPrefix+q.Get("path"), q.Get("url"))

		d, ok := byKey[q.Get("method")+" "+q.Get("url")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(d)
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPRegistry_Resolve(t *testing.T) {
	t.Parallel()

	var failing atomic.Bool
	var calls atomic.Int32
	srv := fakeRegistryServer(t, &failing, &calls)

	r, err := NewHTTPRegistry(srv.URL+"/", testPrefix)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	resolveCases(t, r)
	require.NoError(t, r.Ping(context.Background()))
}

func TestHTTPRegistry_BreakerOpensOnFailures(t *testing.T) {
	t.Parallel()

	var failing atomic.Bool
	var calls atomic.Int32
	srv := fakeRegistryServer(t, &failing, &calls)

	reg := prometheus.NewRegistry()
	breaker := circuitbreaker.New("test-registry", 2, time.Minute,
		circuitbreaker.WithMetrics(circuitbreaker.NewMetrics("test", reg)),
		circuitbreaker.WithIsSuccessful(isNotFound),
	)
	r, err := NewHTTPRegistry(srv.URL, testPrefix, WithBreaker(breaker))
	require.NoError(t, err)

	ctx := context.Background()

	// Not-found answers keep the breaker closed.
	for range 5 {
		_, err := r.Resolve(ctx, "/missing", "GET")
		require.ErrorIs(t, err, ErrNotFound)
	}
	assert.Equal(t, int32(5), calls.Load())

	failing.Store(true)
	for range 2 {
		_, err := r.Resolve(ctx, "/api/name", "GET")
		require.ErrorIs(t, err, ErrUnavailable)
	}

	_, err = r.Resolve(ctx, "/api/name", "GET")
	require.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.Equal(t, int32(7), calls.Load())
}

func TestHTTPRegistry_InvalidResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"method":"GET"}`))
	}))
	t.Cleanup(srv.Close)

	r, err := NewHTTPRegistry(srv.URL, "")
	require.NoError(t, err)

	_, err = r.Resolve(context.Background(), "/x", "GET")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNewHTTPRegistry_InvalidURL(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "not a url", "ftp://host", "http://"} {
		_, err := NewHTTPRegistry(raw, "")
		assert.Error(t, err, raw)
	}
}

func TestInstrument(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)
	r := Instrument(NewMemoryRegistry(testPrefix, testDescriptors()...), m)

	ctx := context.Background()
	_, _ = r.Resolve(ctx, "/api/name", "GET")
	_, _ = r.Resolve(ctx, "/api/off", "GET")
	_, _ = r.Resolve(ctx, "/api/none", "GET")
	_, _ = r.Resolve(ctx, "/api/none", "GET")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.resolutions.WithLabelValues(ResultFound)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.resolutions.WithLabelValues(ResultDisabled)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.resolutions.WithLabelValues(ResultNotFound)))

	pinger, ok := r.(Pinger)
	require.True(t, ok)
	require.NoError(t, pinger.Ping(ctx))
	require.NoError(t, r.Close())
}

func TestResultOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ResultFound, ResultOf(&InterfaceDescriptor{Enabled: true}, nil))
	assert.Equal(t, ResultDisabled, ResultOf(&InterfaceDescriptor{}, nil))
	assert.Equal(t, ResultNotFound, ResultOf(nil, ErrNotFound))
	assert.Equal(t, ResultError, ResultOf(nil, ErrUnavailable))
}

func TestNewRegistry(t *testing.T) {
	t.Parallel()

	static := []config.StaticInterface{
		{ID: "1", URL: testPrefix + "/api/name", Method: "GET"},
		{ID: "2", URL: testPrefix + "/api/off", Method: "GET", Disabled: true},
	}

	tests := []struct {
		name    string
		cfg     *config.RegistryConfig
		want    interface{}
		wantErr bool
	}{
		{name: "memory", cfg: &config.RegistryConfig{Type: config.TypeMemory, Static: static}, want: &MemoryRegistry{}},
		{
			name: "sqlite seeded",
			cfg: &config.RegistryConfig{
				Type:   config.TypeSQLite,
				Static: static,
				SQLite: &config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "r.db")},
			},
			want: &SQLiteRegistry{},
		},
		{
			name: "http",
			cfg:  &config.RegistryConfig{Type: config.TypeHTTP, HTTP: &config.HTTPRegistryConfig{BaseURL: "http://127.0.0.1:1"}},
			want: &HTTPRegistry{},
		},
		{name: "nil", cfg: nil, wantErr: true},
		{name: "unknown", cfg: &config.RegistryConfig{Type: "etcd"}, wantErr: true},
		{name: "sqlite without path", cfg: &config.RegistryConfig{Type: config.TypeSQLite}, wantErr: true},
		{name: "http without config", cfg: &config.RegistryConfig{Type: config.TypeHTTP}, wantErr: true},
		{
			name:    "http bad url",
			cfg:     &config.RegistryConfig{Type: config.TypeHTTP, HTTP: &config.HTTPRegistryConfig{BaseURL: "::"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r, err := NewRegistry(context.Background(), tt.cfg, testPrefix, Deps{})
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, r)
				return
			}
			require.NoError(t, err)
			t.Cleanup(func() { _ = r.Close() })
			assert.IsType(t, tt.want, r)

			if tt.cfg.Type == config.TypeHTTP {
				return
			}
			d, err := r.Resolve(context.Background(), "/api/off", "GET")
			require.NoError(t, err)
			assert.False(t, d.Enabled)
		})
	}
}
