package credentials

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/signgw/internal/config"
	"github.com/vyrodovalexey/signgw/internal/observability"
)

// fakeVault serves a minimal KV v2 read API.
func fakeVault(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/secret/data/signgw/credentials/ak", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-token", r.Header.Get("X-Vault-Token"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"data":{"secret_key":"sk","user_id":42},"metadata":{"version":1}}}`))
	})
	mux.HandleFunc("/v1/secret/data/signgw/credentials/deleted", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"data":null,"metadata":{"deletion_time":"2024-01-01T00:00:00Z"}}}`))
	})
	mux.HandleFunc("/v1/secret/data/signgw/credentials/broken", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"errors":["permission denied"]}`))
	})
	mux.HandleFunc("/v1/sys/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"initialized":true,"sealed":false,"standby":false,"version":"1.15.0"}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"errors":[]}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newVaultStore(t *testing.T) *VaultStore {
	t.Helper()

	srv := fakeVault(t)
	cfg := &config.VaultConfig{
		Address:    srv.URL,
		Token:      "test-token",
		Mount:      "secret",
		PathPrefix: "/signgw/credentials/",
	}
	store, err := NewVaultStore(cfg, observability.NopLogger())
	require.NoError(t, err)
	return store
}

func TestVaultStore_Resolve(t *testing.T) {
	t.Parallel()

	store := newVaultStore(t)
	assert.Equal(t, "secret/data/signgw/credentials/ak", store.SecretPath("ak"))

	cred, err := store.Resolve(context.Background(), "ak")
	require.NoError(t, err)
	assert.Equal(t, "sk", cred.SecretKey)
	assert.Equal(t, "42", cred.UserID)
	assert.Equal(t, "ak", cred.AccessKey)
}

func TestVaultStore_NotFound(t *testing.T) {
	t.Parallel()

	store := newVaultStore(t)

	for _, key := range []string{"missing", "deleted", "", "../escape"} {
		_, err := store.Resolve(context.Background(), key)
		assert.ErrorIs(t, err, ErrNotFound, key)
	}
}

func TestVaultStore_ServerError(t *testing.T) {
	t.Parallel()

	store := newVaultStore(t)

	_, err := store.Resolve(context.Background(), "broken")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestVaultStore_Ping(t *testing.T) {
	t.Parallel()

	store := newVaultStore(t)
	require.NoError(t, store.Ping(context.Background()))
	require.NoError(t, store.Close())
}

func TestNewVaultStore_RequiresAddress(t *testing.T) {
	t.Parallel()

	_, err := NewVaultStore(&config.VaultConfig{}, nil)
	require.Error(t, err)
}
