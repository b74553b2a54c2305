package observability

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLogConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultLogConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "stdout", cfg.Output)
	assert.Nil(t, cfg.Writer)
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  LogConfig
		wantErr bool
	}{
		{
			name:   "default config",
			config: DefaultLogConfig(),
		},
		{
			name:   "console format",
			config: LogConfig{Level: "debug", Format: "console", Output: "stdout"},
		},
		{
			name:   "stderr output",
			config: LogConfig{Level: "warn", Format: "json", Output: "stderr"},
		},
		{
			name:   "empty level defaults to info",
			config: LogConfig{Format: "json"},
		},
		{
			name:    "invalid level",
			config:  LogConfig{Level: "loud", Format: "json"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger, err := NewLogger(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, logger)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestLogger_WritesToConfiguredWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := NewLogger(LogConfig{Level: "info", Format: "json", Writer: &buf})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("request admitted", String("access_key", "ak-1"), Int("status", 200))
	require.NoError(t, logger.Sync())

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"message":"request admitted"`)
	assert.Contains(t, out, `"access_key":"ak-1"`)
	assert.Contains(t, out, `"status":200`)
}

func TestLogger_WithContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := NewLogger(LogConfig{Level: "debug", Writer: &buf})
	require.NoError(t, err)

	ctx := ContextWithRequestID(context.Background(), "req-123")
	ctx = ContextWithTraceIDs(ctx, "trace-456", "span-789")

	logger.WithContext(ctx).Info("tagged")

	out := buf.String()
	assert.Contains(t, out, `"request_id":"req-123"`)
	assert.Contains(t, out, `"trace_id":"trace-456"`)
	assert.Contains(t, out, `"span_id":"span-789"`)
}

func TestLogger_WithContext_Empty(t *testing.T) {
	t.Parallel()

	logger := NopLogger()
	assert.Same(t, logger, logger.WithContext(context.Background()))
}

func TestContextValues_Empty(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	assert.Empty(t, RequestIDFromContext(ctx))
	traceID, spanID := TraceIDsFromContext(ctx)
	assert.Empty(t, traceID)
	assert.Empty(t, spanID)
}

func TestContextValues_Independent(t *testing.T) {
	t.Parallel()

	ctx := ContextWithTraceIDs(context.Background(), "t1", "s1")
	ctx = ContextWithRequestID(ctx, "r1")

	traceID, spanID := TraceIDsFromContext(ctx)
	assert.Equal(t, "r1", RequestIDFromContext(ctx))
	assert.Equal(t, "t1", traceID)
	assert.Equal(t, "s1", spanID)
}

func TestGlobalLogger(t *testing.T) {
	// Not parallel - modifies global state
	assert.NotNil(t, GetGlobalLogger())

	logger := NopLogger()
	SetGlobalLogger(logger)
	t.Cleanup(func() { SetGlobalLogger(nil) })

	assert.Same(t, logger, GetGlobalLogger())
}
