package observability

import (
	"context"
	"io"
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logger passed to every component.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
	WithContext(ctx context.Context) Logger
	Sync() error
}

// Field represents a log field.
type Field = zap.Field

// Field constructors.
var (
	String   = zap.String
	Int      = zap.Int
	Int64    = zap.Int64
	Bool     = zap.Bool
	Error    = zap.Error
	Any      = zap.Any
	Duration = zap.Duration
	Time     = zap.Time
	Object   = zap.Object
)

// Log formats.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// LogConfig selects level, encoding and destination.
type LogConfig struct {
	Level  string
	Format string
	Output string

	// Writer overrides Output when set.
	Writer io.Writer
}

// DefaultLogConfig returns info-level JSON on stdout.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:  "info",
		Format: FormatJSON,
		Output: "stdout",
	}
}

type zapLogger struct {
	z *zap.Logger
}

// NewLogger builds a zap-backed Logger. Errors carry a stack trace; an
// unknown level is rejected.
func NewLogger(cfg LogConfig) (Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, err
		}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.MessageKey = "message"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeDuration = zapcore.MillisDurationEncoder

	var enc zapcore.Encoder
	switch cfg.Format {
	case FormatConsole:
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	default:
		enc = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, destination(cfg), level)
	z := zap.New(core,
		zap.AddCaller(),
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	return &zapLogger{z: z}, nil
}

func destination(cfg LogConfig) zapcore.WriteSyncer {
	switch {
	case cfg.Writer != nil:
		return zapcore.AddSync(cfg.Writer)
	case cfg.Output == "stderr":
		return zapcore.Lock(os.Stderr)
	default:
		return zapcore.Lock(os.Stdout)
	}
}

func (l *zapLogger) Debug(msg string, fields ...Field) { l.z.Debug(msg, fields...) }
func (l *zapLogger) Info(msg string, fields ...Field)  { l.z.Info(msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...Field)  { l.z.Warn(msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...Field) { l.z.Error(msg, fields...) }

func (l *zapLogger) With(fields ...Field) Logger {
	return &zapLogger{z: l.z.With(fields...)}
}

// WithContext adds the request, trace and span ids stored in ctx. It returns
// l unchanged when ctx carries none.
func (l *zapLogger) WithContext(ctx context.Context) Logger {
	ids := correlationFrom(ctx)
	var fields []Field
	if ids.requestID != "" {
		fields = append(fields, String("request_id", ids.requestID))
	}
	if ids.traceID != "" {
		fields = append(fields, String("trace_id", ids.traceID), String("span_id", ids.spanID))
	}
	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}

func (l *zapLogger) Sync() error {
	return l.z.Sync()
}

type correlationKey struct{}

// correlation holds the ids that tie log lines to a request and its trace.
type correlation struct {
	requestID string
	traceID   string
	spanID    string
}

func correlationFrom(ctx context.Context) correlation {
	c, _ := ctx.Value(correlationKey{}).(correlation)
	return c
}

// ContextWithRequestID stores the gateway request id in ctx.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	c := correlationFrom(ctx)
	c.requestID = requestID
	return context.WithValue(ctx, correlationKey{}, c)
}

// RequestIDFromContext returns the gateway request id, or "".
func RequestIDFromContext(ctx context.Context) string {
	return correlationFrom(ctx).requestID
}

// ContextWithTraceIDs stores the active trace and span ids in ctx.
func ContextWithTraceIDs(ctx context.Context, traceID, spanID string) context.Context {
	c := correlationFrom(ctx)
	c.traceID, c.spanID = traceID, spanID
	return context.WithValue(ctx, correlationKey{}, c)
}

// TraceIDsFromContext returns the trace and span ids stored in ctx.
func TraceIDsFromContext(ctx context.Context) (traceID, spanID string) {
	c := correlationFrom(ctx)
	return c.traceID, c.spanID
}

var globalLogger atomic.Pointer[Logger]

// SetGlobalLogger replaces the process-wide logger. nil restores the default.
func SetGlobalLogger(logger Logger) {
	if logger == nil {
		globalLogger.Store(nil)
		return
	}
	globalLogger.Store(&logger)
}

// GetGlobalLogger returns the process-wide logger, or a no-op logger when
// none was set.
func GetGlobalLogger() Logger {
	if l := globalLogger.Load(); l != nil {
		return *l
	}
	return NopLogger()
}

// NopLogger returns a logger that discards all output.
func NopLogger() Logger {
	return &zapLogger{z: zap.NewNop()}
}
