package intercept

import (
	"context"
	"errors"
	"io"
	"iter"
	"net/http"

	"github.com/vyrodovalexey/signgw/internal/observability"
)

// DefaultMaxLogBytes bounds the decoded text kept for the completion log.
const DefaultMaxLogBytes = 1024

var errConsumerStopped = errors.New("consumer stopped reading")

// Interceptor creates per-response taps. It holds no per-stream state and is
// safe for concurrent use.
type Interceptor struct {
	logger      observability.Logger
	metrics     *Metrics
	maxLogBytes int
}

// Option configures an Interceptor.
type Option func(*Interceptor)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(i *Interceptor) {
		i.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *Metrics) Option {
	return func(i *Interceptor) {
		i.metrics = m
	}
}

// WithMaxLogBytes bounds the decoded body text that is logged. Zero disables
// body logging.
func WithMaxLogBytes(n int) Option {
	return func(i *Interceptor) {
		if n >= 0 {
			i.maxLogBytes = n
		}
	}
}

// New creates an Interceptor.
func New(opts ...Option) *Interceptor {
	i := &Interceptor{
		logger:      observability.NopLogger(),
		maxLogBytes: DefaultMaxLogBytes,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Tap decorates a 200 response stream. Every chunk is yielded unchanged and
// in order. onComplete runs once per iteration after the source is exhausted
// without error and every chunk was accepted by the consumer. Other statuses
// get chunks back untouched and never complete.
func (i *Interceptor) Tap(
	ctx context.Context,
	status int,
	chunks iter.Seq2[[]byte, error],
	onComplete func(),
) iter.Seq2[[]byte, error] {
	if status != http.StatusOK {
		return chunks
	}

	return func(yield func([]byte, error) bool) {
		st := newStreamState(ctx, i, status)

		for chunk, err := range chunks {
			if err != nil {
				st.abort(err)
				yield(nil, err)
				return
			}
			st.observe(chunk)
			if !yield(chunk, nil) {
				st.abort(errConsumerStopped)
				return
			}
		}

		if st.complete() && onComplete != nil {
			onComplete()
		}
	}
}

// WrapBody decorates a response body for a reverse proxy. The proxy reads it
// as usual; the caller reports the outcome of the write side with
// BodyTap.Finish.
func (i *Interceptor) WrapBody(ctx context.Context, status int, body io.ReadCloser) *BodyTap {
	t := &BodyTap{body: body}
	if status == http.StatusOK {
		t.state = newStreamState(ctx, i, status)
	}
	return t
}

// BodyTap is an io.ReadCloser that observes the bytes read through it. It
// belongs to one response and is not safe for concurrent use.
type BodyTap struct {
	body    io.ReadCloser
	state   *streamState
	eof     bool
	readErr error
}

// Read implements io.Reader.
func (t *BodyTap) Read(p []byte) (int, error) {
	n, err := t.body.Read(p)
	if n > 0 && t.state != nil {
		t.state.observe(p[:n])
	}
	switch {
	case err == io.EOF:
		t.eof = true
	case err != nil && t.readErr == nil:
		t.readErr = err
	}
	return n, err
}

// Close implements io.Closer.
func (t *BodyTap) Close() error {
	return t.body.Close()
}

// Finish ends the stream. ok reports whether every byte read was delivered
// to the client. It returns true at most once, and only for a 200 body that
// was read to EOF without error.
func (t *BodyTap) Finish(ok bool) bool {
	if t.state == nil {
		return false
	}

	switch {
	case t.readErr != nil:
		t.state.abort(t.readErr)
	case !t.eof:
		t.state.abort(io.ErrUnexpectedEOF)
	case !ok:
		t.state.abort(errConsumerStopped)
	default:
		return t.state.complete()
	}
	return false
}

// Chunks returns the number of chunks read so far.
func (t *BodyTap) Chunks() int64 {
	if t.state == nil {
		return 0
	}
	return t.state.chunks
}
