package proxy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/vyrodovalexey/signgw/internal/observability"
)

// Error types recorded in metrics.
const (
	errorTypeTimeout     = "timeout"
	errorTypeCanceled    = "canceled"
	errorTypeUnavailable = "unavailable"
)

// Forwarder proxies requests to one backend.
type Forwarder struct {
	target        *url.URL
	logger        observability.Logger
	metrics       *Metrics
	transport     http.RoundTripper
	flushInterval time.Duration
	timeout       time.Duration
}

// Option configures a Forwarder.
type Option func(*Forwarder)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(f *Forwarder) {
		f.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *Metrics) Option {
	return func(f *Forwarder) {
		f.metrics = m
	}
}

// WithTransport sets the transport used for backend calls.
func WithTransport(transport http.RoundTripper) Option {
	return func(f *Forwarder) {
		f.transport = transport
	}
}

// WithFlushInterval sets the flush interval for streamed responses. A
// negative value flushes after every write.
func WithFlushInterval(interval time.Duration) Option {
	return func(f *Forwarder) {
		f.flushInterval = interval
	}
}

// WithTimeout bounds each backend request. Zero disables the bound.
func WithTimeout(timeout time.Duration) Option {
	return func(f *Forwarder) {
		f.timeout = timeout
	}
}

// NewForwarder creates a forwarder for target, an absolute http or https URL.
func NewForwarder(target string, opts ...Option) (*Forwarder, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, errors.Join(ErrInvalidTarget, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.Join(ErrInvalidTarget, errors.New("target must be an absolute http(s) URL"))
	}

	f := &Forwarder{
		target:        u,
		logger:        observability.NopLogger(),
		flushInterval: -1,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Target returns the backend URL.
func (f *Forwarder) Target() *url.URL {
	return f.target
}

// ServeHTTP implements http.Handler.
func (f *Forwarder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.Forward(w, r, nil)
}

// Forward proxies r and streams the backend response to w. modifyResponse,
// when set, runs on the backend response before its headers are written; an
// error from it is answered like a backend failure. A client that goes away
// mid-stream makes the underlying ReverseProxy panic with
// http.ErrAbortHandler.
func (f *Forwarder) Forward(w http.ResponseWriter, r *http.Request, modifyResponse func(*http.Response) error) {
	if f.timeout > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), f.timeout)
		defer cancel()
		r = r.WithContext(ctx)
	}

	rp := &httputil.ReverseProxy{
		Rewrite:        f.rewrite,
		Transport:      f.transport,
		FlushInterval:  f.flushInterval,
		ModifyResponse: modifyResponse,
		ErrorHandler:   f.errorHandler,
	}

	start := time.Now()
	defer func() {
		if f.metrics != nil {
			f.metrics.backendDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
		}
	}()

	rp.ServeHTTP(w, r)
}

func (f *Forwarder) rewrite(pr *httputil.ProxyRequest) {
	pr.SetURL(f.target)
	pr.Out.Header["X-Forwarded-For"] = pr.In.Header["X-Forwarded-For"]
	pr.SetXForwarded()
}

func (f *Forwarder) errorHandler(w http.ResponseWriter, r *http.Request, err error) {
	fwdErr := &ForwardError{
		Method: r.Method,
		Path:   r.URL.Path,
		Target: f.target.String(),
		Cause:  err,
	}

	logger := f.logger.WithContext(r.Context())

	switch {
	case errors.Is(err, context.Canceled):
		f.recordError(errorTypeCanceled)
		logger.Debug("client canceled request", observability.Error(fwdErr))
		return

	case errors.Is(err, context.DeadlineExceeded):
		f.recordError(errorTypeTimeout)
		logger.Error("backend timeout", observability.Error(fwdErr))
		writeJSONError(w, http.StatusGatewayTimeout, `{"error":"gateway timeout","message":"backend did not respond in time"}`)

	default:
		f.recordError(errorTypeUnavailable)
		logger.Error("proxy error", observability.Error(fwdErr))
		writeJSONError(w, http.StatusBadGateway, `{"error":"bad gateway","message":"failed to proxy request"}`)
	}
}

func (f *Forwarder) recordError(errorType string) {
	if f.metrics != nil {
		f.metrics.errorsTotal.WithLabelValues(errorType).Inc()
	}
}

func writeJSONError(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
