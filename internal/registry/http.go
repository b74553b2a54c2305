package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vyrodovalexey/signgw/internal/circuitbreaker"
	"github.com/vyrodovalexey/signgw/internal/observability"
)

const (
	resolvePath      = "/interfaces/resolve"
	maxResponseBytes = 64 << 10
)

// HTTPRegistry asks a remote registry service over HTTP. Calls go through a
// circuit breaker; a not-found answer does not count as a failure.
type HTTPRegistry struct {
	baseURL string
	prefix  string
	client  *http.Client
	breaker *circuitbreaker.Breaker
	logger  observability.Logger
}

// HTTPOption configures an HTTPRegistry.
type HTTPOption func(*HTTPRegistry)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(r *HTTPRegistry) {
		r.client = client
	}
}

// WithBreaker sets the circuit breaker guarding remote calls.
func WithBreaker(b *circuitbreaker.Breaker) HTTPOption {
	return func(r *HTTPRegistry) {
		r.breaker = b
	}
}

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) HTTPOption {
	return func(r *HTTPRegistry) {
		r.logger = logger
	}
}

// NewHTTPRegistry creates a client for the registry service at baseURL.
func NewHTTPRegistry(baseURL, prefix string, opts ...HTTPOption) (*HTTPRegistry, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid registry base URL %q", baseURL)
	}

	r := &HTTPRegistry{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		prefix:  prefix,
		client:  &http.Client{Timeout: 5 * time.Second},
		logger:  observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.breaker == nil {
		r.breaker = circuitbreaker.New("interface-registry", 5, 30*time.Second,
			circuitbreaker.WithLogger(r.logger),
			circuitbreaker.WithIsSuccessful(isNotFound),
		)
	}
	return r, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Resolve implements Registry. The lookup key is sent as url and the raw
// request path as path.
func (r *HTTPRegistry) Resolve(ctx context.Context, path, method string) (*InterfaceDescriptor, error) {
	var desc *InterfaceDescriptor
	err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		d, err := r.fetch(ctx, path, normalizeMethod(method))
		if err != nil {
			return err
		}
		desc = d
		return nil
	})
	if err == nil {
		return desc, nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnavailable) {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
}

func (r *HTTPRegistry) fetch(ctx context.Context, path, method string) (*InterfaceDescriptor, error) {
	q := url.Values{}
	q.Set("url", r.prefix+path)
	q.Set("path", path)
	q.Set("method", method)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+resolvePath+"?"+q.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	observability.InjectTraceContext(ctx, req.Header)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, fmt.Errorf("%s %s: %w", method, r.prefix+path, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, fmt.Errorf("%w: registry returned status %d", ErrUnavailable, resp.StatusCode)
	}

	var d InterfaceDescriptor
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&d); err != nil {
		return nil, fmt.Errorf("%w: invalid registry response: %w", ErrUnavailable, err)
	}
	if d.ID == "" {
		return nil, fmt.Errorf("%w: registry response has no interface id", ErrUnavailable)
	}
	d.Method = normalizeMethod(d.Method)
	return &d, nil
}

// Ping checks that the registry service answers.
func (r *HTTPRegistry) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/health", http.NoBody)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("registry health returned status %d", resp.StatusCode)
	}
	return nil
}

// Close implements Registry.
func (r *HTTPRegistry) Close() error {
	r.client.CloseIdleConnections()
	return nil
}
