// Package proxy forwards requests to the single configured backend.
//
// Forwarder wraps net/http/httputil.ReverseProxy: it strips hop-by-hop
// headers, sets X-Forwarded-*, flushes streamed responses, bounds each
// request with a timeout and answers 502 when the backend cannot be reached.
// It does no routing or load balancing.
package proxy
