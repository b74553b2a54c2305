// Package middleware provides the net/http middleware that runs in front of
// the signing filter: panic recovery, request IDs, access logging and client
// IP extraction.
package middleware

import "net/http"

// Chain wraps h with mws so that mws[0] runs first.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
