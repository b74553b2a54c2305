// Package gateway implements the request filter that sits in front of the
// backend forwarder.
//
// For every request the Filter authenticates the signed headers through the
// access gate, resolves the called interface, forwards the request and, when
// a 200 response has been streamed to the client in full, submits one
// invocation event for metering.
//
// Authentication fails closed: any denial is answered with an empty 403 and
// nothing else happens. Interface resolution fails open: a missing, disabled
// or unreachable interface still forwards the request but disables metering
// for it.
package gateway
