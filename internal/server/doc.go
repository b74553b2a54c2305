// Package server runs the gateway and admin HTTP listeners on gin engines.
//
// The gateway engine sends every path and method to a single net/http
// handler chain ending in the signing filter. The admin engine serves
// Prometheus metrics and the health probes.
package server
