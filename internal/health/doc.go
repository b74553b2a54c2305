// Package health serves liveness and readiness probes for the admin
// listener. Readiness pings every registered collaborator (credential
// store, interface registry, invocation counter) concurrently.
package health
