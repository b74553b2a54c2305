// Package auth decides whether a signed request may reach the backend.
//
// A request carries five headers: accessKey, requestParams, nonce, timestamp
// and sign. The Gate checks, in order and stopping at the first failure:
//
//  1. the source IP is in the allow-list
//  2. the access key resolves to a credential
//  3. the nonce is within [0, ceiling)
//  4. the timestamp is inside the freshness window
//  5. the signature over the canonical fields matches
//
// Every failure produces a Deny decision with a DenyReason; the caller
// answers 403 with an empty body. Secrets are never logged.
package auth
