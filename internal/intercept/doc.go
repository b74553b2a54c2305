// Package intercept observes streamed 200 responses without altering them.
//
// Every chunk is passed through unchanged and in order while the interceptor
// counts chunks and bytes and keeps a bounded UTF-8 prefix for logging. A
// completion callback fires exactly once, and only when the whole stream was
// delivered. Aborted or failed streams never complete.
package intercept
