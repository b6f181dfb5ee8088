// Package retry provides a bounded retry wrapper with exponential backoff
// for fallible collaborator calls. The wrapper assumes nothing about
// idempotency; callers must ensure retried operations are safe to repeat.
package retry
