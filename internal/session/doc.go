// Package session defines the per-recording session document and its
// storage. Stores enforce optimistic concurrency: every save names the
// version the caller loaded and fails when the stored document has moved on,
// so concurrent chunk processors cannot silently lose each other's updates.
package session
