// Package ingest implements the chunk consolidation orchestrator. It owns
// the per-session critical section: transcription and diarization run
// concurrently across chunks, but the apply phase that mutates one session's
// record (registry extension, line append, summary merge, action dedupe,
// completion flip) is serialized per session and saved with a version check.
package ingest
