// Package transcript implements the cross-chunk reconciliation primitives:
// aligning an independent diarization timeline onto transcribed lines,
// extending the session speaker registry, merging rolling summaries, and
// deduplicating action items. Everything here is a pure function over
// in-memory values; collaborator calls happen in the ingest layer.
package transcript
