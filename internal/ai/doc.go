// Package ai contains the HTTP clients for the remote AI collaborators:
// chunk transcription, speaker diarization, and semantic text merging.
// Each client performs a single attempt per call and validates the response
// into typed structs at the boundary; retry policy belongs to the caller.
package ai
