package transcript

// Line is one transcribed utterance. StartMs and EndMs are offsets from the
// start of the chunk that produced the line, not from the session start;
// SourceSequence identifies that chunk. Consumers needing absolute time must
// re-base using chunk durations.
type Line struct {
	Speaker        string `json:"speaker"`
	Text           string `json:"text"`
	StartMs        int64  `json:"start_ms"`
	EndMs          int64  `json:"end_ms"`
	Notes          string `json:"notes"`
	SourceSequence int    `json:"source_sequence"`
}

// Segment is one speaker-attributed span from the independent diarization
// signal, on the same chunk-relative timeline as Line.
type Segment struct {
	Speaker string `json:"speaker"`
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
}
