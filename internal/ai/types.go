package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/rishabhpillay/transcript-server/internal/transcript"
)

// ChunkTranscription is the validated output of transcribing one chunk:
// speaker-labeled lines with chunk-relative timestamps, a summary of the
// chunk only, and its action items.
type ChunkTranscription struct {
	Lines   []transcript.Line
	Summary string
	Actions []string
}

// TranscribeRequest carries one chunk's audio plus the session context the
// model needs to keep speaker numbering and naming consistent.
type TranscribeRequest struct {
	Audio         []byte
	MimeType      string
	KnownSpeakers []string
	PriorSummary  string
}

// Transcriber transcribes and diarizes a single chunk.
type Transcriber interface {
	TranscribeChunk(ctx context.Context, req TranscribeRequest) (*ChunkTranscription, error)
}

// Diarizer produces an independent speaker-segmentation of a chunk.
type Diarizer interface {
	DiarizeChunk(ctx context.Context, audio []byte, mimeType string) ([]transcript.Segment, error)
}

// SummaryMerger folds a chunk summary into the running session summary.
type SummaryMerger interface {
	MergeSummaries(ctx context.Context, prev, current string) (string, error)
}

// ActionMerger semantically deduplicates the full action list at session
// finalization. It receives both the raw list and the syntactic baseline.
type ActionMerger interface {
	MergeActions(ctx context.Context, raw, baseline []string) ([]string, error)
}

// speakerInstruction builds the consistency contract sent with every chunk:
// keep "Speaker N" labels stable by voice, never reuse a label for a
// different voice, and number new voices after the known ones.
func speakerInstruction(known []string) string {
	if len(known) == 0 {
		return `No known speakers yet. Start labeling with "Speaker 1", then "Speaker 2", and so on.`
	}
	return fmt.Sprintf(
		`Known speakers so far (keep labels consistent by voice): %s. If a new voice appears, assign the next number (e.g. "Speaker %d"). Do NOT reuse a label for a different voice.`,
		strings.Join(known, ", "), len(known)+1,
	)
}

// wireLine mirrors the transcription response schema.
type wireLine struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
	Notes   string `json:"notes"`
}

func (w wireLine) validate(i int) error {
	if strings.TrimSpace(w.Speaker) == "" {
		return fmt.Errorf("line %d: empty speaker label", i)
	}
	if strings.TrimSpace(w.Text) == "" {
		return fmt.Errorf("line %d: empty text", i)
	}
	if w.StartMs < 0 {
		return fmt.Errorf("line %d: negative start_ms %d", i, w.StartMs)
	}
	if w.EndMs < w.StartMs {
		return fmt.Errorf("line %d: end_ms %d before start_ms %d", i, w.EndMs, w.StartMs)
	}
	return nil
}
