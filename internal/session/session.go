package session

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rishabhpillay/transcript-server/internal/transcript"
)

// ErrInvalidID is returned when a session id cannot be used as a storage
// key or directory name.
var ErrInvalidID = errors.New("session id must not contain path separators")

// IsValidID reports whether id is safe to use as a storage key and as a
// directory name under the audio root. Caller-supplied ids reach the
// filesystem, so anything that could escape the root is rejected.
func IsValidID(id string) bool {
	if id == "" || id == "." || id == ".." || len(id) > 128 {
		return false
	}
	return !strings.ContainsAny(id, `/\`)
}

// Session is the accumulating document for one recording across all of its
// chunks. Transcript and AudioChunks are append-only; Speakers never shrinks
// and entries never change; Summary is replaced on every merge; IsComplete
// flips to true at most once.
type Session struct {
	ID          string                `json:"id"`
	Transcript  []transcript.Line     `json:"transcript"`
	Speakers    []string              `json:"speakers"`
	Summary     string                `json:"summary"`
	Actions     []string              `json:"actions"`
	AudioChunks []AudioChunkRef       `json:"audio_chunks"`
	IsComplete  bool                  `json:"is_complete"`

	// Version counts successful saves. Stores compare it on save to detect
	// concurrent writers.
	Version   uint64    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AudioChunkRef records where a chunk's raw audio ended up. Informational
// only; consolidation never reads the bytes back.
type AudioChunkRef struct {
	Sequence  int    `json:"sequence"`
	Handle    string `json:"handle"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
}

// New creates an empty session. When id is empty a fresh UUID is assigned.
func New(id string) *Session {
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()
	return &Session{
		ID:          id,
		Transcript:  []transcript.Line{},
		Speakers:    []string{},
		Actions:     []string{},
		AudioChunks: []AudioChunkRef{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Clone returns a deep copy so callers can mutate freely without aliasing
// store-held state.
func (s *Session) Clone() *Session {
	out := *s
	out.Transcript = append([]transcript.Line{}, s.Transcript...)
	out.Speakers = append([]string{}, s.Speakers...)
	out.Actions = append([]string{}, s.Actions...)
	out.AudioChunks = append([]AudioChunkRef{}, s.AudioChunks...)
	return &out
}

// HasSequence reports whether a chunk with the given sequence number already
// contributed transcript lines or audio to this session. Used for
// idempotency checks on client retries.
func (s *Session) HasSequence(sequence int) bool {
	for _, ref := range s.AudioChunks {
		if ref.Sequence == sequence {
			return true
		}
	}
	for _, ln := range s.Transcript {
		if ln.SourceSequence == sequence {
			return true
		}
	}
	return false
}
