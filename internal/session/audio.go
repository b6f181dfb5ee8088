package session

import (
	"fmt"
	"os"
	"path/filepath"
)

// AudioStore keeps raw chunk audio on disk. It stands in for the external
// object storage; the consolidation core only ever sees the returned handle.
type AudioStore struct {
	dir string
}

// NewAudioStore creates the audio directory if needed.
func NewAudioStore(dir string) (*AudioStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audio directory: %w", err)
	}
	return &AudioStore{dir: dir}, nil
}

// Put writes one chunk's audio bytes and returns the storage handle.
// Retried submissions of the same (session, sequence) overwrite in place, so
// a retry after a mid-chunk failure is safe.
func (a *AudioStore) Put(sessionID string, sequence int, data []byte) (string, error) {
	if !IsValidID(sessionID) {
		return "", fmt.Errorf("cannot store audio for %q: %w", sessionID, ErrInvalidID)
	}

	sessionDir := filepath.Join(a.dir, sessionID)
	if err := os.MkdirAll(sessionDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create session audio directory: %w", err)
	}

	name := fmt.Sprintf("chunk-%06d.bin", sequence)
	path := filepath.Join(sessionDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write audio chunk: %w", err)
	}

	return filepath.Join(sessionID, name), nil
}
