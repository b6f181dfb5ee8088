package session

import (
	"context"
	"errors"
	"sort"
	"sync"
)

var (
	// ErrNotFound is returned when no session exists for the given id.
	ErrNotFound = errors.New("session not found")
	// ErrAlreadyExists is returned when creating a session whose id is taken.
	ErrAlreadyExists = errors.New("session already exists")
	// ErrVersionConflict is returned when a save names a version older than
	// the stored document; the caller must re-read and reapply.
	ErrVersionConflict = errors.New("session version conflict")
)

// Store persists session documents with conflict-detecting saves.
type Store interface {
	// Find returns a copy of the session with the given id.
	Find(ctx context.Context, id string) (*Session, error)

	// Create stores a new session. Fails with ErrAlreadyExists on id reuse.
	Create(ctx context.Context, s *Session) error

	// Save replaces the stored document if its version still equals
	// expectedVersion, then bumps the version. Fails with
	// ErrVersionConflict when another writer got there first.
	Save(ctx context.Context, s *Session, expectedVersion uint64) error

	// List returns all sessions, newest first.
	List(ctx context.Context) ([]*Session, error)

	// Close releases any underlying resources.
	Close() error
}

// MemoryStore is an in-process Store. It is the default backend and the one
// tests use.
type MemoryStore struct {
	sessions map[string]*Session
	mu       sync.RWMutex
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
	}
}

// Find implements Store.
func (m *MemoryStore) Find(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

// Create implements Store.
func (m *MemoryStore) Create(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[s.ID]; ok {
		return ErrAlreadyExists
	}
	m.sessions[s.ID] = s.Clone()
	return nil
}

// Save implements Store.
func (m *MemoryStore) Save(ctx context.Context, s *Session, expectedVersion uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.sessions[s.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Version != expectedVersion {
		return ErrVersionConflict
	}

	stored := s.Clone()
	stored.Version = expectedVersion + 1
	m.sessions[s.ID] = stored
	s.Version = stored.Version
	return nil
}

// List implements Store.
func (m *MemoryStore) List(ctx context.Context) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	return nil
}
