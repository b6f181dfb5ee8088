package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/dgraph-io/badger/v3"
)

// BadgerStore is a durable Store backed by an embedded Badger database.
// Version checks run inside a single transaction, so concurrent savers for
// the same session serialize on the database rather than on luck.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) a Badger database under dir.
func NewBadgerStore(dir string) (*BadgerStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	opts := badger.DefaultOptions(filepath.Join(dir, "badger"))
	opts.Logger = nil // badger's own logging is too chatty for this service

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	return &BadgerStore{db: db}, nil
}

func sessionKey(id string) []byte {
	return []byte("session/" + id)
}

func decodeSession(val []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(val, &s); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &s, nil
}

// Find implements Store.
func (b *BadgerStore) Find(ctx context.Context, id string) (*Session, error) {
	var found *Session

	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			s, err := decodeSession(val)
			if err != nil {
				return err
			}
			found = s
			return nil
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	return found, nil
}

// Create implements Store.
func (b *BadgerStore) Create(ctx context.Context, s *Session) error {
	key := sessionKey(s.ID)

	return b.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return ErrAlreadyExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("failed to encode session: %w", err)
		}
		return txn.Set(key, data)
	})
}

// Save implements Store.
func (b *BadgerStore) Save(ctx context.Context, s *Session, expectedVersion uint64) error {
	key := sessionKey(s.ID)

	err := b.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var stored *Session
		if err := item.Value(func(val []byte) error {
			stored, err = decodeSession(val)
			return err
		}); err != nil {
			return err
		}

		if stored.Version != expectedVersion {
			return ErrVersionConflict
		}

		next := s.Clone()
		next.Version = expectedVersion + 1
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to encode session: %w", err)
		}
		if err := txn.Set(key, data); err != nil {
			return err
		}
		s.Version = next.Version
		return nil
	})

	return err
}

// List implements Store.
func (b *BadgerStore) List(ctx context.Context) ([]*Session, error) {
	var out []*Session

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("session/")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				s, err := decodeSession(val)
				if err != nil {
					return err
				}
				out = append(out, s)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Close implements Store.
func (b *BadgerStore) Close() error {
	return b.db.Close()
}
