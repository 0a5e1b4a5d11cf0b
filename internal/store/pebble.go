package store

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/stendavidson/jira-ticket-editor/internal/apperrors"
)

// PebbleStore implements Store on top of a Pebble embedded database. It is
// opened once at startup and lives for the whole process.
type PebbleStore struct {
	db *pebble.DB
}

func OpenPebble(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble database: %w", err)
	}

	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Close() error {
	return s.db.Close()
}

func (s *PebbleStore) Get(key string) (string, error) {
	value, closer, err := s.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return "", apperrors.ErrKeyNotFound
		}
		return "", fmt.Errorf("failed to read key %q: %w", key, err)
	}
	defer closer.Close() // nolint:errcheck

	// The returned slice is only valid until the closer is closed
	out := make([]byte, len(value))
	copy(out, value)

	return string(out), nil
}

func (s *PebbleStore) Set(key string, value string) error {
	if err := s.db.Set([]byte(key), []byte(value), pebble.Sync); err != nil {
		return fmt.Errorf("failed to write key %q: %w", key, err)
	}
	return nil
}

func (s *PebbleStore) Delete(key string) error {
	if err := s.db.Delete([]byte(key), pebble.Sync); err != nil {
		return fmt.Errorf("failed to delete key %q: %w", key, err)
	}
	return nil
}

// SetAll writes all pairs in a single synced batch, so a crash or error can
// never leave a partially written credential triple behind.
func (s *PebbleStore) SetAll(pairs map[string]string) error {
	batch := s.db.NewBatch()
	defer batch.Close() // nolint:errcheck

	for key, value := range pairs {
		if err := batch.Set([]byte(key), []byte(value), nil); err != nil {
			return fmt.Errorf("failed to stage key %q: %w", key, err)
		}
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

func (s *PebbleStore) DeleteAll(keys ...string) error {
	batch := s.db.NewBatch()
	defer batch.Close() // nolint:errcheck

	for _, key := range keys {
		if err := batch.Delete([]byte(key), nil); err != nil {
			return fmt.Errorf("failed to stage delete of key %q: %w", key, err)
		}
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}
