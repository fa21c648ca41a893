// Package prefs is a small key-value blob store for client-only state,
// e.g. the remembered session token. Values are opaque to this package.
package prefs

import (
	"errors"

	"github.com/cockroachdb/pebble"
)

type Store struct {
	db *pebble.DB
}

// Open opens (or creates) the preference database at path.
func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Get returns the blob stored under key, and whether it was present.
func (s *Store) Get(key string) ([]byte, bool, error) {
	val, closer, err := s.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	out := append([]byte(nil), val...)
	if err := closer.Close(); err != nil {
		return nil, false, err
	}
	return out, true, nil
}

func (s *Store) Set(key string, val []byte) error {
	return s.db.Set([]byte(key), val, pebble.Sync)
}

func (s *Store) Delete(key string) error {
	return s.db.Delete([]byte(key), pebble.Sync)
}

func (s *Store) Close() error {
	return s.db.Close()
}
