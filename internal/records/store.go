package records

import (
	"errors"
	"iter"
	"maps"

	"github.com/roach88/multiview/internal/ir"
)

var (
	// ErrDuplicateKey is returned by Insert when the key is already live.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrNotFound is returned by Get when the key is not live.
	ErrNotFound = errors.New("not found")
)

// Store maps keys to live records.
type Store struct {
	records map[string]ir.Record
}

// New creates an empty store.
func New() *Store {
	return &Store{records: make(map[string]ir.Record)}
}

// Insert stores rec under rec.Key. Fails with ErrDuplicateKey if the key is
// already live; the existing record is left untouched.
func (s *Store) Insert(rec ir.Record) error {
	if _, ok := s.records[rec.Key]; ok {
		return ErrDuplicateKey
	}
	s.records[rec.Key] = rec
	return nil
}

// Remove deletes key and reports whether it was live.
// Removing an absent key is a no-op.
func (s *Store) Remove(key string) bool {
	if _, ok := s.records[key]; !ok {
		return false
	}
	delete(s.records, key)
	return true
}

// Get returns the live record for key, or ErrNotFound.
func (s *Store) Get(key string) (ir.Record, error) {
	rec, ok := s.records[key]
	if !ok {
		return ir.Record{}, ErrNotFound
	}
	return rec, nil
}

// Contains reports whether key is live.
func (s *Store) Contains(key string) bool {
	_, ok := s.records[key]
	return ok
}

// IsLive reports whether a view entry still refers to a live record.
func (s *Store) IsLive(e ir.Entry) bool {
	rec, ok := s.records[e.Key]
	return ok && rec.Identity == e.Identity
}

// All yields every live record. Order is unspecified; consumers that need
// an order must go through a view.
func (s *Store) All() iter.Seq[ir.Record] {
	return maps.Values(s.records)
}

// Len returns the number of live records.
func (s *Store) Len() int {
	return len(s.records)
}
