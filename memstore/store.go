// Package memstore provides the SQLite persistence layer for sfc: memory
// entries, user settings, and encrypted provider API keys.
//
// Reads and writes are single-statement atomic operations; the matching core
// treats the store as an opaque get/set collaborator and never drives
// multi-key transactions through it.
package memstore

import (
	"database/sql"

	"github.com/superfill/sfc/dbopen"
	"github.com/superfill/sfc/idgen"
)

// Store is the memstore database handle.
type Store struct {
	DB    *sql.DB
	newID idgen.Generator
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator sets a custom generator for memory IDs.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(s *Store) { s.newID = gen }
}

// New wraps an already-open database handle. Generated memory IDs carry the
// "mem_" prefix; imported entries keep the IDs they arrive with.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{DB: db, newID: idgen.Prefixed("mem_", idgen.Default)}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open opens (or creates) the sfc database at path, applies production
// pragmas and the memstore schema.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := dbopen.Open(path,
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(Schema),
	)
	if err != nil {
		return nil, err
	}
	return New(db, opts...), nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}
