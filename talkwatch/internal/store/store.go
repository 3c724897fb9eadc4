// Package store provides the SQLite persistence layer for talkwatch:
// watched pages, the visit log, the seen-comment set, and the comment
// index backing the HTTP and MCP surfaces.
package store

import (
	"database/sql"

	"github.com/jwbth/talkpage/dbopen"
)

// Store is the talkwatch database handle.
type Store struct {
	DB *sql.DB
}

// Open opens (or creates) the talkwatch SQLite database at path and
// applies the schema.
func Open(path string, opts ...dbopen.Option) (*Store, error) {
	allOpts := append([]dbopen.Option{
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(Schema),
	}, opts...)

	db, err := dbopen.Open(path, allOpts...)
	if err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}
