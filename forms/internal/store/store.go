// Package store provides the SQLite persistence layer for comment-form
// sessions.
package store

import (
	"database/sql"

	"github.com/jwbth/talkpage/dbopen"
)

// Store is the comment-form session database handle.
type Store struct {
	DB *sql.DB
}

// Open opens (or creates) the session SQLite database at path and
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
