// Package store provides a persistence layer over the local database:
// per-environment DataHub connection settings and the audit history of
// migration runs.
package store

import (
	"github.com/datahub-tools/metamigrate/internal/db"
)

// Store is the root store that provides access to domain-specific stores.
type Store struct {
	db *db.DB

	Environments *EnvironmentStore
	Runs         *RunStore
}

// New creates a new Store wrapping the given database connection.
func New(database *db.DB) *Store {
	s := &Store{db: database}
	s.Environments = &EnvironmentStore{store: s}
	s.Runs = &RunStore{store: s}
	return s
}

// DB returns the underlying database connection (for read-only queries).
func (s *Store) DB() *db.DB {
	return s.db
}
