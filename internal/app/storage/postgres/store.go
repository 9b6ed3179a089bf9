// Package postgres implements the analytics backend's storage interfaces
// against PostgreSQL via sqlx, following the teacher's raw-SQL, struct-
// scanning store style.
package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/pulsewire/pulse/internal/app/storage"
)

// Store implements storage.UserStore, storage.ProjectStore,
// storage.EventStore, storage.RollupStore, and storage.AuditStore over a
// single *sqlx.DB.
type Store struct {
	db *sqlx.DB
}

var (
	_ storage.UserStore    = (*Store)(nil)
	_ storage.ProjectStore = (*Store)(nil)
	_ storage.EventStore   = (*Store)(nil)
	_ storage.RollupStore  = (*Store)(nil)
	_ storage.AuditStore   = (*Store)(nil)
)

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}
