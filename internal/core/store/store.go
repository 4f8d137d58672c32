// Package store holds resurrection records for the lifetime of the process.
//
// Two backends are provided: MemoryStore keeps records in a map, SQLiteStore
// keeps them in a private in-memory SQLite database. Neither survives a
// restart.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/seckatie/echoes/internal/core"
)

// ErrNotFound is returned when no record exists for an id.
var ErrNotFound = errors.New("resurrection not found")

// ErrInvalidRecord is returned when a record fails validation on Put.
var ErrInvalidRecord = errors.New("invalid resurrection record")

// Store is the resurrection record container.
type Store interface {
	// Put inserts or overwrites the record stored under rec.ID.
	Put(ctx context.Context, rec Record) error
	// Get returns a copy of the record, or ErrNotFound.
	Get(ctx context.Context, id string) (Record, error)
	// List returns every record, newest first.
	List(ctx context.Context) ([]Record, error)
	// Complete flips a pending record to complete. changed is false when the
	// record was already complete.
	Complete(ctx context.Context, id string) (rec Record, changed bool, err error)
	RegisterEventListener(kind EventKind, listener EventListener)
	Close() error
}

// ValidateRecord checks the invariants every stored record must satisfy.
func ValidateRecord(rec Record) error {
	if strings.TrimSpace(rec.ID) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidRecord)
	}
	if len(rec.Snapshots) == 0 {
		return fmt.Errorf("%w: no snapshots", ErrInvalidRecord)
	}
	if rec.SelectedSnapshot != rec.Snapshots[0] {
		return fmt.Errorf("%w: selected snapshot is not the first snapshot", ErrInvalidRecord)
	}
	switch rec.Status {
	case core.StatusPending, core.StatusComplete:
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidRecord, rec.Status)
	}
	return nil
}

// Open returns the backend registered under driver.
func Open(driver string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		s, err := NewSQLiteStore()
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}
