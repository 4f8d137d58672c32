package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/seckatie/echoes/internal/core"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore keeps records in a private in-memory SQLite database. The pool
// is pinned to one connection: every connection to ":memory:" would
// otherwise open its own empty database.
type SQLiteStore struct {
	emitter

	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens an empty in-memory database. Call Migrate before use.
func NewSQLiteStore() (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)
	return &SQLiteStore{db: db}, nil
}

// Migrate applies the embedded schema migrations in name order.
func (s *SQLiteStore) Migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var migrations []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		migrations = append(migrations, entry.Name())
	}
	sort.Strings(migrations)

	for _, migration := range migrations {
		version := strings.TrimSuffix(migration, ".sql")

		var exists bool
		if err := s.db.QueryRow(
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = ?)`, version,
		).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check if migration has been applied: %w", err)
		}
		if exists {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + migration)
		if err != nil {
			return fmt.Errorf("failed to read migration file: %w", err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to apply migration %s: %w", version, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to mark migration as applied: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		s.logger().Debug("migration applied", "version", version)
	}
	return nil
}

func (s *SQLiteStore) Put(ctx context.Context, rec Record) error {
	if err := ValidateRecord(rec); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existing int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM resurrections WHERE id = ?`, rec.ID,
	).Scan(&existing); err != nil {
		return fmt.Errorf("failed to check resurrection: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO resurrections (id, url, status, created_at, era, tone, domain, greeting)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			url = excluded.url,
			status = CASE WHEN resurrections.status = ? THEN resurrections.status ELSE excluded.status END,
			created_at = excluded.created_at,
			era = excluded.era,
			tone = excluded.tone,
			domain = excluded.domain,
			greeting = excluded.greeting
	`,
		rec.ID,
		rec.URL,
		rec.Status,
		rec.CreatedAt.UTC().UnixNano(),
		rec.Personality.Era,
		rec.Personality.Tone,
		rec.Personality.Domain,
		rec.Personality.Greeting,
		core.StatusComplete,
	)
	if err != nil {
		return fmt.Errorf("failed to save resurrection: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE resurrection_id = ?`, rec.ID); err != nil {
		return fmt.Errorf("failed to reset snapshots: %w", err)
	}
	for i, snap := range rec.Snapshots {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO snapshots (resurrection_id, position, captured_at, original_url, status_code, mime_type, archive_url)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, rec.ID, i, snap.CapturedAt, snap.OriginalURL, snap.StatusCode, snap.MimeType, snap.ArchiveURL); err != nil {
			return fmt.Errorf("failed to save snapshot %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit resurrection: %w", err)
	}

	if existing == 0 {
		s.emit(ResurrectionCreatedEvent{Record: rec.Clone()})
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (Record, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx, `
		SELECT id, url, status, created_at, era, tone, domain, greeting
		FROM resurrections
		WHERE id = ?
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, notFound(id)
		}
		return Record{}, fmt.Errorf("failed to get resurrection: %w", err)
	}
	if err := s.loadSnapshots(ctx, &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, url, status, created_at, era, tone, domain, greeting
		FROM resurrections
		ORDER BY created_at DESC, seq DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list resurrections: %w", err)
	}

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan resurrection: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to list resurrections: %w", err)
	}
	// the single pooled connection must be released before the snapshot queries
	if err := rows.Close(); err != nil {
		s.logger().Warn("failed to close rows", "error", err)
	}

	for i := range out {
		if err := s.loadSnapshots(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *SQLiteStore) Complete(ctx context.Context, id string) (Record, bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE resurrections SET status = ? WHERE id = ? AND status <> ?`,
		core.StatusComplete, id, core.StatusComplete,
	)
	if err != nil {
		return Record{}, false, fmt.Errorf("failed to complete resurrection: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Record{}, false, fmt.Errorf("failed to determine rows affected: %w", err)
	}

	rec, err := s.Get(ctx, id)
	if err != nil {
		return Record{}, false, err
	}
	if affected == 0 {
		return rec, false, nil
	}

	s.emit(ResurrectionCompletedEvent{Record: rec.Clone()})
	return rec, true, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) loadSnapshots(ctx context.Context, rec *Record) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT captured_at, original_url, status_code, mime_type, archive_url
		FROM snapshots
		WHERE resurrection_id = ?
		ORDER BY position ASC
	`, rec.ID)
	if err != nil {
		return fmt.Errorf("failed to load snapshots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(&snap.CapturedAt, &snap.OriginalURL, &snap.StatusCode, &snap.MimeType, &snap.ArchiveURL); err != nil {
			return fmt.Errorf("failed to scan snapshot: %w", err)
		}
		rec.Snapshots = append(rec.Snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to load snapshots: %w", err)
	}
	if len(rec.Snapshots) > 0 {
		rec.SelectedSnapshot = rec.Snapshots[0]
	}
	return nil
}

func (s *SQLiteStore) logger() *slog.Logger {
	s.emitter.mu.RLock()
	defer s.emitter.mu.RUnlock()
	if s.emitter.logger != nil {
		return s.emitter.logger
	}
	return slog.Default()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	var createdAt int64
	err := row.Scan(
		&rec.ID,
		&rec.URL,
		&rec.Status,
		&createdAt,
		&rec.Personality.Era,
		&rec.Personality.Tone,
		&rec.Personality.Domain,
		&rec.Personality.Greeting,
	)
	if err != nil {
		return Record{}, err
	}
	rec.CreatedAt = time.Unix(0, createdAt).UTC()
	return rec, nil
}
