package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/otpmail/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
			return nil, fmt.Errorf("creating audit directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// One connection: writes serialize anyway, and ":memory:" databases
	// are per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// RecordRetrieval appends one audit record. If the record has no ID, a
// new UUID is generated.
func (s *SQLiteStore) RecordRetrieval(ctx context.Context, r model.Retrieval) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	r.StartedAt = r.StartedAt.UTC()

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO retrievals (
			id, request_id, mode, email, outcome,
			match_count, rounds, error, started_at, duration_ms
		) VALUES (
			:id, :request_id, :mode, :email, :outcome,
			:match_count, :rounds, :error, :started_at, :duration_ms
		)`, r)
	if err != nil {
		return fmt.Errorf("recording retrieval %s: %w", r.ID, err)
	}

	return nil
}

// RecentRetrievals returns audit records matching filter, newest first.
func (s *SQLiteStore) RecentRetrievals(
	ctx context.Context,
	filter HistoryFilter,
) ([]model.Retrieval, error) {
	var conditions []string
	var args []interface{}

	if filter.Email != "" {
		conditions = append(conditions, "email = ?")
		args = append(args, filter.Email)
	}
	if filter.Mode != "" {
		conditions = append(conditions, "mode = ?")
		args = append(args, string(filter.Mode))
	}
	if filter.Outcome != "" {
		conditions = append(conditions, "outcome = ?")
		args = append(args, filter.Outcome)
	}

	query := "SELECT * FROM retrievals"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	query += fmt.Sprintf(" ORDER BY started_at DESC, rowid DESC LIMIT %d", limit)

	records := []model.Retrieval{}
	if err := s.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("querying retrievals: %w", err)
	}

	return records, nil
}
