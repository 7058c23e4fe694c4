package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ghedit-go/internal/database/migrations"
	"ghedit-go/internal/ws"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Operation status values recorded in the journal.
const (
	StatusRunning  = "running"
	StatusSuccess  = "success"
	StatusConflict = "conflict"
	StatusError    = "error"
)

// SyncOperation is one journal entry for a CLI command that touched
// workspace state or the remote.
type SyncOperation struct {
	ID         int64
	RunID      string
	Operation  string
	Parameters string
	StartedAt  time.Time
	FinishedAt sql.NullTime
	Status     string
}

// SQLiteDatabase holds the persisted workspace documents and the operation journal.
type SQLiteDatabase struct {
	db    *sql.DB
	clock ws.Clock
}

// NewSQLiteDatabase opens the database at path, or an in-memory database
// for ":memory:".
func NewSQLiteDatabase(path string, clock ws.Clock) (*SQLiteDatabase, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if clock == nil {
		clock = ws.RealClock{}
	}
	return &SQLiteDatabase{db: db, clock: clock}, nil
}

// dsn adds the connection settings to path. They are applied by the driver
// to every pooled connection. Several ghedit processes may share the file,
// so a locked database is waited on for up to five seconds.
func dsn(path string) string {
	return path + "?_foreign_keys=on&_busy_timeout=5000"
}

// Snapshot documents

// LoadSnapshot returns the document stored under key, or nil when there is none.
func (s *SQLiteDatabase) LoadSnapshot(ctx context.Context, key string) ([]byte, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, "SELECT document FROM snapshots WHERE key = ?", key).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading snapshot %q: %w", key, err)
	}
	return doc, nil
}

// SaveSnapshot stores doc under key, replacing any previous document.
func (s *SQLiteDatabase) SaveSnapshot(ctx context.Context, key string, doc []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (key, document, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at`,
		key, doc, s.clock.Now().UTC())
	if err != nil {
		return fmt.Errorf("saving snapshot %q: %w", key, err)
	}
	return nil
}

// Operation journal

func (s *SQLiteDatabase) CreateSyncOperation(ctx context.Context, runID, operation, parameters string) (*SyncOperation, error) {
	op := &SyncOperation{
		RunID:      runID,
		Operation:  operation,
		Parameters: parameters,
		StartedAt:  s.clock.Now().UTC(),
		Status:     StatusRunning,
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO sync_operations (run_id, operation, parameters, started_at, status) VALUES (?, ?, ?, ?, ?)",
		op.RunID, op.Operation, op.Parameters, op.StartedAt, op.Status)
	if err != nil {
		return nil, fmt.Errorf("creating sync operation: %w", err)
	}
	op.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading sync operation id: %w", err)
	}
	return op, nil
}

func (s *SQLiteDatabase) FinishSyncOperation(ctx context.Context, id int64, status string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE sync_operations SET finished_at = ?, status = ? WHERE id = ?",
		s.clock.Now().UTC(), status, id)
	if err != nil {
		return fmt.Errorf("finishing sync operation: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finishing sync operation: no operation with id %d", id)
	}
	return nil
}

// ListSyncOperations returns the most recent operations, newest first.
func (s *SQLiteDatabase) ListSyncOperations(ctx context.Context, limit int) ([]*SyncOperation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, operation, parameters, started_at, finished_at, status
		FROM sync_operations ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sync operations: %w", err)
	}
	defer rows.Close()

	var ops []*SyncOperation
	for rows.Next() {
		op := &SyncOperation{}
		if err := rows.Scan(&op.ID, &op.RunID, &op.Operation, &op.Parameters, &op.StartedAt, &op.FinishedAt, &op.Status); err != nil {
			return nil, fmt.Errorf("scanning sync operation: %w", err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing sync operations: %w", err)
	}
	return ops, nil
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckStatus(s.db)
}

// Migrate applies pending migrations.
func (s *SQLiteDatabase) Migrate() error {
	return migrations.Up(s.db)
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// WorkspaceStorage stores the workspace document in the snapshots table
// under a fixed key.
type WorkspaceStorage struct {
	db  *SQLiteDatabase
	key string
}

func NewWorkspaceStorage(db *SQLiteDatabase, key string) *WorkspaceStorage {
	return &WorkspaceStorage{db: db, key: key}
}

func (w *WorkspaceStorage) Load(ctx context.Context) ([]byte, error) {
	return w.db.LoadSnapshot(ctx, w.key)
}

func (w *WorkspaceStorage) Save(ctx context.Context, data []byte) error {
	return w.db.SaveSnapshot(ctx, w.key, data)
}

var _ ws.WorkspaceStorage = (*WorkspaceStorage)(nil)
