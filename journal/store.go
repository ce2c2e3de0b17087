// Package journal is an optional SQLite-backed record of scope and task
// lifecycles. It consumes the event bus; the supervision core never reads
// from it and runs identically without it.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ScopeRecord is one journaled scope.
type ScopeRecord struct {
	ID        string
	Name      string
	Policy    string
	Outcome   string // final root state; empty while the scope is alive
	Error     string
	CreatedAt time.Time
}

// TaskRecord is one journaled task.
type TaskRecord struct {
	ID        string
	ScopeID   string
	ParentID  string // empty for top-level tasks and the scope root
	Name      string
	State     string
	Error     string
	CreatedAt time.Time
}

// Transition is one recorded state change.
type Transition struct {
	TaskID     string
	From       string
	To         string
	Reason     string
	RecordedAt time.Time
}

// Store persists lifecycle records in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates a SQLite-backed journal at the given path.
// Creates parent directories if needed. Enables WAL mode, foreign keys, and busy timeout.
func NewStore(ctx context.Context, dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}

	// Note: modernc.org/sqlite doesn't support _foreign_keys in connection string
	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return prepare(ctx, db)
}

// NewMemoryStore creates an in-memory journal for testing.
// Each store gets its own named shared-cache database so parallel tests do
// not see each other's rows.
func NewMemoryStore(ctx context.Context) (*Store, error) {
	connStr := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open memory database: %w", err)
	}

	return prepare(ctx, db)
}

func prepare(ctx context.Context, db *sql.DB) (*Store, error) {
	// Enable foreign keys via PRAGMA (required for modernc.org/sqlite)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// One writer connection keeps the recorder's inserts ordered; a second
	// serves concurrent reads.
	db.SetMaxOpenConns(2)

	store := &Store{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
