package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLite is the embedded storage port, used for single-node and local
// deployments.
type SQLite struct {
	sqlPort
}

// NewSQLite opens (creating if needed) a SQLite-backed port at path and
// applies the embedded schema.
func NewSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	return openSQLite(dsn)
}

// NewMemory opens an in-memory SQLite port with the schema applied. It
// serves as the storage double in tests: a real store with
// read-your-writes semantics and no on-disk state.
func NewMemory() (*SQLite, error) {
	return openSQLite("file::memory:?_pragma=foreign_keys(1)")
}

func openSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// database/sql pooling hands out separate connections, which for
	// SQLite would mean separate write locks (and for :memory:,
	// separate databases). One connection keeps the port serialized.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLite{sqlPort{db: db}}
	if err := s.ExecSchema(context.Background(), Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return s, nil
}

// HealthCheck verifies the database connection is healthy.
func (s *SQLite) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
