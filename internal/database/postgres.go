package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/meridianotes/chronicle/internal/config"
)

// Postgres is the PostgreSQL storage port.
type Postgres struct {
	sqlPort
}

// NewPostgres opens a PostgreSQL-backed port.
func NewPostgres(cfg config.DatabaseConfig) (*Postgres, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections / 4)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Postgres{sqlPort{db: db, rebind: rebindPositional}}, nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Postgres) HealthCheck(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// DB exposes the underlying connection for the migrate tool.
func (p *Postgres) DB() *sql.DB {
	return p.db
}
