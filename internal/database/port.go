package database

import (
	"context"
	"time"
)

// Row is one result row keyed by column name. Value types vary by
// driver; use the accessor methods rather than asserting directly.
type Row map[string]any

// Port is the abstract storage interface the engine runs against. Any
// backend offering these four operations with read-your-writes
// consistency within a session will do.
type Port interface {
	// ExecSchema executes a DDL statement (or a batch of them).
	ExecSchema(ctx context.Context, stmt string) error
	// Write executes a mutating statement and returns the number of
	// affected rows. Statements use `?` placeholders.
	Write(ctx context.Context, stmt string, args ...any) (int64, error)
	// QueryMany executes a query and returns all rows.
	QueryMany(ctx context.Context, stmt string, args ...any) ([]Row, error)
	// QueryOne executes a query and returns the first row, or nil if
	// the result set is empty.
	QueryOne(ctx context.Context, stmt string, args ...any) (Row, error)
}

// String returns the named column as a string, or "" if absent/null.
func (r Row) String(key string) string {
	switch v := r[key].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}

// StringPtr returns the named column as *string, or nil if absent/null.
func (r Row) StringPtr(key string) *string {
	if r[key] == nil {
		return nil
	}
	s := r.String(key)
	return &s
}

// Bytes returns the named column as a byte slice, or nil if absent/null.
func (r Row) Bytes(key string) []byte {
	switch v := r[key].(type) {
	case []byte:
		return v
	case string:
		if v == "" {
			return nil
		}
		return []byte(v)
	default:
		return nil
	}
}

// Int64 returns the named column as int64, or 0 if absent/null.
func (r Row) Int64(key string) int64 {
	switch v := r[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

// Int64Ptr returns the named column as *int64, or nil if absent/null.
func (r Row) Int64Ptr(key string) *int64 {
	if r[key] == nil {
		return nil
	}
	n := r.Int64(key)
	return &n
}

// Bool returns the named column as bool. Integer-backed booleans
// (SQLite) and native booleans (Postgres) are both handled.
func (r Row) Bool(key string) bool {
	switch v := r[key].(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case int:
		return v != 0
	default:
		return false
	}
}

// Time returns the named column, stored as epoch milliseconds, as a
// time.Time in UTC. The zero time is returned for absent/null values.
func (r Row) Time(key string) time.Time {
	if r[key] == nil {
		return time.Time{}
	}
	return time.UnixMilli(r.Int64(key)).UTC()
}
