package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// sqlPort adapts a database/sql connection to the Port interface. The
// engine writes statements with `?` placeholders; dialects that number
// their parameters supply a rebind function.
type sqlPort struct {
	db     *sql.DB
	rebind func(string) string
}

func (p *sqlPort) prepare(stmt string) string {
	if p.rebind == nil {
		return stmt
	}
	return p.rebind(stmt)
}

// ExecSchema executes a DDL statement batch.
func (p *sqlPort) ExecSchema(ctx context.Context, stmt string) error {
	if _, err := p.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// Write executes a mutating statement and returns the affected row count.
func (p *sqlPort) Write(ctx context.Context, stmt string, args ...any) (int64, error) {
	res, err := p.db.ExecContext(ctx, p.prepare(stmt), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to execute write: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected, nil
}

// QueryMany executes a query and returns all rows as column-name maps.
func (p *sqlPort) QueryMany(ctx context.Context, stmt string, args ...any) ([]Row, error) {
	rows, err := p.db.QueryContext(ctx, p.prepare(stmt), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var out []Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			row[col] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return out, nil
}

// QueryOne executes a query and returns the first row, or nil if none.
func (p *sqlPort) QueryOne(ctx context.Context, stmt string, args ...any) (Row, error) {
	rows, err := p.QueryMany(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Close releases the underlying connection pool.
func (p *sqlPort) Close() error {
	return p.db.Close()
}

// rebindPositional rewrites `?` placeholders to `$1..$N` for dialects
// with numbered parameters. The engine never embeds literal question
// marks in SQL text, so no quoting pass is needed.
func rebindPositional(stmt string) string {
	if !strings.ContainsRune(stmt, '?') {
		return stmt
	}
	var b strings.Builder
	b.Grow(len(stmt) + 8)
	n := 0
	for i := 0; i < len(stmt); i++ {
		if stmt[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(stmt[i])
	}
	return b.String()
}
