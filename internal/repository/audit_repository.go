package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/meridianotes/chronicle/internal/database"
	"github.com/meridianotes/chronicle/internal/model"
)

// AuditRepository handles audit log persistence
type AuditRepository struct {
	db database.Port
}

// NewAuditRepository creates a new AuditRepository
func NewAuditRepository(db database.Port) *AuditRepository {
	return &AuditRepository{db: db}
}

const auditColumns = `id, timestamp, session_id, action_type, action_name, target_type,
		target_id, target_path, old_value, new_value, is_undoable, undo_group_id,
		duration_ms, source`

// InsertBatch inserts entries one by one in slice order. It returns the
// number of entries written; on failure the caller re-queues the
// remainder, so partial progress must be reported accurately.
func (r *AuditRepository) InsertBatch(ctx context.Context, entries []*model.AuditLogEntry) (int, error) {
	stmt := `
		INSERT INTO audit_log (` + auditColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for i, e := range entries {
		_, err := r.db.Write(ctx, stmt,
			e.ID,
			e.Timestamp.UnixMilli(),
			e.SessionID,
			e.ActionType,
			e.ActionName,
			e.TargetType,
			e.TargetID,
			e.TargetPath,
			rawToText(e.OldValue),
			rawToText(e.NewValue),
			boolToInt(e.IsUndoable),
			e.UndoGroupID,
			e.DurationMs,
			e.Source,
		)
		if err != nil {
			return i, fmt.Errorf("failed to insert audit entry: %w", err)
		}
	}
	return len(entries), nil
}

// Query returns audit entries matching opts, ordered by timestamp.
func (r *AuditRepository) Query(ctx context.Context, opts model.AuditQueryOptions) ([]*model.AuditLogEntry, error) {
	var (
		conds []string
		args  []any
	)
	if opts.ActionType != "" {
		conds = append(conds, "action_type = ?")
		args = append(args, opts.ActionType)
	}
	if opts.ActionName != "" {
		conds = append(conds, "action_name = ?")
		args = append(args, opts.ActionName)
	}
	if opts.TargetType != "" {
		conds = append(conds, "target_type = ?")
		args = append(args, opts.TargetType)
	}
	if opts.TargetID != "" {
		conds = append(conds, "target_id = ?")
		args = append(args, opts.TargetID)
	}
	if opts.TargetPathPrefix != "" {
		conds = append(conds, `target_path LIKE ? ESCAPE '\'`)
		args = append(args, escapeLike(opts.TargetPathPrefix)+"%")
	}
	if opts.SessionID != "" {
		conds = append(conds, "session_id = ?")
		args = append(args, opts.SessionID)
	}
	if opts.Source != "" {
		conds = append(conds, "source = ?")
		args = append(args, opts.Source)
	}
	if opts.UndoableOnly {
		conds = append(conds, "is_undoable = 1")
	}
	if opts.StartTime != nil {
		conds = append(conds, "timestamp >= ?")
		args = append(args, opts.StartTime.UnixMilli())
	}
	if opts.EndTime != nil {
		conds = append(conds, "timestamp < ?")
		args = append(args, opts.EndTime.UnixMilli())
	}

	stmt := "SELECT " + auditColumns + " FROM audit_log"
	if len(conds) > 0 {
		stmt += " WHERE " + strings.Join(conds, " AND ")
	}
	if opts.Order == model.SortAscending {
		stmt += " ORDER BY timestamp ASC"
	} else {
		stmt += " ORDER BY timestamp DESC"
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	stmt += " LIMIT ? OFFSET ?"
	args = append(args, limit, opts.Offset)

	rows, err := r.db.QueryMany(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}

	entries := make([]*model.AuditLogEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, rowToAuditEntry(row))
	}
	return entries, nil
}

// defaultQueryLimit caps unbounded queries.
const defaultQueryLimit = 100

// Stats computes aggregate counts over the whole log.
func (r *AuditRepository) Stats(ctx context.Context) (*model.AuditStats, error) {
	row, err := r.db.QueryOne(ctx, `
		SELECT COUNT(*) AS total,
		       COALESCE(SUM(is_undoable), 0) AS undoable,
		       COUNT(DISTINCT session_id) AS sessions,
		       MIN(timestamp) AS oldest,
		       MAX(timestamp) AS newest
		FROM audit_log
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit stats: %w", err)
	}

	stats := &model.AuditStats{
		EntriesByType: map[string]int64{},
	}
	if row != nil {
		stats.TotalEntries = row.Int64("total")
		stats.UndoableEntries = row.Int64("undoable")
		stats.UniqueSessions = row.Int64("sessions")
		if stats.TotalEntries > 0 {
			oldest := row.Time("oldest")
			newest := row.Time("newest")
			stats.OldestEntry = &oldest
			stats.NewestEntry = &newest
		}
	}

	rows, err := r.db.QueryMany(ctx, `
		SELECT action_type, COUNT(*) AS n
		FROM audit_log
		GROUP BY action_type
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit type counts: %w", err)
	}
	for _, row := range rows {
		stats.EntriesByType[row.String("action_type")] = row.Int64("n")
	}
	return stats, nil
}

// DeleteOlderThan removes entries with timestamp strictly before cutoff
// and returns the number removed.
func (r *AuditRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	affected, err := r.db.Write(ctx, `DELETE FROM audit_log WHERE timestamp < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune audit log: %w", err)
	}
	return affected, nil
}

// LastActivity returns the timestamp of a session's most recent audit
// entry, or nil if the session has none.
func (r *AuditRepository) LastActivity(ctx context.Context, sessionID string) (*time.Time, error) {
	row, err := r.db.QueryOne(ctx, `
		SELECT MAX(timestamp) AS last_activity
		FROM audit_log
		WHERE session_id = ?
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query session activity: %w", err)
	}
	if row == nil || row["last_activity"] == nil {
		return nil, nil
	}
	t := row.Time("last_activity")
	return &t, nil
}

func rowToAuditEntry(row database.Row) *model.AuditLogEntry {
	return &model.AuditLogEntry{
		ID:          row.String("id"),
		Timestamp:   row.Time("timestamp"),
		SessionID:   row.String("session_id"),
		ActionType:  row.String("action_type"),
		ActionName:  row.String("action_name"),
		TargetType:  row.String("target_type"),
		TargetID:    row.StringPtr("target_id"),
		TargetPath:  row.StringPtr("target_path"),
		OldValue:    row.Bytes("old_value"),
		NewValue:    row.Bytes("new_value"),
		IsUndoable:  row.Bool("is_undoable"),
		UndoGroupID: row.StringPtr("undo_group_id"),
		DurationMs:  row.Int64Ptr("duration_ms"),
		Source:      row.String("source"),
	}
}

// rawToText converts an opaque snapshot to a nullable TEXT parameter.
func rawToText(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// escapeLike escapes LIKE metacharacters in a literal prefix.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}
