package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/meridianotes/chronicle/internal/database"
	"github.com/meridianotes/chronicle/internal/model"
)

// UndoRepository handles undo stack and metadata persistence. Metadata
// rows are always deleted before their owning stack rows; the backing
// store has no cascading delete, so the ordering here is the only thing
// preventing orphans.
type UndoRepository struct {
	db database.Port
}

// NewUndoRepository creates a new UndoRepository
func NewUndoRepository(db database.Port) *UndoRepository {
	return &UndoRepository{db: db}
}

const undoColumns = `id, session_id, stack_position, audit_log_id, target_type,
		target_id, before_state, after_state, is_active`

// Insert stores a new stack entry.
func (r *UndoRepository) Insert(ctx context.Context, e *model.UndoStackEntry) error {
	stmt := `
		INSERT INTO undo_stack (` + undoColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Write(ctx, stmt,
		e.ID,
		e.SessionID,
		e.StackPosition,
		e.AuditLogID,
		e.TargetType,
		e.TargetID,
		rawToText(e.BeforeState),
		rawToText(e.AfterState),
		boolToInt(e.IsActive),
	)
	if err != nil {
		return fmt.Errorf("failed to insert undo entry: %w", err)
	}
	return nil
}

// Entry retrieves a stack entry by id.
func (r *UndoRepository) Entry(ctx context.Context, id string) (*model.UndoStackEntry, error) {
	row, err := r.db.QueryOne(ctx, `
		SELECT `+undoColumns+` FROM undo_stack WHERE id = ?
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get undo entry: %w", err)
	}
	if row == nil {
		return nil, ErrNotFound
	}
	return rowToUndoEntry(row), nil
}

// HighestActive returns the session's active entry with the greatest
// stack position, or nil if no entry is active.
func (r *UndoRepository) HighestActive(ctx context.Context, sessionID string) (*model.UndoStackEntry, error) {
	row, err := r.db.QueryOne(ctx, `
		SELECT `+undoColumns+` FROM undo_stack
		WHERE session_id = ? AND is_active = 1
		ORDER BY stack_position DESC
		LIMIT 1
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get highest active entry: %w", err)
	}
	if row == nil {
		return nil, nil
	}
	return rowToUndoEntry(row), nil
}

// LowestInactive returns the session's inactive entry with the smallest
// stack position, or nil if every entry is active. Inactive entries sit
// strictly above the cursor, so this is the next redo candidate.
func (r *UndoRepository) LowestInactive(ctx context.Context, sessionID string) (*model.UndoStackEntry, error) {
	row, err := r.db.QueryOne(ctx, `
		SELECT `+undoColumns+` FROM undo_stack
		WHERE session_id = ? AND is_active = 0
		ORDER BY stack_position ASC
		LIMIT 1
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get lowest inactive entry: %w", err)
	}
	if row == nil {
		return nil, nil
	}
	return rowToUndoEntry(row), nil
}

// CurrentPosition returns the stack position of the session's highest
// active entry, or -1 if none are active.
func (r *UndoRepository) CurrentPosition(ctx context.Context, sessionID string) (int64, error) {
	row, err := r.db.QueryOne(ctx, `
		SELECT COALESCE(MAX(stack_position), -1) AS position
		FROM undo_stack
		WHERE session_id = ? AND is_active = 1
	`, sessionID)
	if err != nil {
		return -1, fmt.Errorf("failed to get current position: %w", err)
	}
	if row == nil {
		return -1, nil
	}
	return row.Int64("position"), nil
}

// SetActive flips a single entry's active flag.
func (r *UndoRepository) SetActive(ctx context.Context, id string, active bool) error {
	_, err := r.db.Write(ctx, `UPDATE undo_stack SET is_active = ? WHERE id = ?`, boolToInt(active), id)
	if err != nil {
		return fmt.Errorf("failed to update undo entry: %w", err)
	}
	return nil
}

// DeleteAbove removes all of a session's entries with stack position
// greater than position, metadata rows first.
func (r *UndoRepository) DeleteAbove(ctx context.Context, sessionID string, position int64) error {
	_, err := r.db.Write(ctx, `
		DELETE FROM undo_metadata WHERE undo_stack_id IN (
			SELECT id FROM undo_stack WHERE session_id = ? AND stack_position > ?
		)
	`, sessionID, position)
	if err != nil {
		return fmt.Errorf("failed to delete redo branch metadata: %w", err)
	}
	_, err = r.db.Write(ctx, `
		DELETE FROM undo_stack WHERE session_id = ? AND stack_position > ?
	`, sessionID, position)
	if err != nil {
		return fmt.Errorf("failed to delete redo branch: %w", err)
	}
	return nil
}

// EvictOldest removes the session's n lowest-position entries, metadata
// rows first.
func (r *UndoRepository) EvictOldest(ctx context.Context, sessionID string, n int64) error {
	if n <= 0 {
		return nil
	}
	_, err := r.db.Write(ctx, `
		DELETE FROM undo_metadata WHERE undo_stack_id IN (
			SELECT id FROM undo_stack WHERE session_id = ?
			ORDER BY stack_position ASC LIMIT ?
		)
	`, sessionID, n)
	if err != nil {
		return fmt.Errorf("failed to evict metadata: %w", err)
	}
	_, err = r.db.Write(ctx, `
		DELETE FROM undo_stack WHERE id IN (
			SELECT id FROM undo_stack WHERE session_id = ?
			ORDER BY stack_position ASC LIMIT ?
		)
	`, sessionID, n)
	if err != nil {
		return fmt.Errorf("failed to evict undo entries: %w", err)
	}
	return nil
}

// Count returns the session's total entry count.
func (r *UndoRepository) Count(ctx context.Context, sessionID string) (int64, error) {
	row, err := r.db.QueryOne(ctx, `
		SELECT COUNT(*) AS n FROM undo_stack WHERE session_id = ?
	`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to count undo entries: %w", err)
	}
	if row == nil {
		return 0, nil
	}
	return row.Int64("n"), nil
}

// Info summarizes the session's stack.
func (r *UndoRepository) Info(ctx context.Context, sessionID string) (*model.UndoStackInfo, error) {
	row, err := r.db.QueryOne(ctx, `
		SELECT COUNT(*) AS total,
		       COALESCE(SUM(is_active), 0) AS active,
		       COALESCE(MAX(CASE WHEN is_active = 1 THEN stack_position END), -1) AS position
		FROM undo_stack
		WHERE session_id = ?
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get stack info: %w", err)
	}
	info := &model.UndoStackInfo{CurrentPosition: -1}
	if row != nil {
		info.TotalEntries = row.Int64("total")
		info.ActiveEntries = row.Int64("active")
		info.CurrentPosition = row.Int64("position")
	}
	return info, nil
}

// DeleteSession removes all of a session's stack entries, metadata rows
// first.
func (r *UndoRepository) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := r.db.Write(ctx, `
		DELETE FROM undo_metadata WHERE undo_stack_id IN (
			SELECT id FROM undo_stack WHERE session_id = ?
		)
	`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session metadata: %w", err)
	}
	_, err = r.db.Write(ctx, `DELETE FROM undo_stack WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session stack: %w", err)
	}
	return nil
}

// Sessions returns every session id that currently has stack entries.
func (r *UndoRepository) Sessions(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryMany(ctx, `SELECT DISTINCT session_id FROM undo_stack`)
	if err != nil {
		return nil, fmt.Errorf("failed to list stack sessions: %w", err)
	}
	sessions := make([]string, 0, len(rows))
	for _, row := range rows {
		sessions = append(sessions, row.String("session_id"))
	}
	return sessions, nil
}

// SetMetadata upserts one key/value metadata row for a stack entry.
func (r *UndoRepository) SetMetadata(ctx context.Context, stackID, key, value string) error {
	if key == "" {
		return fmt.Errorf("failed to set metadata: %w", ErrInvalidInput)
	}
	_, err := r.db.Write(ctx, `
		DELETE FROM undo_metadata WHERE undo_stack_id = ? AND key = ?
	`, stackID, key)
	if err != nil {
		return fmt.Errorf("failed to replace metadata: %w", err)
	}
	_, err = r.db.Write(ctx, `
		INSERT INTO undo_metadata (id, undo_stack_id, key, value)
		VALUES (?, ?, ?, ?)
	`, uuid.New().String(), stackID, key, value)
	if err != nil {
		return fmt.Errorf("failed to insert metadata: %w", err)
	}
	return nil
}

// Metadata returns all metadata rows for a stack entry.
func (r *UndoRepository) Metadata(ctx context.Context, stackID string) ([]*model.UndoMetadata, error) {
	rows, err := r.db.QueryMany(ctx, `
		SELECT id, undo_stack_id, key, value
		FROM undo_metadata
		WHERE undo_stack_id = ?
		ORDER BY key
	`, stackID)
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata: %w", err)
	}
	out := make([]*model.UndoMetadata, 0, len(rows))
	for _, row := range rows {
		out = append(out, &model.UndoMetadata{
			ID:          row.String("id"),
			UndoStackID: row.String("undo_stack_id"),
			Key:         row.String("key"),
			Value:       row.String("value"),
		})
	}
	return out, nil
}

func rowToUndoEntry(row database.Row) *model.UndoStackEntry {
	return &model.UndoStackEntry{
		ID:            row.String("id"),
		SessionID:     row.String("session_id"),
		StackPosition: row.Int64("stack_position"),
		AuditLogID:    row.String("audit_log_id"),
		TargetType:    row.String("target_type"),
		TargetID:      row.String("target_id"),
		BeforeState:   row.Bytes("before_state"),
		AfterState:    row.Bytes("after_state"),
		IsActive:      row.Bool("is_active"),
	}
}
