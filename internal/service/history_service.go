package service

import (
	"context"

	"github.com/meridianotes/chronicle/internal/logger"
	"github.com/meridianotes/chronicle/internal/model"
)

// HistoryService is the consumer-facing orchestration over the audit
// log and the undo stack: one call records the action and, when it is
// reversible, pushes the paired undo entry referencing the audit id.
type HistoryService struct {
	auditSvc *AuditService
	undoSvc  *UndoService
	log      *logger.Logger
}

// NewHistoryService creates a new HistoryService
func NewHistoryService(auditSvc *AuditService, undoSvc *UndoService, log *logger.Logger) *HistoryService {
	return &HistoryService{
		auditSvc: auditSvc,
		undoSvc:  undoSvc,
		log:      log.WithComponent("history_service"),
	}
}

// RecordAction logs an audit entry and, for undoable actions carrying a
// target id and both snapshots, pushes the paired stack entry. Returns
// the audit id and the undo entry id ("" when no stack entry was made).
func (h *HistoryService) RecordAction(ctx context.Context, in model.LogActionInput) (auditID, undoID string) {
	auditID = h.auditSvc.LogAction(ctx, in)

	if !in.IsUndoable || in.TargetID == nil {
		return auditID, ""
	}
	if len(in.OldValue) == 0 && len(in.NewValue) == 0 {
		return auditID, ""
	}

	undoID = h.undoSvc.Push(ctx, in.SessionID, model.PushInput{
		AuditLogID:  auditID,
		TargetType:  in.TargetType,
		TargetID:    *in.TargetID,
		BeforeState: in.OldValue,
		AfterState:  in.NewValue,
	})
	return auditID, undoID
}

// QueryRecent returns the most recent audit entries.
func (h *HistoryService) QueryRecent(ctx context.Context, limit int) []*model.AuditLogEntry {
	return h.auditSvc.Query(ctx, model.AuditQueryOptions{Limit: limit})
}

// QueryByType returns the most recent audit entries of one action type.
func (h *HistoryService) QueryByType(ctx context.Context, actionType string, limit int) []*model.AuditLogEntry {
	return h.auditSvc.Query(ctx, model.AuditQueryOptions{ActionType: actionType, Limit: limit})
}

// QueryForTarget returns the most recent audit entries touching one
// target.
func (h *HistoryService) QueryForTarget(ctx context.Context, targetType, targetID string, limit int) []*model.AuditLogEntry {
	return h.auditSvc.Query(ctx, model.AuditQueryOptions{TargetType: targetType, TargetID: targetID, Limit: limit})
}

// PushUndoableAction pushes a stack entry without logging a separate
// audit record, for callers that already hold an audit id.
func (h *HistoryService) PushUndoableAction(ctx context.Context, sessionID string, in model.PushInput) string {
	return h.undoSvc.Push(ctx, sessionID, in)
}

// Undo reverses the session's most recent transition.
func (h *HistoryService) Undo(ctx context.Context, sessionID string) *model.UndoResult {
	return h.undoSvc.Undo(ctx, sessionID)
}

// Redo replays the session's next undone transition.
func (h *HistoryService) Redo(ctx context.Context, sessionID string) *model.UndoResult {
	return h.undoSvc.Redo(ctx, sessionID)
}

// ClearStack discards the session's undo memory.
func (h *HistoryService) ClearStack(ctx context.Context, sessionID string) bool {
	return h.undoSvc.ClearStack(ctx, sessionID)
}

// GetStats returns aggregate audit log statistics.
func (h *HistoryService) GetStats(ctx context.Context) *model.AuditStats {
	return h.auditSvc.GetStats(ctx)
}

// GetStackInfo summarizes the session's undo stack.
func (h *HistoryService) GetStackInfo(ctx context.Context, sessionID string) *model.UndoStackInfo {
	return h.undoSvc.StackInfo(ctx, sessionID)
}
