package model

import (
	"context"
	"encoding/json"
)

// UndoStackEntry represents one reversible transition on a session's
// undo stack. BeforeState and AfterState are opaque snapshots; the
// engine never interprets them.
type UndoStackEntry struct {
	ID            string          `json:"id"`
	SessionID     string          `json:"sessionId"`
	StackPosition int64           `json:"stackPosition"`
	AuditLogID    string          `json:"auditLogId"`
	TargetType    string          `json:"targetType"`
	TargetID      string          `json:"targetId"`
	BeforeState   json.RawMessage `json:"beforeState,omitempty"`
	AfterState    json.RawMessage `json:"afterState,omitempty"`
	IsActive      bool            `json:"isActive"`
}

// UndoMetadata is an auxiliary key/value row attached to a stack entry.
// Metadata rows must be deleted before their owning stack entry.
type UndoMetadata struct {
	ID          string `json:"id"`
	UndoStackID string `json:"undoStackId"`
	Key         string `json:"key"`
	Value       string `json:"value"`
}

// PushInput carries the fields of a new undo stack entry. StackPosition
// and IsActive are assigned by the stack.
type PushInput struct {
	AuditLogID  string
	TargetType  string
	TargetID    string
	BeforeState json.RawMessage
	AfterState  json.RawMessage
}

// UndoResult reports the outcome of an undo or redo operation. Logical
// failures (nothing to undo, handler rejection) are carried in Error,
// never raised.
type UndoResult struct {
	Success      bool            `json:"success"`
	Entry        *UndoStackEntry `json:"entry,omitempty"`
	AppliedState json.RawMessage `json:"appliedState,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// UndoStackInfo summarizes a session's stack. CurrentPosition is the
// stack position of the highest active entry, or -1 if none are active.
type UndoStackInfo struct {
	TotalEntries    int64 `json:"totalEntries"`
	ActiveEntries   int64 `json:"activeEntries"`
	CurrentPosition int64 `json:"currentPosition"`
}

// ApplyStateHandler materializes an opaque snapshot back into the host
// application's live document model. Supplied by the host, one handler
// per target type. Handlers must tolerate being invoked repeatedly with
// the same state; the engine does not guarantee exactly-once delivery
// across process restarts.
type ApplyStateHandler func(ctx context.Context, targetType, targetID string, state json.RawMessage, isUndo bool) bool

// Undo/redo logical failure messages
const (
	ErrNothingToUndo = "Nothing to undo"
	ErrNothingToRedo = "Nothing to redo"
)
