package model

import (
	"encoding/json"
	"time"
)

// AuditLogEntry represents one immutable audit log record.
// Entries are created once by LogAction and never mutated; only
// retention-based pruning removes them.
type AuditLogEntry struct {
	ID          string          `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	SessionID   string          `json:"sessionId"`
	ActionType  string          `json:"actionType"`
	ActionName  string          `json:"actionName"`
	TargetType  string          `json:"targetType"`
	TargetID    *string         `json:"targetId,omitempty"`
	TargetPath  *string         `json:"targetPath,omitempty"`
	OldValue    json.RawMessage `json:"oldValue,omitempty"`
	NewValue    json.RawMessage `json:"newValue,omitempty"`
	IsUndoable  bool            `json:"isUndoable"`
	UndoGroupID *string         `json:"undoGroupId,omitempty"`
	DurationMs  *int64          `json:"durationMs,omitempty"`
	Source      string          `json:"source"`
}

// LogActionInput carries the caller-supplied fields of a new audit entry.
// ID and Timestamp are assigned by the store.
type LogActionInput struct {
	SessionID   string
	ActionType  string
	ActionName  string
	TargetType  string
	TargetID    *string
	TargetPath  *string
	OldValue    json.RawMessage
	NewValue    json.RawMessage
	IsUndoable  bool
	UndoGroupID *string
	DurationMs  *int64
	Source      string
}

// SortOrder controls timestamp ordering of query results.
type SortOrder string

const (
	SortAscending  SortOrder = "asc"
	SortDescending SortOrder = "desc"
)

// AuditQueryOptions filters and paginates audit log queries.
// Zero-valued fields are ignored; an empty option set returns the most
// recent entries up to Limit.
type AuditQueryOptions struct {
	ActionType       string
	ActionName       string
	TargetType       string
	TargetID         string
	TargetPathPrefix string
	SessionID        string
	Source           string
	UndoableOnly     bool
	StartTime        *time.Time // inclusive
	EndTime          *time.Time // exclusive
	Limit            int
	Offset           int
	Order            SortOrder
}

// AuditStats aggregates counts over the audit log. On an empty log the
// counts are zero, the timestamps are nil and EntriesByType is empty.
type AuditStats struct {
	TotalEntries    int64            `json:"totalEntries"`
	UndoableEntries int64            `json:"undoableEntries"`
	UniqueSessions  int64            `json:"uniqueSessions"`
	OldestEntry     *time.Time       `json:"oldestEntry,omitempty"`
	NewestEntry     *time.Time       `json:"newestEntry,omitempty"`
	EntriesByType   map[string]int64 `json:"entriesByType"`
}

// Action type categories
const (
	ActionTypeFile       = "file"
	ActionTypeContent    = "content"
	ActionTypeMetadata   = "metadata"
	ActionTypeTree       = "tree"
	ActionTypeLearning   = "learning"
	ActionTypeNavigation = "navigation"
	ActionTypeSettings   = "settings"
	ActionTypeBookmark   = "bookmark"
	ActionTypeAPI        = "api"
)

// Action sources
const (
	SourceUser     = "user"
	SourceAutosave = "autosave"
	SourceSync     = "sync"
	SourceImport   = "import"
	SourceUndo     = "undo"
	SourceRedo     = "redo"
	SourceSystem   = "system"
	SourceAPI      = "api"
)

// Target types
const (
	TargetNote         = "note"
	TargetStrand       = "strand"
	TargetFolder       = "folder"
	TargetBookmark     = "bookmark"
	TargetHighlight    = "highlight"
	TargetFlashcard    = "flashcard"
	TargetPlannerEvent = "planner_event"
	TargetSetting      = "setting"
	TargetWorkspace    = "workspace"
)
