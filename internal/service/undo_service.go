package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/meridianotes/chronicle/internal/config"
	"github.com/meridianotes/chronicle/internal/logger"
	"github.com/meridianotes/chronicle/internal/model"
	"github.com/meridianotes/chronicle/internal/repository"
)

// UndoService owns the per-session undo/redo stacks. Mutations on one
// session are serialized through a per-session mutex (stack position
// assignment and the active-prefix invariant do not commute); distinct
// sessions proceed in parallel.
type UndoService struct {
	repo         *repository.UndoRepository
	log          *logger.Logger
	maxStackSize int64

	handlersMu sync.RWMutex
	handlers   map[string]model.ApplyStateHandler

	sessionsMu sync.Mutex
	sessions   map[string]*sync.Mutex
}

// NewUndoService creates a new UndoService
func NewUndoService(repo *repository.UndoRepository, cfg *config.Config, log *logger.Logger) *UndoService {
	return &UndoService{
		repo:         repo,
		log:          log.WithComponent("undo_service"),
		maxStackSize: int64(cfg.Undo.MaxStackSize),
		handlers:     make(map[string]model.ApplyStateHandler),
		sessions:     make(map[string]*sync.Mutex),
	}
}

// RegisterHandler installs the host-supplied apply-state handler for a
// target type, replacing any previous one.
func (s *UndoService) RegisterHandler(targetType string, h model.ApplyStateHandler) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	s.handlers[targetType] = h
}

func (s *UndoService) handler(targetType string) model.ApplyStateHandler {
	s.handlersMu.RLock()
	defer s.handlersMu.RUnlock()
	return s.handlers[targetType]
}

func (s *UndoService) sessionLock(sessionID string) *sync.Mutex {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	mu, ok := s.sessions[sessionID]
	if !ok {
		mu = &sync.Mutex{}
		s.sessions[sessionID] = mu
	}
	return mu
}

// Push appends a reversible transition at the top of the session's
// stack and returns the new entry's id ("" on storage failure). Any
// redo branch above the cursor is discarded first; if the stack would
// exceed its size cap, the oldest entries are evicted.
func (s *UndoService) Push(ctx context.Context, sessionID string, in model.PushInput) string {
	mu := s.sessionLock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	info, err := s.repo.Info(ctx, sessionID)
	if err != nil {
		s.log.Error().Err(err).Str("session_id", sessionID).Msg("push failed reading stack info")
		return ""
	}

	// Pushing after an undo abandons the redo branch. Linear history
	// only, no branching timelines.
	if info.TotalEntries > info.ActiveEntries {
		if err := s.repo.DeleteAbove(ctx, sessionID, info.CurrentPosition); err != nil {
			s.log.Error().Err(err).Str("session_id", sessionID).Msg("push failed truncating redo branch")
			return ""
		}
	}

	if s.maxStackSize > 0 && info.ActiveEntries+1 > s.maxStackSize {
		evict := info.ActiveEntries + 1 - s.maxStackSize
		if err := s.repo.EvictOldest(ctx, sessionID, evict); err != nil {
			s.log.Error().Err(err).Str("session_id", sessionID).Msg("push failed evicting oldest entries")
			return ""
		}
	}

	entry := &model.UndoStackEntry{
		ID:            uuid.New().String(),
		SessionID:     sessionID,
		StackPosition: info.CurrentPosition + 1,
		AuditLogID:    in.AuditLogID,
		TargetType:    in.TargetType,
		TargetID:      in.TargetID,
		BeforeState:   in.BeforeState,
		AfterState:    in.AfterState,
		IsActive:      true,
	}
	if err := s.repo.Insert(ctx, entry); err != nil {
		s.log.Error().Err(err).Str("session_id", sessionID).Msg("push failed inserting entry")
		return ""
	}
	return entry.ID
}

// Undo reverses the session's most recent active transition. The entry
// is flipped inactive only after the apply-state handler succeeds;
// handler or storage failure leaves the stack untouched.
func (s *UndoService) Undo(ctx context.Context, sessionID string) *model.UndoResult {
	mu := s.sessionLock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	entry, err := s.repo.HighestActive(ctx, sessionID)
	if err != nil {
		s.log.Error().Err(err).Str("session_id", sessionID).Msg("undo failed reading stack")
		return &model.UndoResult{Success: false, Error: "Storage unavailable"}
	}
	if entry == nil {
		return &model.UndoResult{Success: false, Error: model.ErrNothingToUndo}
	}

	handler := s.handler(entry.TargetType)
	if handler == nil {
		return &model.UndoResult{Success: false, Error: "No apply-state handler for target type " + entry.TargetType}
	}
	if !handler(ctx, entry.TargetType, entry.TargetID, entry.BeforeState, true) {
		return &model.UndoResult{Success: false, Error: "Apply state handler rejected undo"}
	}

	if err := s.repo.SetActive(ctx, entry.ID, false); err != nil {
		s.log.Error().Err(err).Str("session_id", sessionID).Msg("undo failed updating entry")
		return &model.UndoResult{Success: false, Error: "Storage unavailable"}
	}
	entry.IsActive = false
	return &model.UndoResult{Success: true, Entry: entry, AppliedState: entry.BeforeState}
}

// Redo replays the transition directly above the session's cursor.
func (s *UndoService) Redo(ctx context.Context, sessionID string) *model.UndoResult {
	mu := s.sessionLock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	entry, err := s.repo.LowestInactive(ctx, sessionID)
	if err != nil {
		s.log.Error().Err(err).Str("session_id", sessionID).Msg("redo failed reading stack")
		return &model.UndoResult{Success: false, Error: "Storage unavailable"}
	}
	if entry == nil {
		return &model.UndoResult{Success: false, Error: model.ErrNothingToRedo}
	}

	handler := s.handler(entry.TargetType)
	if handler == nil {
		return &model.UndoResult{Success: false, Error: "No apply-state handler for target type " + entry.TargetType}
	}
	if !handler(ctx, entry.TargetType, entry.TargetID, entry.AfterState, false) {
		return &model.UndoResult{Success: false, Error: "Apply state handler rejected redo"}
	}

	if err := s.repo.SetActive(ctx, entry.ID, true); err != nil {
		s.log.Error().Err(err).Str("session_id", sessionID).Msg("redo failed updating entry")
		return &model.UndoResult{Success: false, Error: "Storage unavailable"}
	}
	entry.IsActive = true
	return &model.UndoResult{Success: true, Entry: entry, AppliedState: entry.AfterState}
}

// ClearStack deletes all of the session's stack entries and their
// metadata, metadata rows strictly first. Returns true on success,
// including for an already-empty stack.
func (s *UndoService) ClearStack(ctx context.Context, sessionID string) bool {
	mu := s.sessionLock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	if err := s.repo.DeleteSession(ctx, sessionID); err != nil {
		s.log.Error().Err(err).Str("session_id", sessionID).Msg("clear stack failed")
		return false
	}
	return true
}

// StackInfo summarizes the session's stack. CurrentPosition is -1 for
// an empty or fully-undone stack.
func (s *UndoService) StackInfo(ctx context.Context, sessionID string) *model.UndoStackInfo {
	info, err := s.repo.Info(ctx, sessionID)
	if err != nil {
		s.log.Error().Err(err).Str("session_id", sessionID).Msg("stack info failed")
		return &model.UndoStackInfo{CurrentPosition: -1}
	}
	return info
}

// SetEntryMetadata attaches one key/value pair to a stack entry.
// Returns false if the entry does not exist or storage fails.
func (s *UndoService) SetEntryMetadata(ctx context.Context, entryID, key, value string) bool {
	if _, err := s.repo.Entry(ctx, entryID); err != nil {
		if err != repository.ErrNotFound {
			s.log.Error().Err(err).Str("entry_id", entryID).Msg("metadata lookup failed")
		}
		return false
	}
	if err := s.repo.SetMetadata(ctx, entryID, key, value); err != nil {
		s.log.Error().Err(err).Str("entry_id", entryID).Msg("metadata write failed")
		return false
	}
	return true
}

// EntryMetadata returns all metadata attached to a stack entry.
func (s *UndoService) EntryMetadata(ctx context.Context, entryID string) []*model.UndoMetadata {
	md, err := s.repo.Metadata(ctx, entryID)
	if err != nil {
		s.log.Error().Err(err).Str("entry_id", entryID).Msg("metadata read failed")
		return []*model.UndoMetadata{}
	}
	return md
}
