package service

import (
	"context"
	"time"

	"github.com/meridianotes/chronicle/internal/logger"
	"github.com/meridianotes/chronicle/internal/repository"
)

// DefaultSessionMaxAgeHours is the inactivity window after which a
// session's undo memory is reclaimed.
const DefaultSessionMaxAgeHours = 24

// SessionService reclaims abandoned sessions' undo memory. Audit
// history is never touched: undo state is worthless once the session is
// gone, the audit trail still feeds analytics.
type SessionService struct {
	auditRepo *repository.AuditRepository
	undoSvc   *UndoService
	log       *logger.Logger
}

// NewSessionService creates a new SessionService
func NewSessionService(auditRepo *repository.AuditRepository, undoSvc *UndoService, log *logger.Logger) *SessionService {
	return &SessionService{
		auditRepo: auditRepo,
		undoSvc:   undoSvc,
		log:       log.WithComponent("session_service"),
	}
}

// ClearExpiredSessions clears the undo stack of every session whose
// most recent audit activity predates the cutoff, and returns the
// number of sessions reclaimed. Sessions with stack entries but no
// audit history at all are treated as expired.
func (s *SessionService) ClearExpiredSessions(ctx context.Context, maxAgeHours int) int {
	if maxAgeHours <= 0 {
		maxAgeHours = DefaultSessionMaxAgeHours
	}
	cutoff := time.Now().UTC().Add(-time.Duration(maxAgeHours) * time.Hour)

	sessions, err := s.undoSvc.repo.Sessions(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("expired session sweep failed listing sessions")
		return 0
	}

	cleared := 0
	for _, sessionID := range sessions {
		last, err := s.auditRepo.LastActivity(ctx, sessionID)
		if err != nil {
			s.log.Error().Err(err).Str("session_id", sessionID).Msg("expired session sweep failed reading activity")
			continue
		}
		if last != nil && !last.Before(cutoff) {
			continue
		}
		if s.undoSvc.ClearStack(ctx, sessionID) {
			cleared++
		}
	}
	if cleared > 0 {
		s.log.Info().Int("sessions", cleared).Msg("expired sessions reclaimed")
	}
	return cleared
}
