package service

import (
	"context"
	"time"

	"github.com/meridianotes/chronicle/internal/config"
	"github.com/meridianotes/chronicle/internal/database"
	"github.com/meridianotes/chronicle/internal/logger"
)

// Sweeper runs the periodic maintenance jobs: retention pruning of the
// audit log and reclamation of expired sessions' undo stacks. Both jobs
// only touch data strictly older than their cutoffs, so they run
// concurrently with live writers. With Redis configured, a lease keeps
// each job on at most one chronicled instance at a time; without it the
// in-process guards still prevent overlapping runs locally.
type Sweeper struct {
	auditSvc   *AuditService
	sessionSvc *SessionService
	rdb        *database.Redis // nil when Redis is disabled
	cfg        *config.Config
	log        *logger.Logger
}

// NewSweeper creates a new Sweeper
func NewSweeper(auditSvc *AuditService, sessionSvc *SessionService, rdb *database.Redis, cfg *config.Config, log *logger.Logger) *Sweeper {
	return &Sweeper{
		auditSvc:   auditSvc,
		sessionSvc: sessionSvc,
		rdb:        rdb,
		cfg:        cfg,
		log:        log.WithComponent("sweeper"),
	}
}

// Run blocks until ctx is cancelled, firing prune and session sweeps on
// their configured intervals.
func (s *Sweeper) Run(ctx context.Context) {
	pruneTicker := time.NewTicker(s.cfg.Audit.PruneInterval)
	defer pruneTicker.Stop()
	sweepTicker := time.NewTicker(s.cfg.Session.SweepInterval)
	defer sweepTicker.Stop()

	s.log.Info().
		Dur("prune_interval", s.cfg.Audit.PruneInterval).
		Dur("sweep_interval", s.cfg.Session.SweepInterval).
		Msg("sweeper started")

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("sweeper stopped")
			return
		case <-pruneTicker.C:
			s.runGuarded(ctx, "audit_prune", s.cfg.Audit.PruneInterval, func() {
				s.auditSvc.Prune(ctx, s.cfg.Audit.RetentionDays)
			})
		case <-sweepTicker.C:
			s.runGuarded(ctx, "session_sweep", s.cfg.Session.SweepInterval, func() {
				s.sessionSvc.ClearExpiredSessions(ctx, s.cfg.Session.MaxAgeHours)
			})
		}
	}
}

func (s *Sweeper) runGuarded(ctx context.Context, name string, ttl time.Duration, job func()) {
	if s.rdb != nil {
		ok, err := s.rdb.AcquireLease(ctx, name, ttl)
		if err != nil {
			s.log.Error().Err(err).Str("job", name).Msg("lease acquisition failed, skipping run")
			return
		}
		if !ok {
			s.log.Debug().Str("job", name).Msg("lease held elsewhere, skipping run")
			return
		}
		defer func() {
			if err := s.rdb.ReleaseLease(ctx, name); err != nil {
				s.log.Warn().Err(err).Str("job", name).Msg("lease release failed")
			}
		}()
	}
	job()
}
