package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/meridianotes/chronicle/internal/config"
	"github.com/meridianotes/chronicle/internal/logger"
	"github.com/meridianotes/chronicle/internal/model"
	"github.com/meridianotes/chronicle/internal/repository"
)

// AuditService is the public face of the audit log. Storage errors are
// caught here, logged, and converted to safe defaults so that callers
// sitting in UI event handlers never need an error path for routine
// storage hiccups.
type AuditService struct {
	repo       *repository.AuditRepository
	log        *logger.Logger
	batchDelay time.Duration

	mu      sync.Mutex
	pending []*model.AuditLogEntry
	timer   *time.Timer
	lastTS  time.Time

	// flushMu serializes flushes; accumulation of the next batch may
	// overlap a running flush, but two flushes must not.
	flushMu sync.Mutex

	pruning atomic.Bool
}

// NewAuditService creates a new AuditService
func NewAuditService(repo *repository.AuditRepository, cfg *config.Config, log *logger.Logger) *AuditService {
	return &AuditService{
		repo:       repo,
		log:        log.WithComponent("audit_service"),
		batchDelay: cfg.Audit.BatchDelay,
	}
}

// LogAction records one audit entry and returns its id. The id and
// timestamp are assigned synchronously; the write itself is coalesced
// with other writes arriving within the batch delay window. With
// batching disabled the entry is written through before returning.
func (s *AuditService) LogAction(ctx context.Context, in model.LogActionInput) string {
	entry := &model.AuditLogEntry{
		ID:          uuid.New().String(),
		SessionID:   in.SessionID,
		ActionType:  in.ActionType,
		ActionName:  in.ActionName,
		TargetType:  in.TargetType,
		TargetID:    in.TargetID,
		TargetPath:  in.TargetPath,
		OldValue:    in.OldValue,
		NewValue:    in.NewValue,
		IsUndoable:  in.IsUndoable,
		UndoGroupID: in.UndoGroupID,
		DurationMs:  in.DurationMs,
		Source:      in.Source,
	}

	s.mu.Lock()
	// Timestamps are strictly monotonic per store so that batch order
	// survives a stable sort on timestamp. Truncated to the stored
	// millisecond granularity before the comparison, otherwise two
	// entries in the same millisecond would collide after a round trip.
	ts := time.Now().UTC().Truncate(time.Millisecond)
	if !ts.After(s.lastTS) {
		ts = s.lastTS.Add(time.Millisecond)
	}
	s.lastTS = ts
	entry.Timestamp = ts

	s.pending = append(s.pending, entry)
	if s.batchDelay > 0 {
		if s.timer == nil {
			s.timer = time.AfterFunc(s.batchDelay, func() {
				s.flush(context.Background())
			})
		}
		s.mu.Unlock()
		return entry.ID
	}
	s.mu.Unlock()

	s.flush(ctx)
	return entry.ID
}

// Flush forces a drain of any pending entries.
func (s *AuditService) Flush(ctx context.Context) {
	s.flush(ctx)
}

// Close drains pending entries on shutdown.
func (s *AuditService) Close() {
	s.flush(context.Background())
}

func (s *AuditService) flush(ctx context.Context) {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	batch := s.pending
	s.pending = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	written, err := s.repo.InsertBatch(ctx, batch)
	if err == nil {
		return
	}

	// Entries are never dropped: the unwritten tail goes back to the
	// front of the queue, ahead of anything logged during this flush,
	// and the next flush retries it.
	s.log.Error().Err(err).
		Int("written", written).
		Int("requeued", len(batch)-written).
		Msg("audit flush failed")

	s.mu.Lock()
	s.pending = append(batch[written:], s.pending...)
	if s.batchDelay > 0 && s.timer == nil {
		s.timer = time.AfterFunc(s.batchDelay, func() {
			s.flush(context.Background())
		})
	}
	s.mu.Unlock()
}

// Query returns audit entries matching opts, most recent first unless
// ascending order is requested. Pending entries are flushed first so a
// caller sees its own writes.
func (s *AuditService) Query(ctx context.Context, opts model.AuditQueryOptions) []*model.AuditLogEntry {
	s.flush(ctx)

	entries, err := s.repo.Query(ctx, opts)
	if err != nil {
		s.log.Error().Err(err).Msg("audit query failed")
		return []*model.AuditLogEntry{}
	}
	return entries
}

// GetStats returns aggregate counts over the audit log.
func (s *AuditService) GetStats(ctx context.Context) *model.AuditStats {
	s.flush(ctx)

	stats, err := s.repo.Stats(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("audit stats failed")
		return &model.AuditStats{EntriesByType: map[string]int64{}}
	}
	return stats
}

// Prune deletes entries older than now minus retentionDays and returns
// the number removed. Non-positive retention is rejected rather than
// read as "prune everything". At most one prune runs at a time; a
// concurrent call returns 0.
func (s *AuditService) Prune(ctx context.Context, retentionDays int) int64 {
	if retentionDays <= 0 {
		s.log.Warn().Int("retention_days", retentionDays).Msg("prune rejected: retention must be positive")
		return 0
	}
	if !s.pruning.CompareAndSwap(false, true) {
		s.log.Debug().Msg("prune already in flight")
		return 0
	}
	defer s.pruning.Store(false)

	s.flush(ctx)

	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	removed, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.log.Error().Err(err).Msg("audit prune failed")
		return 0
	}
	if removed > 0 {
		s.log.Info().Int64("removed", removed).Time("cutoff", cutoff).Msg("audit log pruned")
	}
	return removed
}
