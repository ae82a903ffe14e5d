package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/meridianotes/chronicle/internal/logger"
	"github.com/meridianotes/chronicle/internal/model"
	"github.com/meridianotes/chronicle/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeperRunsJobs(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.PruneInterval = 10 * time.Millisecond
	cfg.Session.SweepInterval = 10 * time.Millisecond
	env := newTestEnv(t, cfg)
	ctx := context.Background()

	// One prunable audit entry and one expired session.
	old := &model.AuditLogEntry{
		ID: "old", Timestamp: time.Now().UTC().AddDate(0, 0, -120),
		SessionID: "stale", ActionType: model.ActionTypeFile, ActionName: "file.save",
		TargetType: model.TargetNote, Source: model.SourceUser,
	}
	_, err := env.auditRepo.InsertBatch(ctx, []*model.AuditLogEntry{old})
	require.NoError(t, err)
	require.NotEmpty(t, env.undoSvc.Push(ctx, "stale", model.PushInput{
		AuditLogID: "old", TargetType: model.TargetNote, TargetID: "note_1",
	}))

	sweeper := service.NewSweeper(env.auditSvc, env.sessionSvc, nil, cfg, logger.Nop())

	runCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	sweeper.Run(runCtx)

	assert.Empty(t, env.auditSvc.Query(ctx, model.AuditQueryOptions{SessionID: "stale"}))
	assert.Equal(t, int64(0), env.undoSvc.StackInfo(ctx, "stale").TotalEntries)
}
