package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/meridianotes/chronicle/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedSession inserts audit activity with the given age and n stack
// entries for the session.
func seedSession(t *testing.T, env *testEnv, session string, age time.Duration, n int) {
	t.Helper()
	ctx := context.Background()

	entry := &model.AuditLogEntry{
		ID:         session + "-activity",
		Timestamp:  time.Now().UTC().Add(-age),
		SessionID:  session,
		ActionType: model.ActionTypeContent,
		ActionName: "content.update",
		TargetType: model.TargetNote,
		Source:     model.SourceUser,
	}
	_, err := env.auditRepo.InsertBatch(ctx, []*model.AuditLogEntry{entry})
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		id := env.undoSvc.Push(ctx, session, model.PushInput{
			AuditLogID: fmt.Sprintf("%s-audit-%d", session, i),
			TargetType: model.TargetNote,
			TargetID:   fmt.Sprintf("note_%d", i),
		})
		require.NotEmpty(t, id)
	}
}

func TestClearExpiredSessions(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	seedSession(t, env, "stale", 48*time.Hour, 3)
	seedSession(t, env, "fresh", time.Minute, 2)

	cleared := env.sessionSvc.ClearExpiredSessions(ctx, 24)
	assert.Equal(t, 1, cleared)

	assert.Equal(t, int64(0), env.undoSvc.StackInfo(ctx, "stale").TotalEntries)
	assert.Equal(t, int64(2), env.undoSvc.StackInfo(ctx, "fresh").TotalEntries)

	// The stale session's audit history survives reclamation.
	assert.Len(t, env.auditSvc.Query(ctx, model.AuditQueryOptions{SessionID: "stale"}), 1)
}

func TestClearExpiredSessionsNoActivity(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	// Stack entries without any audit trail: nothing says the session
	// is alive, so it is reclaimed.
	id := env.undoSvc.Push(ctx, "ghost", model.PushInput{
		AuditLogID: "a1", TargetType: model.TargetNote, TargetID: "note_1",
	})
	require.NotEmpty(t, id)

	assert.Equal(t, 1, env.sessionSvc.ClearExpiredSessions(ctx, 24))
	assert.Equal(t, int64(0), env.undoSvc.StackInfo(ctx, "ghost").TotalEntries)
}

func TestClearExpiredSessionsIdempotent(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	seedSession(t, env, "stale", 48*time.Hour, 2)

	assert.Equal(t, 1, env.sessionSvc.ClearExpiredSessions(ctx, 24))
	assert.Equal(t, 0, env.sessionSvc.ClearExpiredSessions(ctx, 24))
}

func TestClearExpiredSessionsDefaultsWindow(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	seedSession(t, env, "stale", 48*time.Hour, 1)

	// Non-positive windows fall back to the 24h default.
	assert.Equal(t, 1, env.sessionSvc.ClearExpiredSessions(ctx, 0))
}

func TestClearExpiredSessionsStorageFailure(t *testing.T) {
	env := newTestEnvWithPort(t, nil, faultPort{})
	assert.Equal(t, 0, env.sessionSvc.ClearExpiredSessions(context.Background(), 24))
}
