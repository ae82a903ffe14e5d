package repository_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/meridianotes/chronicle/internal/database"
	"github.com/meridianotes/chronicle/internal/model"
	"github.com/meridianotes/chronicle/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuditRepo(t *testing.T) *repository.AuditRepository {
	t.Helper()
	db, err := database.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return repository.NewAuditRepository(db)
}

func sampleEntry(id, session string, ts time.Time) *model.AuditLogEntry {
	targetID := "note_1"
	path := "/notes/a.md"
	groupID := "grp_1"
	duration := int64(42)
	return &model.AuditLogEntry{
		ID:          id,
		Timestamp:   ts,
		SessionID:   session,
		ActionType:  model.ActionTypeContent,
		ActionName:  "content.update",
		TargetType:  model.TargetNote,
		TargetID:    &targetID,
		TargetPath:  &path,
		OldValue:    json.RawMessage(`{"v":1}`),
		NewValue:    json.RawMessage(`{"v":2}`),
		IsUndoable:  true,
		UndoGroupID: &groupID,
		DurationMs:  &duration,
		Source:      model.SourceUser,
	}
}

func TestInsertBatchPreservesAllFields(t *testing.T) {
	repo := newAuditRepo(t)
	ctx := context.Background()

	ts := time.Now().UTC().Truncate(time.Millisecond)
	want := sampleEntry("a1", "s1", ts)
	n, err := repo.InsertBatch(ctx, []*model.AuditLogEntry{want})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := repo.Query(ctx, model.AuditQueryOptions{SessionID: "s1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, want.ID, got[0].ID)
	assert.Equal(t, ts, got[0].Timestamp)
	assert.Equal(t, "content.update", got[0].ActionName)
	require.NotNil(t, got[0].TargetID)
	assert.Equal(t, "note_1", *got[0].TargetID)
	require.NotNil(t, got[0].TargetPath)
	assert.Equal(t, "/notes/a.md", *got[0].TargetPath)
	assert.JSONEq(t, `{"v":1}`, string(got[0].OldValue))
	assert.JSONEq(t, `{"v":2}`, string(got[0].NewValue))
	assert.True(t, got[0].IsUndoable)
	require.NotNil(t, got[0].UndoGroupID)
	assert.Equal(t, "grp_1", *got[0].UndoGroupID)
	require.NotNil(t, got[0].DurationMs)
	assert.Equal(t, int64(42), *got[0].DurationMs)
	assert.Equal(t, model.SourceUser, got[0].Source)
}

func TestQueryPathPrefixEscapesWildcards(t *testing.T) {
	repo := newAuditRepo(t)
	ctx := context.Background()

	now := time.Now().UTC()
	plain := sampleEntry("a1", "s1", now)
	plainPath := "/notes/100%/done.md"
	plain.TargetPath = &plainPath
	other := sampleEntry("a2", "s1", now.Add(time.Millisecond))
	otherPath := "/notes/100x/done.md"
	other.TargetPath = &otherPath

	_, err := repo.InsertBatch(ctx, []*model.AuditLogEntry{plain, other})
	require.NoError(t, err)

	// A literal % in the prefix must not act as a wildcard.
	got, err := repo.Query(ctx, model.AuditQueryOptions{TargetPathPrefix: "/notes/100%"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a1", got[0].ID)
}

func TestLastActivity(t *testing.T) {
	repo := newAuditRepo(t)
	ctx := context.Background()

	last, err := repo.LastActivity(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, last)

	older := time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)
	newer := older.Add(30 * time.Minute)
	_, err = repo.InsertBatch(ctx, []*model.AuditLogEntry{
		sampleEntry("a1", "s1", older),
		sampleEntry("a2", "s1", newer),
	})
	require.NoError(t, err)

	last, err = repo.LastActivity(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, newer, *last)
}

func TestDeleteOlderThan(t *testing.T) {
	repo := newAuditRepo(t)
	ctx := context.Background()

	now := time.Now().UTC()
	_, err := repo.InsertBatch(ctx, []*model.AuditLogEntry{
		sampleEntry("a1", "s1", now.AddDate(0, 0, -10)),
		sampleEntry("a2", "s1", now.AddDate(0, 0, -5)),
		sampleEntry("a3", "s1", now),
	})
	require.NoError(t, err)

	removed, err := repo.DeleteOlderThan(ctx, now.AddDate(0, 0, -7))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	remaining, err := repo.Query(ctx, model.AuditQueryOptions{})
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}
