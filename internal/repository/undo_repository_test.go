package repository_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/meridianotes/chronicle/internal/database"
	"github.com/meridianotes/chronicle/internal/model"
	"github.com/meridianotes/chronicle/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUndoRepo(t *testing.T) (*repository.UndoRepository, database.Port) {
	t.Helper()
	db, err := database.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return repository.NewUndoRepository(db), db
}

func insertEntries(t *testing.T, repo *repository.UndoRepository, session string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		err := repo.Insert(context.Background(), &model.UndoStackEntry{
			ID:            fmt.Sprintf("%s-e%d", session, i),
			SessionID:     session,
			StackPosition: int64(i),
			AuditLogID:    fmt.Sprintf("%s-a%d", session, i),
			TargetType:    model.TargetNote,
			TargetID:      fmt.Sprintf("note_%d", i),
			IsActive:      true,
		})
		require.NoError(t, err)
	}
}

func TestEmptyStackQueries(t *testing.T) {
	repo, _ := newUndoRepo(t)
	ctx := context.Background()

	entry, err := repo.HighestActive(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, entry)

	entry, err = repo.LowestInactive(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, entry)

	pos, err := repo.CurrentPosition(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(-1), pos)

	_, err = repo.Entry(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestActiveBoundaryQueries(t *testing.T) {
	repo, _ := newUndoRepo(t)
	ctx := context.Background()

	insertEntries(t, repo, "s1", 4)
	require.NoError(t, repo.SetActive(ctx, "s1-e3", false))
	require.NoError(t, repo.SetActive(ctx, "s1-e2", false))

	highest, err := repo.HighestActive(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, highest)
	assert.Equal(t, int64(1), highest.StackPosition)

	lowest, err := repo.LowestInactive(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, lowest)
	assert.Equal(t, int64(2), lowest.StackPosition)

	pos, err := repo.CurrentPosition(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), pos)
}

func TestDeleteAboveRemovesMetadata(t *testing.T) {
	repo, db := newUndoRepo(t)
	ctx := context.Background()

	insertEntries(t, repo, "s1", 3)
	require.NoError(t, repo.SetMetadata(ctx, "s1-e2", "label", "discarded"))
	require.NoError(t, repo.SetMetadata(ctx, "s1-e0", "label", "kept"))

	require.NoError(t, repo.DeleteAbove(ctx, "s1", 1))

	count, err := repo.Count(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// No orphaned metadata for the deleted entry.
	row, err := db.QueryOne(ctx, `SELECT id FROM undo_metadata WHERE undo_stack_id = ?`, "s1-e2")
	require.NoError(t, err)
	assert.Nil(t, row)

	md, err := repo.Metadata(ctx, "s1-e0")
	require.NoError(t, err)
	assert.Len(t, md, 1)
}

func TestSetMetadataRejectsEmptyKey(t *testing.T) {
	repo, _ := newUndoRepo(t)

	insertEntries(t, repo, "s1", 1)
	err := repo.SetMetadata(context.Background(), "s1-e0", "", "v")
	assert.ErrorIs(t, err, repository.ErrInvalidInput)
}

func TestEvictOldest(t *testing.T) {
	repo, _ := newUndoRepo(t)
	ctx := context.Background()

	insertEntries(t, repo, "s1", 5)
	require.NoError(t, repo.EvictOldest(ctx, "s1", 2))

	count, err := repo.Count(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	// The surviving entries are the newest ones.
	info, err := repo.Info(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), info.TotalEntries)
	assert.Equal(t, int64(4), info.CurrentPosition)
}

func TestSessionsListsDistinct(t *testing.T) {
	repo, _ := newUndoRepo(t)
	ctx := context.Background()

	insertEntries(t, repo, "s1", 2)
	insertEntries(t, repo, "s2", 1)

	sessions, err := repo.Sessions(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"s1", "s2"}, sessions)
}
