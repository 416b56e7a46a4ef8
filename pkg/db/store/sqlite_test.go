package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DarkPhilosophy/snapify/pkg/db/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	st, err := NewSQLiteStore(SQLiteConfig{
		Path: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, st.Connect(ctx))
	require.NoError(t, st.Migrate(ctx))

	t.Cleanup(func() { st.Close() })
	return st
}

func insertTestItem(t *testing.T, st *SQLiteStore, path string) *models.MediaItem {
	t.Helper()

	item := &models.MediaItem{
		FilePath: path,
		FileName: filepath.Base(path),
		FileSize: 1024,
	}
	inserted, err := st.InsertItem(context.Background(), item)
	require.NoError(t, err)
	require.True(t, inserted)
	return item
}

func TestInsertItemIdempotent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	insertTestItem(t, st, "/media/a.png")

	duplicate := &models.MediaItem{FilePath: "/media/a.png", FileName: "a.png", FileSize: 2048}
	inserted, err := st.InsertItem(ctx, duplicate)
	require.NoError(t, err)
	assert.False(t, inserted)

	count, err := st.CountByPath(ctx, "/media/a.png")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestInsertConflictPreservesState(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	item := insertTestItem(t, st, "/media/a.png")
	require.NoError(t, st.KeepItem(ctx, item.ID))

	// Rediscovery of a kept path must not revive it.
	duplicate := &models.MediaItem{FilePath: "/media/a.png", FileName: "a.png", FileSize: 1}
	inserted, err := st.InsertItem(ctx, duplicate)
	require.NoError(t, err)
	assert.False(t, inserted)

	got, err := st.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, got.IsKept)
	assert.Nil(t, got.DeletionAt)
}

func TestMarkItem(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	item := insertTestItem(t, st, "/media/a.png")
	deadline := time.Now().Add(time.Minute).UTC()

	require.NoError(t, st.MarkItem(ctx, item.ID, deadline, "work-1"))

	got, err := st.GetItem(ctx, item.ID)
	require.NoError(t, err)
	require.NotNil(t, got.DeletionAt)
	assert.WithinDuration(t, deadline, *got.DeletionAt, time.Second)
	assert.Equal(t, "work-1", got.DeletionWorkID)
	assert.True(t, got.Marked())
}

func TestMarkItemRefusesKept(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	item := insertTestItem(t, st, "/media/a.png")
	require.NoError(t, st.KeepItem(ctx, item.ID))

	err := st.MarkItem(ctx, item.ID, time.Now().Add(time.Minute), "work-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestKeepClearsDeadline(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	item := insertTestItem(t, st, "/media/a.png")
	require.NoError(t, st.MarkItem(ctx, item.ID, time.Now().Add(time.Minute), "work-1"))
	require.NoError(t, st.KeepItem(ctx, item.ID))

	got, err := st.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, got.IsKept)
	assert.Nil(t, got.DeletionAt)
	assert.Empty(t, got.DeletionWorkID)

	require.NoError(t, st.UnkeepItem(ctx, item.ID))

	got, err = st.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.False(t, got.IsKept)
	assert.Nil(t, got.DeletionAt)
}

func TestDeleteItemCompareAndDelete(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	item := insertTestItem(t, st, "/media/a.png")

	removed, err := st.DeleteItem(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = st.DeleteItem(ctx, item.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = st.GetItem(ctx, item.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListExpiredAndMarked(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	expired := insertTestItem(t, st, "/media/expired.png")
	require.NoError(t, st.MarkItem(ctx, expired.ID, now.Add(-time.Minute), "w1"))

	future := insertTestItem(t, st, "/media/future.png")
	require.NoError(t, st.MarkItem(ctx, future.ID, now.Add(time.Hour), "w2"))

	kept := insertTestItem(t, st, "/media/kept.png")
	require.NoError(t, st.MarkItem(ctx, kept.ID, now.Add(-time.Minute), "w3"))
	require.NoError(t, st.KeepItem(ctx, kept.ID))

	insertTestItem(t, st, "/media/untracked.png")

	gotExpired, err := st.ListExpired(ctx, now)
	require.NoError(t, err)
	require.Len(t, gotExpired, 1)
	assert.Equal(t, expired.ID, gotExpired[0].ID)

	gotMarked, err := st.ListMarked(ctx)
	require.NoError(t, err)
	require.Len(t, gotMarked, 2)
}

func TestGetItemByPath(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	item := insertTestItem(t, st, "/media/a.png")

	got, err := st.GetItemByPath(ctx, "/media/a.png")
	require.NoError(t, err)
	assert.Equal(t, item.ID, got.ID)

	_, err = st.GetItemByPath(ctx, "/media/missing.png")
	assert.ErrorIs(t, err, ErrNotFound)
}
