package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridepool-hub/ridepool-achievements/internal/domain/achievement"
	"github.com/ridepool-hub/ridepool-achievements/internal/domain/shared"
)

func newTestStore(t *testing.T) (*Catalog, *ProgressStore) {
	t.Helper()
	catalog, err := NewSeededCatalog(SeedDefinitions()...)
	require.NoError(t, err)
	return catalog, NewProgressStore(catalog)
}

func TestCatalog(t *testing.T) {
	ctx := context.Background()
	catalog, _ := newTestStore(t)

	t.Run("lookup by title", func(t *testing.T) {
		def, err := catalog.GetByTitle(ctx, achievement.TitleCritic)
		require.NoError(t, err)
		assert.Equal(t, 5, def.RequiredPoints)
		assert.NotEmpty(t, def.ID)
	})

	t.Run("unknown title", func(t *testing.T) {
		_, err := catalog.GetByTitle(ctx, achievement.Title("NightOwl"))
		assert.ErrorIs(t, err, shared.ErrDefinitionNotFound)
	})

	t.Run("list is ordered by title", func(t *testing.T) {
		defs, err := catalog.List(ctx)
		require.NoError(t, err)
		require.Len(t, defs, len(SeedDefinitions()))
		for i := 1; i < len(defs); i++ {
			assert.Less(t, string(defs[i-1].Title), string(defs[i].Title))
		}
	})

	t.Run("duplicate title rejected", func(t *testing.T) {
		err := catalog.Create(ctx, &achievement.Definition{
			Title:          achievement.TitleCritic,
			RequiredPoints: 3,
		})
		assert.ErrorIs(t, err, shared.ErrDefinitionExists)
	})

	t.Run("invalid definition rejected", func(t *testing.T) {
		err := catalog.Create(ctx, &achievement.Definition{
			Title:          achievement.Title("NightOwl"),
			RequiredPoints: 0,
		})
		assert.ErrorIs(t, err, shared.ErrInvalidThreshold)
	})
}

func TestProgressStoreGetOrCreate(t *testing.T) {
	ctx := context.Background()
	_, store := newTestStore(t)

	row, err := store.GetOrCreate(ctx, "user-1", "def-1")
	require.NoError(t, err)
	assert.Equal(t, 0, row.Progress)
	assert.False(t, row.Achieved)

	// A second call returns the same row, not a fresh one.
	row.Progress = 3
	require.NoError(t, store.Save(ctx, row))

	again, err := store.GetOrCreate(ctx, "user-1", "def-1")
	require.NoError(t, err)
	assert.Equal(t, 3, again.Progress)
	assert.Equal(t, 1, store.Len())
}

func TestProgressStoreSaveUnknownRow(t *testing.T) {
	ctx := context.Background()
	_, store := newTestStore(t)

	row := achievement.NewUserProgress("ghost", "def-1", time.Now().UTC())
	err := store.Save(ctx, &row)

	assert.ErrorIs(t, err, shared.ErrProgressRowNotFound)
}

func TestProgressStoreBulkEnsure(t *testing.T) {
	ctx := context.Background()
	catalog, store := newTestStore(t)

	defs, err := catalog.List(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(defs))
	for _, def := range defs {
		ids = append(ids, def.ID)
	}

	require.NoError(t, store.BulkEnsure(ctx, "user-1", ids))
	assert.Equal(t, len(ids), store.Len())

	// Accumulate some progress, then re-ensure: nothing resets.
	row, err := store.GetOrCreate(ctx, "user-1", ids[0])
	require.NoError(t, err)
	row.Progress = 7
	require.NoError(t, store.Save(ctx, row))

	require.NoError(t, store.BulkEnsure(ctx, "user-1", ids))
	assert.Equal(t, len(ids), store.Len())

	row, err = store.GetOrCreate(ctx, "user-1", ids[0])
	require.NoError(t, err)
	assert.Equal(t, 7, row.Progress)
}

func TestProgressStoreListByUser(t *testing.T) {
	ctx := context.Background()
	catalog, store := newTestStore(t)

	critic, err := catalog.GetByTitle(ctx, achievement.TitleCritic)
	require.NoError(t, err)
	chameleon, err := catalog.GetByTitle(ctx, achievement.TitleChameleon)
	require.NoError(t, err)

	row, err := store.GetOrCreate(ctx, "user-1", critic.ID)
	require.NoError(t, err)
	row.Progress = 5
	row.Achieved = true
	now := time.Now().UTC()
	row.DateAchieved = &now
	require.NoError(t, store.Save(ctx, row))

	_, err = store.GetOrCreate(ctx, "user-1", chameleon.ID)
	require.NoError(t, err)
	_, err = store.GetOrCreate(ctx, "user-2", chameleon.ID)
	require.NoError(t, err)

	views, err := store.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, views, 2)

	// Ordered by title: Chameleon before Critic.
	assert.Equal(t, achievement.TitleChameleon, views[0].Title)
	assert.Equal(t, achievement.TitleCritic, views[1].Title)
	assert.True(t, views[1].Achieved)
	assert.Equal(t, 5, views[1].RequiredPoints)

	empty, err := store.ListByUser(ctx, "user-3")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
