package homegraph

import (
	"context"
	"testing"

	"github.com/siherrmann/homegraph/core/registry"
	"github.com/siherrmann/homegraph/database"
	"github.com/siherrmann/homegraph/helper"
	"github.com/siherrmann/homegraph/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromDatabase(t *testing.T) {
	helper.SetTestDatabaseConfigEnvs(t, dbPort)
	dbConfig, err := helper.NewDatabaseConfiguration()
	require.NoError(t, err, "failed to create database configuration")
	ctx := context.Background()

	g, err := NewFromDatabase(dbConfig, nil, WithLogger(testLogger()))
	require.NoError(t, err, "Expected NewFromDatabase to not return an error")
	t.Cleanup(func() {
		g.Close()
	})
	require.NotNil(t, g.DB, "Expected a database to be attached")
	require.NotNil(t, g.Records, "Expected a registry handler")

	t.Run("Imported snapshot is stored and served", func(t *testing.T) {
		snapshot, err := registry.LoadSnapshot("testdata/home.yaml")
		require.NoError(t, err)

		err = g.ImportSnapshot(ctx, snapshot)
		require.NoError(t, err, "Expected ImportSnapshot to not return an error")

		result := g.GetNeighborhood(ctx, "device:hub", 1, model.DefaultFilters())
		ids := nodeIDs(result)
		assert.Contains(t, ids, "entity:light.kitchen")
		assert.Contains(t, ids, "area:kitchen")
	})

	t.Run("Reload reads the stored snapshot", func(t *testing.T) {
		g.Registry.Swap(mustEmptyStore(t))
		assert.Empty(t, g.GetNeighborhood(ctx, "device:hub", 1, model.DefaultFilters()).Nodes)

		err := g.ReloadRegistry(ctx)
		require.NoError(t, err, "Expected ReloadRegistry to not return an error")
		assert.NotEmpty(t, g.GetNeighborhood(ctx, "device:hub", 1, model.DefaultFilters()).Nodes)
	})

	t.Run("A second instance starts from the stored snapshot", func(t *testing.T) {
		other, err := NewFromDatabase(dbConfig, nil, WithLogger(testLogger()))
		require.NoError(t, err)
		defer other.Close()

		results := other.Search(ctx, "kitchen hub", 5)
		require.Len(t, results, 1)
		assert.Equal(t, "device:hub", results[0].ID)
	})

	t.Run("Search combines stored records and states", func(t *testing.T) {
		results := g.Search(ctx, "temp", 10)
		ids := make([]string, 0, len(results))
		for _, r := range results {
			ids = append(ids, r.ID)
		}
		assert.Equal(t, []string{
			"entity:sensor.kitchen_temp",
			"entity:sensor.average_temperature",
			"entity:sensor.outside",
		}, ids, "Expected stored entities first and the state-only entity after them")
	})

	t.Run("Underscores in the fragment are literal", func(t *testing.T) {
		assert.Empty(t, g.Search(ctx, "light_kitchen", 5))

		results := g.Search(ctx, "kitchen_temp", 5)
		require.Len(t, results, 1)
		assert.Equal(t, "entity:sensor.kitchen_temp", results[0].ID)
	})

	t.Run("Search respects limit across both sources", func(t *testing.T) {
		assert.Len(t, g.Search(ctx, "kitchen", 2), 2)
	})

	t.Run("Search falls back to the registry when the database fails", func(t *testing.T) {
		other, err := NewFromDatabase(dbConfig, nil, WithLogger(testLogger()))
		require.NoError(t, err)
		require.NoError(t, other.Close())

		results := other.Search(ctx, "kitchen hub", 5)
		require.Len(t, results, 1)
		assert.Equal(t, "device:hub", results[0].ID)
	})

	t.Run("Stored records are counted per kind", func(t *testing.T) {
		counts, err := g.StoredRecords(ctx)
		require.NoError(t, err, "Expected StoredRecords to not return an error")
		assert.Equal(t, 2, counts[database.KindArea])
		assert.Equal(t, 8, counts[database.KindEntity])
		assert.Equal(t, 7, counts[database.KindState])
	})

	t.Run("Unknown record kind is not purged", func(t *testing.T) {
		_, err := g.PurgeRecords(ctx, "floor")
		assert.Error(t, err)
	})

	t.Run("Purged states are gone from the registry", func(t *testing.T) {
		require.NotEmpty(t, g.GetNeighborhood(ctx, "sensor.outside", 1, model.DefaultFilters()).Nodes)

		deleted, err := g.PurgeRecords(ctx, database.KindState)
		require.NoError(t, err, "Expected PurgeRecords to not return an error")
		assert.Equal(t, 7, deleted)

		assert.Empty(t, g.GetNeighborhood(ctx, "sensor.outside", 1, model.DefaultFilters()).Nodes)
		assert.NotEmpty(t, g.GetNeighborhood(ctx, "light.kitchen", 1, model.DefaultFilters()).Nodes)

		counts, err := g.StoredRecords(ctx)
		require.NoError(t, err)
		assert.Zero(t, counts[database.KindState])
	})
}

func mustEmptyStore(t *testing.T) *registry.Store {
	store, err := registry.NewStore(&registry.Snapshot{})
	require.NoError(t, err)
	return store
}
