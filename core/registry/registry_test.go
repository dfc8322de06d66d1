package registry

import (
	"io"
	"log/slog"
	"testing"

	"github.com/siherrmann/homegraph/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdapter(t *testing.T) *Adapter {
	snapshot, err := LoadSnapshot("testdata/home.yaml")
	require.NoError(t, err, "Expected LoadSnapshot to not return an error")

	store, err := NewStore(snapshot)
	require.NoError(t, err, "Expected NewStore to not return an error")

	return NewAdapter(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestNewStore(t *testing.T) {
	t.Run("Nil snapshot returns error", func(t *testing.T) {
		_, err := NewStore(nil)
		assert.Error(t, err, "Expected NewStore to return an error")
	})

	t.Run("Invalid entity id returns error", func(t *testing.T) {
		_, err := NewStore(&Snapshot{Entities: []Entity{{EntityID: "nodot"}}})
		assert.Error(t, err, "Expected NewStore to return an error")
	})

	t.Run("Zones and groups are derived from states", func(t *testing.T) {
		snapshot, err := LoadSnapshot("testdata/home.yaml")
		require.NoError(t, err)
		store, err := NewStore(snapshot)
		require.NoError(t, err)

		home, ok := store.Zone("home")
		require.True(t, ok, "Expected zone home to be derived")
		assert.Equal(t, 100.0, home.Radius)
		assert.Len(t, store.Zones(), 2)

		group, ok := store.Group("group.downstairs_lights")
		require.True(t, ok, "Expected group to be derived")
		assert.Equal(t, []string{"light.kitchen", "light.hall"}, group.Members)
	})

	t.Run("First record of an id wins", func(t *testing.T) {
		store, err := NewStore(&Snapshot{Areas: []Area{{ID: "a", Name: "First"}, {ID: "a", Name: "Second"}}})
		require.NoError(t, err)
		area, _ := store.Area("a")
		assert.Equal(t, "First", area.Name)
		assert.Len(t, store.Areas(), 1)
	})

	t.Run("JSON snapshots are accepted", func(t *testing.T) {
		snapshot, err := ParseSnapshot([]byte(`{"areas":[{"id":"office","name":"Office"}]}`))
		require.NoError(t, err)
		assert.Equal(t, "Office", snapshot.Areas[0].Name)
	})
}

func TestAdapterLookup(t *testing.T) {
	a := newTestAdapter(t)

	t.Run("Entity with registry entry and state", func(t *testing.T) {
		n, err := a.Lookup("entity:light.kitchen")
		require.NoError(t, err, "Expected Lookup to not return an error")
		assert.Equal(t, model.NodeKindEntity, n.Kind)
		assert.Equal(t, "light", n.Domain)
		assert.Equal(t, "Kitchen Light", n.Name)
		assert.Equal(t, "on", n.State)
		assert.Equal(t, "Kitchen", n.AreaName, "Expected area to be inherited from device")
		assert.Equal(t, "dev1", n.DeviceID)
		assert.Equal(t, "mdi:lightbulb", n.Icon)
	})

	t.Run("Entity known only from state", func(t *testing.T) {
		n, err := a.Lookup("entity:person.alice")
		require.NoError(t, err)
		assert.Equal(t, "Alice", n.Name)
	})

	t.Run("Other kinds", func(t *testing.T) {
		for _, id := range []string{"device:dev1", "area:kitchen", "zone:home", "zone:work", "label:critical", "group:group.downstairs_lights"} {
			n, err := a.Lookup(id)
			require.NoError(t, err, "Expected Lookup(%s) to not return an error", id)
			assert.Equal(t, id, n.ID)
			assert.NotEmpty(t, n.Name, "Expected %s to have a name", id)
		}
	})

	t.Run("Missing ids return ErrNotFound", func(t *testing.T) {
		for _, id := range []string{"entity:light.missing", "device:nope", "area:attic", "bogus"} {
			_, err := a.Lookup(id)
			assert.ErrorIs(t, err, ErrNotFound, "Expected Lookup(%s) to return ErrNotFound", id)
		}
	})
}

func TestAdapterRelations(t *testing.T) {
	a := newTestAdapter(t)

	t.Run("Device containment", func(t *testing.T) {
		assert.Equal(t, []string{"entity:light.kitchen", "entity:sensor.kitchen_temp"}, a.EntitiesOfDevice("device:dev1"))
		device, ok := a.DeviceOf("entity:light.kitchen")
		assert.True(t, ok)
		assert.Equal(t, "device:dev1", device)
		_, ok = a.DeviceOf("entity:automation.good_night")
		assert.False(t, ok)
	})

	t.Run("Area containment", func(t *testing.T) {
		assert.Equal(t, []string{"device:dev1"}, a.DevicesOfArea("area:kitchen"))
		area, ok := a.AreaOfDevice("device:dev1")
		assert.True(t, ok)
		assert.Equal(t, "area:kitchen", area)
		assert.Empty(t, a.EntitiesOfArea("area:kitchen"), "Expected inherited entities to not be direct members")
		assert.Equal(t, []string{"entity:switch.garden_pump"}, a.EntitiesOfArea("area:garden"))
		_, ok = a.AreaOfDevice("device:dev2")
		assert.False(t, ok)
	})

	t.Run("Zone membership", func(t *testing.T) {
		assert.Equal(t, []string{"entity:person.alice"}, a.EntitiesInZone("zone:home"))
		assert.Equal(t, []string{"entity:device_tracker.phone"}, a.EntitiesInZone("zone:work"))
		assert.Equal(t, []string{"zone:work"}, a.ZonesOf("entity:device_tracker.phone"))
		assert.Empty(t, a.ZonesOf("entity:light.kitchen"))
	})

	t.Run("Groups and labels", func(t *testing.T) {
		assert.Equal(t, []string{"entity:light.kitchen", "entity:light.hall"}, a.MembersOfGroup("group:group.downstairs_lights"))
		assert.Equal(t, []string{"group:group.downstairs_lights"}, a.GroupsOf("entity:light.kitchen"))
		assert.Equal(t, []string{"entity:light.kitchen", "device:dev1"}, a.MembersOfLabel("label:critical"))
		assert.Equal(t, []string{"label:downstairs"}, a.LabelsOf("area:kitchen"))
	})

	t.Run("Unknown ids return empty sets", func(t *testing.T) {
		assert.Empty(t, a.EntitiesOfDevice("device:missing"))
		assert.Empty(t, a.MembersOfGroup("group:group.missing"))
		assert.Empty(t, a.EntitiesInZone("zone:missing"))
		assert.Empty(t, a.EntitiesOfDevice("not-an-id"))
	})
}

func TestAdapterSearch(t *testing.T) {
	a := newTestAdapter(t)

	t.Run("Matches ids and names case-insensitively", func(t *testing.T) {
		results := a.Search("KITCHEN", 0)
		ids := make([]string, 0, len(results))
		for _, n := range results {
			ids = append(ids, n.ID)
		}
		assert.Contains(t, ids, "entity:light.kitchen")
		assert.Contains(t, ids, "entity:sensor.kitchen_temp")
		assert.Contains(t, ids, "device:dev1")
		assert.Contains(t, ids, "area:kitchen")
	})

	t.Run("Limit is respected", func(t *testing.T) {
		assert.Len(t, a.Search("kitchen", 1), 1)
	})

	t.Run("Empty fragment returns nothing", func(t *testing.T) {
		assert.Empty(t, a.Search("  ", 10))
	})
}

func TestAdapterSwap(t *testing.T) {
	a := newTestAdapter(t)

	store, err := NewStore(&Snapshot{Areas: []Area{{ID: "office", Name: "Office"}}})
	require.NoError(t, err)
	a.Swap(store)

	_, err = a.Lookup("area:kitchen")
	assert.ErrorIs(t, err, ErrNotFound, "Expected old records to be gone after Swap")
	_, err = a.Lookup("area:office")
	assert.NoError(t, err)
}

func TestAdapterPin(t *testing.T) {
	a := newTestAdapter(t)
	pinned := a.Pin()

	store, err := NewStore(&Snapshot{Areas: []Area{{ID: "office", Name: "Office"}}})
	require.NoError(t, err)
	a.Swap(store)

	t.Run("Pinned adapter keeps the old view", func(t *testing.T) {
		_, err := pinned.Lookup("area:kitchen")
		assert.NoError(t, err, "Expected pinned adapter to ignore the swap")
		_, err = pinned.Lookup("area:office")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NotEmpty(t, pinned.DevicesOfArea("area:kitchen"))
	})

	t.Run("Adapter serves the new view", func(t *testing.T) {
		_, err := a.Lookup("area:office")
		assert.NoError(t, err)
		assert.Empty(t, a.DevicesOfArea("area:kitchen"))
	})
}

func TestAdapterEntityByUniqueID(t *testing.T) {
	store, err := NewStore(&Snapshot{Entities: []Entity{
		{EntityID: "automation.bedtime", UniqueID: "1700000000001"},
		{EntityID: "sensor.bedtime", UniqueID: "1700000000001"},
		{EntityID: "automation.other"},
	}})
	require.NoError(t, err)
	a := NewAdapter(store, slog.New(slog.NewTextHandler(io.Discard, nil)))

	id, ok := a.EntityByUniqueID("automation", "1700000000001")
	assert.True(t, ok)
	assert.Equal(t, "automation.bedtime", id)

	id, ok = a.EntityByUniqueID("sensor", "1700000000001")
	assert.True(t, ok, "Expected unique ids to be scoped by domain")
	assert.Equal(t, "sensor.bedtime", id)

	_, ok = a.EntityByUniqueID("automation", "missing")
	assert.False(t, ok)
}

func TestDistance(t *testing.T) {
	d := Distance(52.52, 13.405, 48.137, 11.575)
	assert.InDelta(t, 504000, d, 2000, "Expected Berlin to Munich to be about 504 km")
	assert.Equal(t, 0.0, Distance(1, 1, 1, 1))
}
