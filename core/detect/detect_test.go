package detect

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/siherrmann/homegraph/core/automation"
	"github.com/siherrmann/homegraph/core/template"
	"github.com/siherrmann/homegraph/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAutomations = `
- alias: Good Night
  trigger:
    - platform: state
      entity_id: binary_sensor.bedroom_motion
    - platform: zone
      entity_id: person.alice
      zone: zone.home
  condition:
    - condition: state
      entity_id: input_boolean.guest_mode
      state: "off"
  action:
    - service: light.turn_off
      target:
        entity_id: light.living_room, light.hall
    - service: script.lock_up
    - condition: state
      entity_id: binary_sensor.door
      state: "off"
- alias: Self
  trigger:
    - platform: state
      entity_id: automation.self
  action:
    - service: automation.turn_off
      target:
        entity_id: automation.self
- just a string
`

const testScripts = `
lock_up:
  sequence:
    - service: lock.lock
      target:
        entity_id:
          - lock.front_door
    - device_id: dev_garage
      domain: cover
broken: 42
`

const testScenes = `
- name: Movie Time
  entities:
    light.living_room:
      state: "on"
    media_player.tv:
`

const testTemplates = `
- sensor:
    - name: Average Temperature
      state: "{{ (states('sensor.a') | float + states('sensor.b') | float) / 2 }}"
  select:
    - name: Heating Mode
      state: "{{ states('input_select.heating_mode') }}"
      select_option:
        - service: input_select.select_option
          target:
            entity_id: input_select.heating_mode
`

const testSelectTemplate = `
- select:
    - name: Mode
      state: "{{ states('input_select.mode') }}"
      options: |
        {% set ids = ['sensor.a',
        'sensor.b'] %}
        {{ ids | map('states') | list }}
      select_option:
        - service: input_select.select_option
          target:
            entity_id: input_select.mode
`

type MockRegistry struct {
	entitiesByDevice map[string][]string
	areaByDevice     map[string]string
	entitiesByArea   map[string][]string
	entitiesByZone   map[string][]string
	groupMembers     map[string][]string
	labelMembers     map[string][]string
}

func newMockRegistry() *MockRegistry {
	return &MockRegistry{
		entitiesByDevice: map[string][]string{"device:dev1": {"entity:light.kitchen", "entity:sensor.kitchen_temp"}},
		areaByDevice:     map[string]string{"device:dev1": "area:kitchen"},
		entitiesByArea:   map[string][]string{"area:garden": {"entity:switch.garden_pump"}},
		entitiesByZone:   map[string][]string{"zone:home": {"entity:person.alice"}},
		groupMembers:     map[string][]string{"group:group.downstairs": {"entity:light.kitchen", "entity:light.hall"}},
		labelMembers:     map[string][]string{"label:critical": {"device:dev1", "entity:light.kitchen"}},
	}
}

func (m *MockRegistry) EntitiesOfDevice(deviceID string) []string { return m.entitiesByDevice[deviceID] }

func (m *MockRegistry) DeviceOf(entityID string) (string, bool) {
	return findOwner(m.entitiesByDevice, entityID)
}

func (m *MockRegistry) DevicesOfArea(areaID string) []string {
	var devices []string
	for device, area := range m.areaByDevice {
		if area == areaID {
			devices = append(devices, device)
		}
	}
	return devices
}

func (m *MockRegistry) AreaOfDevice(deviceID string) (string, bool) {
	area, ok := m.areaByDevice[deviceID]
	return area, ok
}

func (m *MockRegistry) EntitiesOfArea(areaID string) []string { return m.entitiesByArea[areaID] }

func (m *MockRegistry) AreaOfEntity(entityID string) (string, bool) {
	return findOwner(m.entitiesByArea, entityID)
}

func (m *MockRegistry) EntitiesInZone(zoneID string) []string { return m.entitiesByZone[zoneID] }

func (m *MockRegistry) ZonesOf(entityID string) []string { return findOwners(m.entitiesByZone, entityID) }

func (m *MockRegistry) MembersOfGroup(groupID string) []string { return m.groupMembers[groupID] }

func (m *MockRegistry) GroupsOf(nodeID string) []string { return findOwners(m.groupMembers, nodeID) }

func (m *MockRegistry) MembersOfLabel(labelID string) []string { return m.labelMembers[labelID] }

func (m *MockRegistry) LabelsOf(nodeID string) []string { return findOwners(m.labelMembers, nodeID) }

func findOwner(index map[string][]string, member string) (string, bool) {
	owners := findOwners(index, member)
	if len(owners) == 0 {
		return "", false
	}
	return owners[0], true
}

func findOwners(index map[string][]string, member string) []string {
	var owners []string
	for owner, members := range index {
		for _, m := range members {
			if m == member {
				owners = append(owners, owner)
			}
		}
	}
	return owners
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCatalog(t *testing.T) *automation.Catalog {
	log := testLogger()

	automations, err := automation.ParseAutomations([]byte(testAutomations), "automations.yaml", log)
	require.NoError(t, err, "Expected ParseAutomations to not return an error")
	scripts, err := automation.ParseScripts([]byte(testScripts), "scripts.yaml", log)
	require.NoError(t, err, "Expected ParseScripts to not return an error")
	scenes, err := automation.ParseScenes([]byte(testScenes), "scenes.yaml", log)
	require.NoError(t, err, "Expected ParseScenes to not return an error")
	templates, err := automation.ParseTemplates([]byte(testTemplates), "templates.yaml", log)
	require.NoError(t, err, "Expected ParseTemplates to not return an error")

	var definitions []automation.Definition
	definitions = append(definitions, automations...)
	definitions = append(definitions, scripts...)
	definitions = append(definitions, scenes...)
	definitions = append(definitions, templates...)
	return automation.NewCatalog(definitions...)
}

func entityNode(entityID string) model.Node {
	return model.Node{ID: model.EntityNodeID(entityID), Kind: model.NodeKindEntity, Domain: model.SplitDomain(entityID)}
}

func detect(t *testing.T, d Detector, n model.Node) []model.Edge {
	require.True(t, d.Supports(n), "Expected %s to support %s", d.Name(), n.ID)
	edges, err := d.Detect(context.Background(), NewScope(), n)
	require.NoError(t, err, "Expected Detect to not return an error")
	return edges
}

func TestContainmentDetector(t *testing.T) {
	d := NewContainmentDetector(newMockRegistry())

	t.Run("Device emits entity and area edges", func(t *testing.T) {
		edges := detect(t, d, model.Node{ID: "device:dev1", Kind: model.NodeKindDevice})
		assert.Contains(t, edges, model.NewEdge("device:dev1", "entity:light.kitchen", model.RelDeviceContains))
		assert.Contains(t, edges, model.NewEdge("entity:light.kitchen", "device:dev1", model.RelBelongsToDevice))
		assert.Contains(t, edges, model.NewEdge("area:kitchen", "device:dev1", model.RelAreaContainsDevice))
		assert.Contains(t, edges, model.NewEdge("device:dev1", "area:kitchen", model.RelDeviceInArea))
		assert.Len(t, edges, 6, "Expected two edges per relation")
	})

	t.Run("Entity emits its owners", func(t *testing.T) {
		edges := detect(t, d, entityNode("switch.garden_pump"))
		assert.Equal(t, []model.Edge{
			model.NewEdge("area:garden", "entity:switch.garden_pump", model.RelAreaContains),
			model.NewEdge("entity:switch.garden_pump", "area:garden", model.RelEntityInArea),
		}, edges)
	})

	t.Run("Zone emits members", func(t *testing.T) {
		edges := detect(t, d, model.Node{ID: "zone:home", Kind: model.NodeKindZone})
		assert.Contains(t, edges, model.NewEdge("zone:home", "entity:person.alice", model.RelZoneContains))
		assert.Contains(t, edges, model.NewEdge("entity:person.alice", "zone:home", model.RelEntityInZone))
	})

	t.Run("Labels are not supported", func(t *testing.T) {
		assert.False(t, d.Supports(model.Node{ID: "label:critical", Kind: model.NodeKindLabel}))
	})
}

func TestExtractReferences(t *testing.T) {
	catalog := newTestCatalog(t)

	t.Run("Roles follow the configuration section", func(t *testing.T) {
		def, ok := catalog.Definition("automation.good_night")
		require.True(t, ok, "Expected automation to be parsed")

		refs, err := ExtractReferences(def)
		require.NoError(t, err, "Expected ExtractReferences to not return an error")
		assert.Equal(t, []Reference{
			{NodeID: "entity:binary_sensor.bedroom_motion", Role: RoleTrigger},
			{NodeID: "entity:person.alice", Role: RoleTrigger},
			{NodeID: "zone:home", Role: RoleTrigger},
			{NodeID: "entity:input_boolean.guest_mode", Role: RoleCondition},
			{NodeID: "entity:light.living_room", Role: RoleAction},
			{NodeID: "entity:light.hall", Role: RoleAction},
			{NodeID: "entity:script.lock_up", Role: RoleAction},
			{NodeID: "entity:binary_sensor.door", Role: RoleCondition},
		}, refs)
	})

	t.Run("Device ids are kept as device nodes", func(t *testing.T) {
		def, ok := catalog.Definition("script.lock_up")
		require.True(t, ok)

		refs, err := ExtractReferences(def)
		require.NoError(t, err)
		assert.Contains(t, refs, Reference{NodeID: "device:dev_garage", Role: RoleAction})
		assert.Contains(t, refs, Reference{NodeID: "entity:lock.front_door", Role: RoleAction})
	})

	t.Run("Non mapping configuration is malformed", func(t *testing.T) {
		def, ok := catalog.Definition("script.broken")
		require.True(t, ok)

		_, err := ExtractReferences(def)
		assert.True(t, errors.Is(err, ErrMalformedConfiguration), "Expected ErrMalformedConfiguration")
	})

	t.Run("Templated ids are skipped", func(t *testing.T) {
		def := automation.Definition{
			EntityID: "script.dynamic",
			Config: model.Map(model.Field{Key: "sequence", Value: model.List(model.Map(
				model.Field{Key: "entity_id", Value: model.String("{{ target }}")},
			))}),
		}
		refs, err := ExtractReferences(def)
		require.NoError(t, err)
		assert.Empty(t, refs, "Expected no references")
	})
}

func TestConfigurationDetector(t *testing.T) {
	d := NewConfigurationDetector(newTestCatalog(t), testLogger())

	t.Run("Automation emits trigger condition and control edges", func(t *testing.T) {
		edges := detect(t, d, entityNode("automation.good_night"))
		node := "entity:automation.good_night"
		assert.Contains(t, edges, model.NewEdge("entity:binary_sensor.bedroom_motion", node, model.RelTriggers))
		assert.Contains(t, edges, model.NewEdge("zone:home", node, model.RelTriggers))
		assert.Contains(t, edges, model.NewEdge("entity:input_boolean.guest_mode", node, model.RelConditionFor))
		assert.Contains(t, edges, model.NewEdge(node, "entity:light.living_room", model.RelControls))
		assert.Contains(t, edges, model.NewEdge(node, "entity:script.lock_up", model.RelControls))
	})

	t.Run("Referenced entity emits reverse edges", func(t *testing.T) {
		edges := detect(t, d, entityNode("light.living_room"))
		assert.Equal(t, []model.Edge{
			model.NewEdge("entity:automation.good_night", "entity:light.living_room", model.RelControls),
			model.NewEdge("entity:scene.movie_time", "entity:light.living_room", model.RelControls),
		}, edges)
	})

	t.Run("Scene member without state object is still controlled", func(t *testing.T) {
		edges := detect(t, d, entityNode("scene.movie_time"))
		assert.Contains(t, edges, model.NewEdge("entity:scene.movie_time", "entity:media_player.tv", model.RelControls))
	})

	t.Run("Zone node emits reverse trigger edges", func(t *testing.T) {
		edges := detect(t, d, model.Node{ID: "zone:home", Kind: model.NodeKindZone})
		assert.Equal(t, []model.Edge{
			model.NewEdge("zone:home", "entity:automation.good_night", model.RelTriggers),
		}, edges)
	})

	t.Run("Malformed configuration yields no forward edges", func(t *testing.T) {
		edges := detect(t, d, entityNode("script.broken"))
		assert.Empty(t, edges, "Expected no edges")
	})

	t.Run("Self references are dropped", func(t *testing.T) {
		edges := detect(t, d, entityNode("automation.self"))
		assert.Empty(t, edges, "Expected no self edges")
	})

	t.Run("Template entity action fields are controls", func(t *testing.T) {
		edges := detect(t, d, entityNode("select.heating_mode"))
		assert.Contains(t, edges, model.NewEdge("entity:select.heating_mode", "entity:input_select.heating_mode", model.RelControls))
	})

	t.Run("Cancelled context returns error", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := d.Detect(ctx, NewScope(), entityNode("light.hall"))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestTemplateDetector(t *testing.T) {
	catalog := newTestCatalog(t)

	t.Run("Template entity depends on read entities", func(t *testing.T) {
		d := NewTemplateDetector(catalog, nil, testLogger())
		edges := detect(t, d, entityNode("sensor.average_temperature"))
		assert.Equal(t, []model.Edge{
			model.NewEdge("entity:sensor.average_temperature", "entity:sensor.a", model.RelTemplateDependsOn),
			model.NewEdge("entity:sensor.average_temperature", "entity:sensor.b", model.RelTemplateDependsOn),
		}, edges)
	})

	t.Run("Dependency emits reverse edges", func(t *testing.T) {
		d := NewTemplateDetector(catalog, nil, testLogger())
		edges := detect(t, d, entityNode("sensor.b"))
		assert.Equal(t, []model.Edge{
			model.NewEdge("entity:sensor.average_temperature", "entity:sensor.b", model.RelTemplateDependsOn),
		}, edges)
	})

	t.Run("Failing compiler falls back to regex", func(t *testing.T) {
		failing := template.CompileFunc(func(string) ([]string, error) {
			return nil, template.ErrCompile
		})
		d := NewTemplateDetector(catalog, template.NewResolver(failing, testLogger()), testLogger())
		edges := detect(t, d, entityNode("select.heating_mode"))
		assert.Equal(t, []model.Edge{
			model.NewEdge("entity:select.heating_mode", "entity:input_select.heating_mode", model.RelTemplateDependsOn),
		}, edges)
	})

	t.Run("Compiler result is not mixed with regex matches", func(t *testing.T) {
		partial := template.CompileFunc(func(string) ([]string, error) {
			return []string{"sensor.a"}, nil
		})
		d := NewTemplateDetector(catalog, template.NewResolver(partial, testLogger()), testLogger())
		edges := detect(t, d, entityNode("sensor.average_temperature"))
		assert.Equal(t, []model.Edge{
			model.NewEdge("entity:sensor.average_temperature", "entity:sensor.a", model.RelTemplateDependsOn),
		}, edges)
	})

	t.Run("Multi-line select options recover through the fallback", func(t *testing.T) {
		templates, err := automation.ParseTemplates([]byte(testSelectTemplate), "templates.yaml", testLogger())
		require.NoError(t, err, "Expected ParseTemplates to not return an error")

		d := NewTemplateDetector(automation.NewCatalog(templates...), template.NewResolver(nil, testLogger()), testLogger())
		edges := detect(t, d, entityNode("select.mode"))
		assert.ElementsMatch(t, []model.Edge{
			model.NewEdge("entity:select.mode", "entity:input_select.mode", model.RelTemplateDependsOn),
			model.NewEdge("entity:select.mode", "entity:sensor.a", model.RelTemplateDependsOn),
			model.NewEdge("entity:select.mode", "entity:sensor.b", model.RelTemplateDependsOn),
		}, edges)
	})

	t.Run("Areas are not supported", func(t *testing.T) {
		d := NewTemplateDetector(catalog, nil, testLogger())
		assert.False(t, d.Supports(model.Node{ID: "area:kitchen", Kind: model.NodeKindArea}))
	})
}

func TestMembershipDetector(t *testing.T) {
	d := NewMembershipDetector(newMockRegistry())

	t.Run("Group emits member edges", func(t *testing.T) {
		edges := detect(t, d, model.Node{ID: "group:group.downstairs", Kind: model.NodeKindGroup})
		assert.Contains(t, edges, model.NewEdge("group:group.downstairs", "entity:light.hall", model.RelGroupContains))
		assert.Contains(t, edges, model.NewEdge("entity:light.hall", "group:group.downstairs", model.RelMemberOfGroup))
	})

	t.Run("Member emits group and label edges", func(t *testing.T) {
		edges := detect(t, d, entityNode("light.kitchen"))
		assert.Contains(t, edges, model.NewEdge("group:group.downstairs", "entity:light.kitchen", model.RelGroupContains))
		assert.Contains(t, edges, model.NewEdge("label:critical", "entity:light.kitchen", model.RelLabelAppliedTo))
		assert.Contains(t, edges, model.NewEdge("entity:light.kitchen", "label:critical", model.RelHasLabel))
	})

	t.Run("Label emits applied edges", func(t *testing.T) {
		edges := detect(t, d, model.Node{ID: "label:critical", Kind: model.NodeKindLabel})
		assert.Contains(t, edges, model.NewEdge("label:critical", "device:dev1", model.RelLabelAppliedTo))
		assert.Contains(t, edges, model.NewEdge("device:dev1", "label:critical", model.RelHasLabel))
	})
}

func TestDefault(t *testing.T) {
	detectors := Default(newMockRegistry(), newTestCatalog(t), nil, testLogger())

	names := make([]string, 0, len(detectors))
	for _, d := range detectors {
		names = append(names, d.Name())
	}
	assert.Equal(t, []string{"containment", "configuration", "template", "membership"}, names)
}

func TestWalk(t *testing.T) {
	v := model.Map(
		model.Field{Key: "a", Value: model.String("x")},
		model.Field{Key: "b", Value: model.List(model.String("y"), model.Map(model.Field{Key: "c", Value: model.String("z")}))},
	)

	var visited []string
	Walk(v, func(path []string, v model.Value) bool {
		if s, ok := v.Str(); ok {
			visited = append(visited, s)
		}
		return true
	})
	assert.Equal(t, []string{"x", "y", "z"}, visited)
}
