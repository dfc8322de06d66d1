package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/siherrmann/homegraph/helper"
	"gopkg.in/yaml.v3"
)

// Snapshot is a complete copy of the registries and the state store.
type Snapshot struct {
	Areas    []Area   `json:"areas" yaml:"areas"`
	Devices  []Device `json:"devices" yaml:"devices"`
	Entities []Entity `json:"entities" yaml:"entities"`
	Zones    []Zone   `json:"zones" yaml:"zones"`
	Labels   []Label  `json:"labels" yaml:"labels"`
	Groups   []Group  `json:"groups" yaml:"groups"`
	States   []State  `json:"states" yaml:"states"`
}

// LoadSnapshot reads a YAML or JSON snapshot file.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, helper.NewError("read snapshot", err)
	}
	return ParseSnapshot(data)
}

// ParseSnapshot decodes a YAML document. JSON is accepted as YAML.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	snapshot := &Snapshot{}
	if err := yaml.Unmarshal(data, snapshot); err != nil {
		return nil, helper.NewError("decode snapshot", err)
	}
	return snapshot, nil
}

// Store is an immutable in-memory Source built from a Snapshot.
type Store struct {
	areas    map[string]Area
	devices  map[string]Device
	entities map[string]Entity
	zones    map[string]Zone
	labels   map[string]Label
	groups   map[string]Group
	states   map[string]State

	snapshot Snapshot
}

// NewStore indexes a snapshot. The first record of an id wins. Zones and groups that only exist as
// states are derived from their attributes.
func NewStore(snapshot *Snapshot) (*Store, error) {
	if snapshot == nil {
		return nil, helper.NewError("create store", fmt.Errorf("snapshot is nil"))
	}

	s := &Store{
		areas:    make(map[string]Area, len(snapshot.Areas)),
		devices:  make(map[string]Device, len(snapshot.Devices)),
		entities: make(map[string]Entity, len(snapshot.Entities)),
		zones:    make(map[string]Zone, len(snapshot.Zones)),
		labels:   make(map[string]Label, len(snapshot.Labels)),
		groups:   make(map[string]Group, len(snapshot.Groups)),
		states:   make(map[string]State, len(snapshot.States)),
	}

	for _, a := range snapshot.Areas {
		if a.ID == "" {
			return nil, helper.NewError("index areas", fmt.Errorf("area without id"))
		}
		if _, ok := s.areas[a.ID]; ok {
			continue
		}
		s.areas[a.ID] = a
		s.snapshot.Areas = append(s.snapshot.Areas, a)
	}
	for _, d := range snapshot.Devices {
		if d.ID == "" {
			return nil, helper.NewError("index devices", fmt.Errorf("device without id"))
		}
		if _, ok := s.devices[d.ID]; ok {
			continue
		}
		s.devices[d.ID] = d
		s.snapshot.Devices = append(s.snapshot.Devices, d)
	}
	for _, e := range snapshot.Entities {
		if !strings.Contains(e.EntityID, ".") {
			return nil, helper.NewError("index entities", fmt.Errorf("invalid entity id %q", e.EntityID))
		}
		if _, ok := s.entities[e.EntityID]; ok {
			continue
		}
		s.entities[e.EntityID] = e
		s.snapshot.Entities = append(s.snapshot.Entities, e)
	}
	for _, l := range snapshot.Labels {
		if _, ok := s.labels[l.ID]; ok {
			continue
		}
		s.labels[l.ID] = l
		s.snapshot.Labels = append(s.snapshot.Labels, l)
	}
	for _, st := range snapshot.States {
		if _, ok := s.states[st.EntityID]; ok {
			continue
		}
		s.states[st.EntityID] = st
		s.snapshot.States = append(s.snapshot.States, st)
	}
	for _, z := range snapshot.Zones {
		z.ID = strings.TrimPrefix(z.ID, "zone.")
		if _, ok := s.zones[z.ID]; ok {
			continue
		}
		s.zones[z.ID] = z
		s.snapshot.Zones = append(s.snapshot.Zones, z)
	}
	for _, g := range snapshot.Groups {
		if _, ok := s.groups[g.EntityID]; ok {
			continue
		}
		s.groups[g.EntityID] = g
		s.snapshot.Groups = append(s.snapshot.Groups, g)
	}

	for _, st := range s.snapshot.States {
		switch {
		case strings.HasPrefix(st.EntityID, "zone."):
			s.deriveZone(st)
		case strings.HasPrefix(st.EntityID, "group."):
			s.deriveGroup(st)
		}
	}

	return s, nil
}

func (s *Store) deriveZone(st State) {
	id := strings.TrimPrefix(st.EntityID, "zone.")
	if _, ok := s.zones[id]; ok {
		return
	}
	lat, lon, ok := st.Location()
	if !ok {
		return
	}
	radius, _ := st.Attributes.Float("radius")
	z := Zone{
		ID:        id,
		Name:      st.FriendlyName(),
		Icon:      st.Attributes.String("icon"),
		Latitude:  lat,
		Longitude: lon,
		Radius:    radius,
	}
	s.zones[id] = z
	s.snapshot.Zones = append(s.snapshot.Zones, z)
}

func (s *Store) deriveGroup(st State) {
	if _, ok := s.groups[st.EntityID]; ok {
		return
	}
	g := Group{
		EntityID: st.EntityID,
		Name:     st.FriendlyName(),
		Icon:     st.Attributes.String("icon"),
		Members:  st.Attributes.Strings("entity_id"),
	}
	s.groups[st.EntityID] = g
	s.snapshot.Groups = append(s.snapshot.Groups, g)
}

// Snapshot returns the deduplicated records held by the store.
func (s *Store) Snapshot() Snapshot {
	return s.snapshot
}

func (s *Store) Area(id string) (Area, bool) {
	v, ok := s.areas[id]
	return v, ok
}

func (s *Store) Device(id string) (Device, bool) {
	v, ok := s.devices[id]
	return v, ok
}

func (s *Store) Entity(entityID string) (Entity, bool) {
	v, ok := s.entities[entityID]
	return v, ok
}

func (s *Store) Zone(id string) (Zone, bool) {
	v, ok := s.zones[id]
	return v, ok
}

func (s *Store) Label(id string) (Label, bool) {
	v, ok := s.labels[id]
	return v, ok
}

func (s *Store) Group(entityID string) (Group, bool) {
	v, ok := s.groups[entityID]
	return v, ok
}

func (s *Store) State(entityID string) (State, bool) {
	v, ok := s.states[entityID]
	return v, ok
}

func (s *Store) Areas() []Area { return s.snapshot.Areas }
func (s *Store) Devices() []Device { return s.snapshot.Devices }
func (s *Store) Entities() []Entity { return s.snapshot.Entities }
func (s *Store) Zones() []Zone { return s.snapshot.Zones }
func (s *Store) Labels() []Label { return s.snapshot.Labels }
func (s *Store) Groups() []Group { return s.snapshot.Groups }
func (s *Store) States() []State { return s.snapshot.States }
