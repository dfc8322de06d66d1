package registry

import "github.com/siherrmann/homegraph/model"

// Area is an area registry record.
type Area struct {
	ID     string   `json:"id" yaml:"id"`
	Name   string   `json:"name" yaml:"name"`
	Icon   string   `json:"icon,omitempty" yaml:"icon,omitempty"`
	Labels []string `json:"labels,omitempty" yaml:"labels,omitempty"`
}

// Device is a device registry record.
type Device struct {
	ID           string   `json:"id" yaml:"id"`
	Name         string   `json:"name" yaml:"name"`
	AreaID       string   `json:"area_id,omitempty" yaml:"area_id,omitempty"`
	Manufacturer string   `json:"manufacturer,omitempty" yaml:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty" yaml:"model,omitempty"`
	Labels       []string `json:"labels,omitempty" yaml:"labels,omitempty"`
}

// Entity is an entity registry record. Entities defined without a
// registry entry only appear in the state store.
type Entity struct {
	EntityID string   `json:"entity_id" yaml:"entity_id"`
	UniqueID string   `json:"unique_id,omitempty" yaml:"unique_id,omitempty"`
	Name     string   `json:"name,omitempty" yaml:"name,omitempty"`
	Platform string   `json:"platform,omitempty" yaml:"platform,omitempty"`
	DeviceID string   `json:"device_id,omitempty" yaml:"device_id,omitempty"`
	AreaID   string   `json:"area_id,omitempty" yaml:"area_id,omitempty"`
	Icon     string   `json:"icon,omitempty" yaml:"icon,omitempty"`
	Labels   []string `json:"labels,omitempty" yaml:"labels,omitempty"`
}

// Zone is a circular region. ID is the slug of the zone entity.
type Zone struct {
	ID        string  `json:"id" yaml:"id"`
	Name      string  `json:"name" yaml:"name"`
	Icon      string  `json:"icon,omitempty" yaml:"icon,omitempty"`
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
	Radius    float64 `json:"radius" yaml:"radius"`
}

// Label is a label registry record.
type Label struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Icon  string `json:"icon,omitempty" yaml:"icon,omitempty"`
	Color string `json:"color,omitempty" yaml:"color,omitempty"`
}

// Group is a group entity with its members.
type Group struct {
	EntityID string   `json:"entity_id" yaml:"entity_id"`
	Name     string   `json:"name,omitempty" yaml:"name,omitempty"`
	Icon     string   `json:"icon,omitempty" yaml:"icon,omitempty"`
	Members  []string `json:"members" yaml:"members"`
}

// State is the current state of an entity.
type State struct {
	EntityID   string           `json:"entity_id" yaml:"entity_id"`
	State      string           `json:"state" yaml:"state"`
	Attributes model.Attributes `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// FriendlyName returns the friendly_name attribute.
func (s State) FriendlyName() string {
	return s.Attributes.String("friendly_name")
}

// Location returns the coordinates of a state carrying latitude and longitude.
func (s State) Location() (float64, float64, bool) {
	lat, okLat := s.Attributes.Float("latitude")
	lon, okLon := s.Attributes.Float("longitude")
	return lat, lon, okLat && okLon
}

// Source is the read-only registry boundary.
type Source interface {
	Area(id string) (Area, bool)
	Device(id string) (Device, bool)
	Entity(entityID string) (Entity, bool)
	Zone(id string) (Zone, bool)
	Label(id string) (Label, bool)
	Group(entityID string) (Group, bool)
	State(entityID string) (State, bool)

	Areas() []Area
	Devices() []Device
	Entities() []Entity
	Zones() []Zone
	Labels() []Label
	Groups() []Group
	States() []State
}
