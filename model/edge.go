package model

import "strings"

// RelationshipType represents the type of a directed edge.
type RelationshipType string

const (
	RelDeviceContains     RelationshipType = "device_contains"
	RelBelongsToDevice    RelationshipType = "belongs_to_device"
	RelAreaContainsDevice RelationshipType = "area_contains_device"
	RelDeviceInArea       RelationshipType = "device_in_area"
	RelAreaContains       RelationshipType = "area_contains"
	RelEntityInArea       RelationshipType = "entity_in_area"
	RelZoneContains       RelationshipType = "zone_contains"
	RelEntityInZone       RelationshipType = "entity_in_zone"
	RelTriggers           RelationshipType = "triggers"
	RelConditionFor       RelationshipType = "condition_for"
	RelControls           RelationshipType = "controls"
	RelTemplateDependsOn  RelationshipType = "template_depends_on"
	RelGroupContains      RelationshipType = "group_contains"
	RelMemberOfGroup      RelationshipType = "member_of_group"
	RelLabelAppliedTo     RelationshipType = "label_applied_to"
	RelHasLabel           RelationshipType = "has_label"
)

// Category groups relationship types for filtering.
type Category string

const (
	CategoryDevice     Category = "device"
	CategoryArea       Category = "area"
	CategoryZone       Category = "zone"
	CategoryAutomation Category = "automation"
	CategoryTemplate   Category = "template"
	CategoryGroup      Category = "group"
	CategoryLabel      Category = "label"
)

type relationshipInfo struct {
	label    string
	category Category
	from     []NodeKind
	to       []NodeKind
}

var (
	anyKind      = NodeKinds
	memberKinds  = []NodeKind{NodeKindEntity, NodeKindGroup}
	labeledKinds = []NodeKind{NodeKindEntity, NodeKindDevice, NodeKindArea, NodeKindGroup}
	inputKinds   = []NodeKind{NodeKindEntity, NodeKindDevice, NodeKindZone, NodeKindGroup}
)

var relationships = map[RelationshipType]relationshipInfo{
	RelDeviceContains:     {"contains", CategoryDevice, []NodeKind{NodeKindDevice}, memberKinds},
	RelBelongsToDevice:    {"belongs to", CategoryDevice, memberKinds, []NodeKind{NodeKindDevice}},
	RelAreaContainsDevice: {"contains", CategoryArea, []NodeKind{NodeKindArea}, []NodeKind{NodeKindDevice}},
	RelDeviceInArea:       {"in area", CategoryArea, []NodeKind{NodeKindDevice}, []NodeKind{NodeKindArea}},
	RelAreaContains:       {"contains", CategoryArea, []NodeKind{NodeKindArea}, memberKinds},
	RelEntityInArea:       {"in area", CategoryArea, memberKinds, []NodeKind{NodeKindArea}},
	RelZoneContains:       {"contains", CategoryZone, []NodeKind{NodeKindZone}, []NodeKind{NodeKindEntity}},
	RelEntityInZone:       {"in zone", CategoryZone, []NodeKind{NodeKindEntity}, []NodeKind{NodeKindZone}},
	RelTriggers:           {"triggers", CategoryAutomation, inputKinds, []NodeKind{NodeKindEntity}},
	RelConditionFor:       {"condition for", CategoryAutomation, inputKinds, []NodeKind{NodeKindEntity}},
	RelControls:           {"controls", CategoryAutomation, []NodeKind{NodeKindEntity}, anyKind},
	RelTemplateDependsOn:  {"depends on", CategoryTemplate, []NodeKind{NodeKindEntity}, inputKinds},
	RelGroupContains:      {"contains", CategoryGroup, []NodeKind{NodeKindGroup}, memberKinds},
	RelMemberOfGroup:      {"member of", CategoryGroup, memberKinds, []NodeKind{NodeKindGroup}},
	RelLabelAppliedTo:     {"applied to", CategoryLabel, []NodeKind{NodeKindLabel}, labeledKinds},
	RelHasLabel:           {"has label", CategoryLabel, labeledKinds, []NodeKind{NodeKindLabel}},
}

// Valid reports whether t is a known relationship type.
func (t RelationshipType) Valid() bool {
	_, ok := relationships[t]
	return ok
}

// Label returns the default human readable label of t.
func (t RelationshipType) Label() string {
	return relationships[t].label
}

// Category returns the filter category of t.
func (t RelationshipType) Category() Category {
	return relationships[t].category
}

// Allows reports whether an edge of type t may connect the given kinds.
func (t RelationshipType) Allows(from, to NodeKind) bool {
	info, ok := relationships[t]
	if !ok {
		return false
	}
	return containsKind(info.from, from) && containsKind(info.to, to)
}

func containsKind(kinds []NodeKind, k NodeKind) bool {
	for _, kind := range kinds {
		if kind == k {
			return true
		}
	}
	return false
}

// Edge is a directed, typed relationship between two nodes.
type Edge struct {
	FromID string           `json:"from"`
	ToID   string           `json:"to"`
	Type   RelationshipType `json:"relationship_type"`
	Label  string           `json:"label"`
}

// NewEdge creates an edge with the default label of its type.
func NewEdge(from, to string, t RelationshipType) Edge {
	return Edge{
		FromID: from,
		ToID:   to,
		Type:   t,
		Label:  t.Label(),
	}
}

// Other returns the endpoint of e that is not id.
func (e Edge) Other(id string) string {
	if e.FromID == id {
		return e.ToID
	}
	return e.FromID
}

// Touches reports whether id is one of the endpoints of e.
func (e Edge) Touches(id string) bool {
	return e.FromID == id || e.ToID == id
}

// MergeLabel adds the labels of other to e, keeping each label once.
func (e *Edge) MergeLabel(other string) {
	if other == "" {
		return
	}
	existing := strings.Split(e.Label, ", ")
	for _, part := range strings.Split(other, ", ") {
		found := false
		for _, l := range existing {
			if l == part {
				found = true
				break
			}
		}
		if !found {
			existing = append(existing, part)
		}
	}
	if e.Label == "" {
		existing = existing[1:]
	}
	e.Label = strings.Join(existing, ", ")
}
