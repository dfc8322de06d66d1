package model

import (
	"fmt"
	"strings"
)

// NodeKind is the kind of a graph node.
type NodeKind string

const (
	NodeKindEntity NodeKind = "entity"
	NodeKindDevice NodeKind = "device"
	NodeKindArea   NodeKind = "area"
	NodeKindZone   NodeKind = "zone"
	NodeKindLabel  NodeKind = "label"
	NodeKindGroup  NodeKind = "group"
)

// NodeKinds lists all kinds in a stable order.
var NodeKinds = []NodeKind{
	NodeKindEntity,
	NodeKindDevice,
	NodeKindArea,
	NodeKindZone,
	NodeKindLabel,
	NodeKindGroup,
}

// Valid reports whether k is a known node kind.
func (k NodeKind) Valid() bool {
	for _, known := range NodeKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Node is a vertex in the relationship graph. Presentation fields are
// read from the registry at query time.
type Node struct {
	ID       string   `json:"id"`
	Kind     NodeKind `json:"kind"`
	Domain   string   `json:"domain,omitempty"`
	Name     string   `json:"name"`
	Icon     string   `json:"icon,omitempty"`
	State    string   `json:"state,omitempty"`
	AreaName string   `json:"area,omitempty"`
	DeviceID string   `json:"device_id,omitempty"`
}

// Key returns the raw identifier without the kind prefix.
func (n Node) Key() string {
	_, key, err := ParseNodeID(n.ID)
	if err != nil {
		return n.ID
	}
	return key
}

// NodeID builds a namespaced node id.
func NodeID(kind NodeKind, key string) string {
	return string(kind) + ":" + key
}

// EntityNodeID returns the node id of an entity.
func EntityNodeID(entityID string) string {
	return NormalizeNodeID(entityID)
}

func DeviceNodeID(id string) string { return NodeID(NodeKindDevice, id) }
func AreaNodeID(id string) string { return NodeID(NodeKindArea, id) }
func LabelNodeID(id string) string { return NodeID(NodeKindLabel, id) }

// ZoneNodeID accepts either a slug ("home") or a zone entity id ("zone.home").
func ZoneNodeID(id string) string {
	return NodeID(NodeKindZone, strings.TrimPrefix(id, "zone."))
}

// GroupNodeID accepts a group entity id ("group.downstairs").
func GroupNodeID(entityID string) string {
	return NodeID(NodeKindGroup, entityID)
}

// ParseNodeID splits a namespaced id into its kind and key.
func ParseNodeID(id string) (NodeKind, string, error) {
	prefix, key, ok := strings.Cut(id, ":")
	if !ok || key == "" {
		return "", "", fmt.Errorf("invalid node id %q", id)
	}
	kind := NodeKind(prefix)
	if !kind.Valid() {
		return "", "", fmt.Errorf("invalid node kind %q in id %q", prefix, id)
	}
	return kind, key, nil
}

// NormalizeNodeID maps bare entity ids to their node id and leaves
// namespaced ids untouched. Zone and group entities map to their own kinds.
func NormalizeNodeID(raw string) string {
	raw = strings.TrimSpace(raw)
	if _, _, err := ParseNodeID(raw); err == nil {
		if strings.HasPrefix(raw, "entity:zone.") || strings.HasPrefix(raw, "entity:group.") {
			return NormalizeNodeID(strings.TrimPrefix(raw, "entity:"))
		}
		return raw
	}
	switch SplitDomain(raw) {
	case "zone":
		return ZoneNodeID(raw)
	case "group":
		return GroupNodeID(raw)
	}
	return NodeID(NodeKindEntity, raw)
}

// SplitDomain returns the domain part of an entity id.
func SplitDomain(entityID string) string {
	domain, _, ok := strings.Cut(entityID, ".")
	if !ok {
		return ""
	}
	return domain
}

// IsEntityID reports whether s has the shape domain.object_id.
func IsEntityID(s string) bool {
	domain, object, ok := strings.Cut(s, ".")
	if !ok || domain == "" || object == "" {
		return false
	}
	for _, r := range domain {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_') {
			return false
		}
	}
	for _, r := range object {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_') {
			return false
		}
	}
	return true
}
