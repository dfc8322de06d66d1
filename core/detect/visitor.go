package detect

import (
	"fmt"
	"strings"

	"github.com/siherrmann/homegraph/core/automation"
	"github.com/siherrmann/homegraph/model"
)

// Visitor is called for every value of a configuration tree together with
// the keys leading to it. Returning false skips the children of v.
type Visitor func(path []string, v model.Value) bool

// Walk visits v and its children depth first in document order.
func Walk(v model.Value, visit Visitor) {
	walk(nil, v, visit)
}

func walk(path []string, v model.Value, visit Visitor) {
	if !visit(path, v) {
		return
	}
	switch v.Kind() {
	case model.ValueList:
		for _, item := range v.Items() {
			walk(path, item, visit)
		}
	case model.ValueMap:
		for _, key := range v.Keys() {
			child, _ := v.Get(key)
			walk(append(path[:len(path):len(path)], key), child, visit)
		}
	}
}

// Role is the part of a configuration a reference was found in.
type Role int

const (
	RoleNone Role = iota
	RoleTrigger
	RoleCondition
	RoleAction
)

func (r Role) String() string {
	switch r {
	case RoleTrigger:
		return "trigger"
	case RoleCondition:
		return "condition"
	case RoleAction:
		return "action"
	}
	return "none"
}

// Relationship returns the edge type a reference of role r produces.
func (r Role) Relationship() (model.RelationshipType, bool) {
	switch r {
	case RoleTrigger:
		return model.RelTriggers, true
	case RoleCondition:
		return model.RelConditionFor, true
	case RoleAction:
		return model.RelControls, true
	}
	return "", false
}

// Reference is a node referenced from a configuration.
type Reference struct {
	NodeID string
	Role   Role
}

var roleKeys = map[string]Role{
	"trigger":          RoleTrigger,
	"triggers":         RoleTrigger,
	"wait_for_trigger": RoleTrigger,
	"condition":        RoleCondition,
	"conditions":       RoleCondition,
	"if":               RoleCondition,
	"while":            RoleCondition,
	"until":            RoleCondition,
	"action":           RoleAction,
	"actions":          RoleAction,
	"sequence":         RoleAction,
	"then":             RoleAction,
	"else":             RoleAction,
	"default":          RoleAction,
	"entities":         RoleAction,
	"select_option":    RoleAction,
	"turn_on":          RoleAction,
	"turn_off":         RoleAction,
	"press":            RoleAction,
	"set_value":        RoleAction,
}

// scriptServices are script domain services that do not name a script.
var scriptServices = map[string]bool{
	"script.turn_on":  true,
	"script.turn_off": true,
	"script.toggle":   true,
	"script.reload":   true,
}

// ExtractReferences collects the nodes a definition references, in
// document order. Only definitions shaped as a mapping are accepted.
func ExtractReferences(def automation.Definition) ([]Reference, error) {
	if !def.Config.IsMap() {
		return nil, fmt.Errorf("%w: %s is a %s, expected a mapping", ErrMalformedConfiguration, def.EntityID, def.Config.Kind())
	}

	c := &collector{seen: map[Reference]bool{}}
	c.visit(def.Config, RoleNone)
	return c.refs, nil
}

type collector struct {
	refs []Reference
	seen map[Reference]bool
}

func (c *collector) add(nodeID string, role Role) {
	if role == RoleNone {
		return
	}
	ref := Reference{NodeID: nodeID, Role: role}
	if c.seen[ref] {
		return
	}
	c.seen[ref] = true
	c.refs = append(c.refs, ref)
}

func (c *collector) visit(v model.Value, role Role) {
	switch v.Kind() {
	case model.ValueList:
		for _, item := range v.Items() {
			c.visit(item, role)
		}
	case model.ValueMap:
		// A condition step inside an action sequence.
		if kind, ok := v.Get("condition"); ok && kind.Kind() == model.ValueString && role == RoleAction {
			role = RoleCondition
		}
		for _, key := range v.Keys() {
			child, _ := v.Get(key)
			c.visitField(key, child, role)
		}
	}
}

func (c *collector) visitField(key string, child model.Value, role Role) {
	switch key {
	case "entity_id":
		for _, id := range splitIDs(child) {
			if model.IsEntityID(id) {
				c.add(model.NormalizeNodeID(id), role)
			}
		}
		return
	case "device_id":
		for _, id := range splitIDs(child) {
			c.add(model.DeviceNodeID(id), role)
		}
		return
	case "area_id":
		for _, id := range splitIDs(child) {
			c.add(model.AreaNodeID(id), role)
		}
		return
	case "label_id":
		for _, id := range splitIDs(child) {
			c.add(model.LabelNodeID(id), role)
		}
		return
	case "zone":
		if id, ok := child.Str(); ok && strings.HasPrefix(id, "zone.") && model.IsEntityID(id) {
			c.add(model.ZoneNodeID(id), role)
		}
		return
	case "service", "action":
		if service, ok := child.Str(); ok {
			if strings.HasPrefix(service, "script.") && !scriptServices[service] && model.IsEntityID(service) {
				c.add(model.EntityNodeID(service), RoleAction)
			}
			return
		}
	case "entities":
		// Scene members; the value may be any state object, even a malformed one.
		if child.IsMap() {
			for _, id := range child.Keys() {
				if model.IsEntityID(id) {
					c.add(model.NormalizeNodeID(id), RoleAction)
				}
			}
			return
		}
		for _, item := range child.Items() {
			if id, ok := item.Str(); ok && model.IsEntityID(id) {
				c.add(model.NormalizeNodeID(id), RoleAction)
			}
		}
	}

	if next, ok := roleKeys[key]; ok && (child.IsList() || child.IsMap()) {
		role = next
	}
	c.visit(child, role)
}

// splitIDs flattens a string, comma separated string or list of strings.
// Templated values are skipped.
func splitIDs(v model.Value) []string {
	var ids []string
	for _, s := range v.Strings() {
		if strings.Contains(s, "{{") {
			continue
		}
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				ids = append(ids, part)
			}
		}
	}
	return ids
}
