package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ValueKind is the variant tag of a Value.
type ValueKind int

const (
	ValueNull ValueKind = iota
	ValueString
	ValueNumber
	ValueBool
	ValueList
	ValueMap
)

func (k ValueKind) String() string {
	switch k {
	case ValueString:
		return "string"
	case ValueNumber:
		return "number"
	case ValueBool:
		return "bool"
	case ValueList:
		return "list"
	case ValueMap:
		return "map"
	}
	return "null"
}

// Value is a generic configuration tree. Maps keep their key order.
// Accessors return zero values instead of panicking on the wrong variant.
type Value struct {
	kind   ValueKind
	str    string
	num    float64
	b      bool
	list   []Value
	keys   []string
	fields map[string]Value
}

// Field is a key/value pair used to build map values.
type Field struct {
	Key   string
	Value Value
}

func Null() Value { return Value{} }
func String(s string) Value { return Value{kind: ValueString, str: s} }
func Number(n float64) Value { return Value{kind: ValueNumber, num: n} }
func Bool(b bool) Value { return Value{kind: ValueBool, b: b} }
func List(items ...Value) Value { return Value{kind: ValueList, list: items} }

// Map builds a map value keeping the order of fields.
// Later duplicates replace earlier ones in place.
func Map(fields ...Field) Value {
	v := Value{kind: ValueMap, fields: make(map[string]Value, len(fields))}
	for _, f := range fields {
		if _, ok := v.fields[f.Key]; !ok {
			v.keys = append(v.keys, f.Key)
		}
		v.fields[f.Key] = f.Value
	}
	return v
}

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsNull() bool { return v.kind == ValueNull }
func (v Value) IsMap() bool { return v.kind == ValueMap }
func (v Value) IsList() bool { return v.kind == ValueList }

// Str returns the string payload.
func (v Value) Str() (string, bool) {
	return v.str, v.kind == ValueString
}

// Num returns the number payload.
func (v Value) Num() (float64, bool) {
	return v.num, v.kind == ValueNumber
}

// BoolValue returns the bool payload.
func (v Value) BoolValue() (bool, bool) {
	return v.b, v.kind == ValueBool
}

// Items returns the list elements, nil for other variants.
func (v Value) Items() []Value {
	if v.kind != ValueList {
		return nil
	}
	return v.list
}

// Keys returns the map keys in document order.
func (v Value) Keys() []string {
	if v.kind != ValueMap {
		return nil
	}
	return v.keys
}

// Get returns the value stored under key in a map value.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != ValueMap {
		return Value{}, false
	}
	f, ok := v.fields[key]
	return f, ok
}

// Path follows keys through nested maps.
func (v Value) Path(keys ...string) (Value, bool) {
	current := v
	for _, k := range keys {
		next, ok := current.Get(k)
		if !ok {
			return Value{}, false
		}
		current = next
	}
	return current, true
}

// GetString returns the string stored under key or "".
func (v Value) GetString(key string) string {
	f, _ := v.Get(key)
	s, _ := f.Str()
	return s
}

// Len returns the number of list items or map entries.
func (v Value) Len() int {
	switch v.kind {
	case ValueList:
		return len(v.list)
	case ValueMap:
		return len(v.keys)
	}
	return 0
}

// Strings flattens a string or a list of strings.
func (v Value) Strings() []string {
	switch v.kind {
	case ValueString:
		return []string{v.str}
	case ValueList:
		out := make([]string, 0, len(v.list))
		for _, item := range v.list {
			if s, ok := item.Str(); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// ToAny converts v into plain Go values suitable for encoding/json.
func (v Value) ToAny() any {
	switch v.kind {
	case ValueString:
		return v.str
	case ValueNumber:
		return v.num
	case ValueBool:
		return v.b
	case ValueList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.ToAny()
		}
		return out
	case ValueMap:
		out := make(map[string]any, len(v.keys))
		for _, k := range v.keys {
			out[k] = v.fields[k].ToAny()
		}
		return out
	}
	return nil
}

// MarshalJSON encodes v as plain JSON.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.ToAny())
}

// UnmarshalJSON decodes any JSON document. Map keys are sorted.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = ValueFromAny(raw)
	return nil
}

// UnmarshalYAML decodes a YAML node keeping key order.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	decoded, err := ValueFromYAML(node)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

// ValueFromAny converts decoded JSON/YAML values. Map keys are sorted
// since Go maps carry no order.
func ValueFromAny(raw any) Value {
	switch t := raw.(type) {
	case nil:
		return Null()
	case string:
		return String(t)
	case bool:
		return Bool(t)
	case int:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case float64:
		return Number(t)
	case float32:
		return Number(float64(t))
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = ValueFromAny(item)
		}
		return List(items...)
	case []string:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = String(item)
		}
		return List(items...)
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fields := make([]Field, len(keys))
		for i, k := range keys {
			fields[i] = Field{Key: k, Value: ValueFromAny(t[k])}
		}
		return Map(fields...)
	case map[any]any:
		converted := make(map[string]any, len(t))
		for k, item := range t {
			converted[fmt.Sprint(k)] = item
		}
		return ValueFromAny(converted)
	}
	return String(fmt.Sprint(raw))
}

const maxYAMLDepth = 64

// ValueFromYAML converts a YAML node tree.
func ValueFromYAML(node *yaml.Node) (Value, error) {
	return valueFromYAML(node, 0)
}

func valueFromYAML(node *yaml.Node, depth int) (Value, error) {
	if node == nil || node.Kind == 0 {
		return Null(), nil
	}
	if depth > maxYAMLDepth {
		return Null(), fmt.Errorf("yaml nesting deeper than %d at line %d", maxYAMLDepth, node.Line)
	}

	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return Null(), nil
		}
		return valueFromYAML(node.Content[0], depth+1)
	case yaml.AliasNode:
		return valueFromYAML(node.Alias, depth+1)
	case yaml.SequenceNode:
		items := make([]Value, 0, len(node.Content))
		for _, child := range node.Content {
			item, err := valueFromYAML(child, depth+1)
			if err != nil {
				return Null(), err
			}
			items = append(items, item)
		}
		return List(items...), nil
	case yaml.MappingNode:
		if len(node.Content)%2 != 0 {
			return Null(), fmt.Errorf("malformed mapping at line %d", node.Line)
		}
		fields := make([]Field, 0, len(node.Content)/2)
		for i := 0; i < len(node.Content); i += 2 {
			item, err := valueFromYAML(node.Content[i+1], depth+1)
			if err != nil {
				return Null(), err
			}
			fields = append(fields, Field{Key: node.Content[i].Value, Value: item})
		}
		return Map(fields...), nil
	case yaml.ScalarNode:
		return scalarFromYAML(node), nil
	}
	return Null(), fmt.Errorf("unsupported yaml node kind %d at line %d", node.Kind, node.Line)
}

func scalarFromYAML(node *yaml.Node) Value {
	switch node.ShortTag() {
	case "!!null":
		return Null()
	case "!!bool":
		b, err := strconv.ParseBool(node.Value)
		if err != nil {
			var decoded bool
			if node.Decode(&decoded) == nil {
				return Bool(decoded)
			}
			return String(node.Value)
		}
		return Bool(b)
	case "!!int", "!!float":
		var n float64
		if err := node.Decode(&n); err != nil {
			return String(node.Value)
		}
		return Number(n)
	}
	return String(node.Value)
}
