package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/siherrmann/homegraph/helper"
)

// Attributes are the state attributes of an entity, stored as JSONB.
type Attributes map[string]interface{}

// Value implements the driver.Valuer interface for database storage
func (a Attributes) Value() (driver.Value, error) {
	if a == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(a)
}

// Scan implements the sql.Scanner interface for database retrieval
func (a *Attributes) Scan(value interface{}) error {
	if value == nil {
		*a = Attributes{}
		return nil
	}

	switch v := value.(type) {
	case Attributes:
		*a = v
		return nil
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	}

	return helper.NewError("attributes assertion", errors.New("type assertion to []byte failed"))
}

// Float returns a numeric attribute. Numeric strings are accepted.
func (a Attributes) Float(key string) (float64, bool) {
	switch v := a[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}

// String returns a string attribute or "".
func (a Attributes) String(key string) string {
	s, _ := a[key].(string)
	return s
}

// Strings returns a string or list-of-strings attribute.
func (a Attributes) Strings(key string) []string {
	switch v := a[key].(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
