package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// Tags is an ordered list of labels stored as a JSONB array. It always
// serializes as an array, never as null.
type Tags []string

// ParseTags splits the legacy comma-joined representation.
func ParseTags(joined string) Tags {
	return Tags(strings.Split(joined, ",")).Clean()
}

// Clean trims every tag and drops empty ones, keeping order.
func (t Tags) Clean() Tags {
	out := make(Tags, 0, len(t))
	for _, tag := range t {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

func (t Tags) MarshalJSON() ([]byte, error) {
	if t == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(t))
}

// Value implements driver.Valuer. The JSON text is sent as a string so the
// column type decides the cast.
func (t Tags) Value() (driver.Value, error) {
	b, err := t.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for JSONB text, raw bytes or NULL.
func (t *Tags) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*t = Tags{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("tags: unsupported scan type %T", value)
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return fmt.Errorf("tags: %w", err)
	}
	if list == nil {
		list = []string{}
	}
	*t = Tags(list)
	return nil
}
