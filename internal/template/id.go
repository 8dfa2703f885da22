package template

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is an annotation identifier. Templates use both numeric and string
// identifiers; the original JSON token is kept so it is re-emitted unchanged,
// while Key gives the form used to link values to keys.
type ID struct {
	raw json.RawMessage
}

// StringID builds an ID from a string.
func StringID(s string) ID {
	b, _ := json.Marshal(s)
	return ID{raw: b}
}

// IntID builds a numeric ID.
func IntID(n int) ID {
	return ID{raw: json.RawMessage(strconv.Itoa(n))}
}

// IsZero reports whether the ID is absent or null.
func (id ID) IsZero() bool { return len(id.raw) == 0 }

// Key returns the textual form of the identifier, so that 5 and "5" link.
func (id ID) Key() string {
	if id.IsZero() {
		return ""
	}
	var s string
	if err := json.Unmarshal(id.raw, &s); err == nil {
		return s
	}
	return string(id.raw)
}

// String implements fmt.Stringer.
func (id ID) String() string { return id.Key() }

// MarshalJSON re-emits the original token, or null.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return []byte("null"), nil
	}
	return id.raw, nil
}

// UnmarshalJSON accepts a string, a number or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ID{}
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid id: %w", err)
		}
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("invalid id %s: must be a string or a number", data)
		}
	}
	id.raw = append(json.RawMessage(nil), data...)
	return nil
}
