// Package template models the hand-labelled layout template: its key, value
// and etc annotations, JSON encoding, schema validation and compact output.
package template

import (
	"bytes"
	"encoding/json"

	"github.com/MeKo-Tech/kvmap/internal/geometry"
)

// Type is the annotation kind.
type Type string

const (
	TypeKey   Type = "key"
	TypeValue Type = "value"
	TypeEtc   Type = "etc"
)

// Annotation is one labelled box. BBox is nil when the annotation carries no
// usable geometry.
type Annotation struct {
	ID    ID
	Type  Type
	BBox  *geometry.Box
	Text  string
	KeyID ID
	// Order is the 1-based line index of a value fragment, 0 when unset.
	Order int
}

// HasGeometry reports whether the annotation takes part in alignment.
func (a Annotation) HasGeometry() bool { return a.BBox != nil }

type annotationJSON struct {
	ID    *ID             `json:"id,omitempty"`
	Type  Type            `json:"type"`
	BBox  json.RawMessage `json:"bbox,omitempty"`
	Text  *string         `json:"text,omitempty"`
	KeyID *ID             `json:"key_id,omitempty"`
	Order *int            `json:"order,omitempty"`
}

// MarshalJSON writes id (when set), type, bbox, text, key_id for keys and
// values, and order for values.
func (a Annotation) MarshalJSON() ([]byte, error) {
	out := annotationJSON{Type: a.Type, Text: &a.Text}
	if !a.ID.IsZero() {
		out.ID = &a.ID
	}
	if a.BBox != nil {
		b, err := json.Marshal(a.BBox)
		if err != nil {
			return nil, err
		}
		out.BBox = b
	}
	if a.Type == TypeKey || a.Type == TypeValue {
		out.KeyID = &a.KeyID
	}
	if a.Order > 0 {
		out.Order = &a.Order
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads an annotation. A bbox that is missing, null, empty or
// not made of at least four numbers leaves BBox nil.
func (a *Annotation) UnmarshalJSON(data []byte) error {
	var in annotationJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*a = Annotation{Type: in.Type}
	if in.ID != nil {
		a.ID = *in.ID
	}
	if in.KeyID != nil {
		a.KeyID = *in.KeyID
	}
	if in.Text != nil {
		a.Text = *in.Text
	}
	if in.Order != nil {
		a.Order = *in.Order
	}
	if raw := bytes.TrimSpace(in.BBox); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		var v []float64
		if err := json.Unmarshal(raw, &v); err == nil {
			if box, ok := geometry.FromSlice(v); ok {
				a.BBox = &box
			}
		}
	}
	return nil
}
