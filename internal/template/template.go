package template

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const annotationsField = "annotations"

// Template is a labelled layout document. Top-level fields other than
// annotations are carried through untouched.
type Template struct {
	Annotations []Annotation
	extra       map[string]json.RawMessage
}

// Parse validates and decodes a template document.
func Parse(data []byte) (*Template, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}
	return Decode(data)
}

// Decode decodes a template document without schema validation.
func Decode(data []byte) (*Template, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode template: %w", err)
	}
	t := &Template{extra: fields}
	if raw, ok := fields[annotationsField]; ok {
		if err := json.Unmarshal(raw, &t.Annotations); err != nil {
			return nil, fmt.Errorf("failed to decode annotations: %w", err)
		}
		delete(t.extra, annotationsField)
	}
	return t, nil
}

// Load reads, validates and decodes a template file.
func Load(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", path, err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", path, err)
	}
	return t, nil
}

// WithAnnotations returns a copy of t sharing its extra fields but carrying
// the given annotations.
func (t *Template) WithAnnotations(anns []Annotation) *Template {
	extra := make(map[string]json.RawMessage, len(t.extra))
	for k, v := range t.extra {
		extra[k] = v
	}
	return &Template{Annotations: anns, extra: extra}
}

// Set stores an extra top-level field.
func (t *Template) Set(field string, value any) error {
	if field == annotationsField {
		return fmt.Errorf("field %q is reserved", field)
	}
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode field %s: %w", field, err)
	}
	if t.extra == nil {
		t.extra = make(map[string]json.RawMessage)
	}
	t.extra[field] = b
	return nil
}

// Field returns the raw JSON of an extra top-level field.
func (t *Template) Field(field string) (json.RawMessage, bool) {
	v, ok := t.extra[field]
	return v, ok
}

// Counts returns the number of key, value and etc annotations.
func (t *Template) Counts() (keys, values, etcs int) {
	for _, a := range t.Annotations {
		switch a.Type {
		case TypeKey:
			keys++
		case TypeValue:
			values++
		case TypeEtc:
			etcs++
		}
	}
	return keys, values, etcs
}

// Compact returns the editor-save form: annotation ids dropped and every
// bbox coordinate rounded to the nearest integer.
func (t *Template) Compact() *Template {
	anns := make([]Annotation, len(t.Annotations))
	for i, a := range t.Annotations {
		a.ID = ID{}
		if a.BBox != nil {
			b := a.BBox.Round()
			a.BBox = &b
		}
		anns[i] = a
	}
	return t.WithAnnotations(anns)
}

// MarshalJSON writes the extra fields plus annotations.
func (t *Template) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(t.extra)+1)
	for k, v := range t.extra {
		out[k] = v
	}
	anns := t.Annotations
	if anns == nil {
		anns = []Annotation{}
	}
	out[annotationsField] = anns
	return json.Marshal(out)
}

// Format selects an output encoding.
type Format string

const (
	FormatJSON        Format = "json"
	FormatJSONCompact Format = "json-compact"
	FormatYAML        Format = "yaml"
)

// Encode writes t in the given format.
func Encode(w io.Writer, t *Template, format Format) error {
	switch format {
	case FormatJSONCompact:
		b, err := json.Marshal(t.Compact())
		if err != nil {
			return fmt.Errorf("failed to encode template: %w", err)
		}
		_, err = w.Write(append(b, '\n'))
		return err
	case FormatYAML:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("failed to encode template: %w", err)
		}
		var generic any
		if err := json.Unmarshal(b, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return fmt.Errorf("failed to encode template as yaml: %w", err)
		}
		return enc.Close()
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(t); err != nil {
			return fmt.Errorf("failed to encode template: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported template format %q", format)
	}
}

// Save writes t to path, creating parent directories.
func Save(path string, t *Template, format Format) error {
	var buf bytes.Buffer
	if err := Encode(&buf, t, format); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
