// Package ocrwords converts the native record shapes of the two OCR sources
// into a uniform word list and indexes those words spatially.
package ocrwords

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/MeKo-Tech/kvmap/internal/geometry"
	"github.com/MeKo-Tech/kvmap/internal/textnorm"
)

// ErrUnsupportedPayload is returned when a payload is neither a list nor an object.
var ErrUnsupportedPayload = errors.New("unsupported OCR payload")

// Word is a single OCR token with its axis-aligned box.
type Word struct {
	Text string       `json:"text"`
	BBox geometry.Box `json:"bbox"`
}

// Source identifies which OCR engine produced a word list.
type Source string

const (
	// SourceFine is the word-level OCR with polygon boxes.
	SourceFine Source = "fine"
	// SourceCoarse is the structured OCR with x/y coordinate arrays.
	SourceCoarse Source = "coarse"
)

// Parse dispatches to ParseFine or ParseCoarse.
func Parse(src Source, raw []byte) ([]Word, error) {
	switch src {
	case SourceFine:
		return ParseFine(raw)
	case SourceCoarse:
		return ParseCoarse(raw)
	default:
		return nil, fmt.Errorf("unknown OCR source %q", src)
	}
}

// ParseFine extracts words from a fine-grained OCR payload. The payload is
// either a list of {bbox: [[x,y],...], text} polygon records or an object
// holding a words list. Records without text or geometry are skipped.
func ParseFine(raw []byte) ([]Word, error) {
	root, err := decode(raw)
	if err != nil {
		return nil, err
	}
	switch v := root.(type) {
	case nil:
		return nil, nil
	case []any:
		return fineFromPolygons(v), nil
	case map[string]any:
		list, _ := v["words"].([]any)
		return fineFromWords(list), nil
	default:
		return nil, fmt.Errorf("fine OCR: %w: %T", ErrUnsupportedPayload, root)
	}
}

// ParseCoarse extracts words from a coarse OCR payload: a list of
// {x: [...], y: [...], data|text} records or an object whose bbox field
// holds that list.
func ParseCoarse(raw []byte) ([]Word, error) {
	root, err := decode(raw)
	if err != nil {
		return nil, err
	}
	switch v := root.(type) {
	case nil:
		return nil, nil
	case []any:
		return coarseFromRecords(v), nil
	case map[string]any:
		list, _ := v["bbox"].([]any)
		return coarseFromRecords(list), nil
	default:
		return nil, fmt.Errorf("coarse OCR: %w: %T", ErrUnsupportedPayload, root)
	}
}

func decode(raw []byte) (any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}
	var root any
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("failed to decode OCR payload: %w", err)
	}
	return root, nil
}

func fineFromPolygons(items []any) []Word {
	words := make([]Word, 0, len(items))
	for _, item := range items {
		rec, ok := item.(map[string]any)
		if !ok {
			continue
		}
		text := recordText(rec, "text")
		if text == "" {
			continue
		}
		pts, ok := polygon(rec["bbox"])
		if !ok {
			continue
		}
		words = append(words, Word{Text: text, BBox: geometry.BoundingBox(pts)})
	}
	return words
}

func fineFromWords(items []any) []Word {
	words := make([]Word, 0, len(items))
	for _, item := range items {
		rec, ok := item.(map[string]any)
		if !ok {
			continue
		}
		text := recordText(rec, "text")
		if text == "" {
			continue
		}
		if flat, ok := numbers(rec["bbox"]); ok {
			if len(flat) >= 4 {
				words = append(words, Word{Text: text, BBox: geometry.NewBox(flat[0], flat[1], flat[2], flat[3])})
			}
			continue
		}
		if pts, ok := polygon(rec["bbox"]); ok {
			words = append(words, Word{Text: text, BBox: geometry.BoundingBox(pts)})
		}
	}
	return words
}

func coarseFromRecords(items []any) []Word {
	words := make([]Word, 0, len(items))
	for _, item := range items {
		rec, ok := item.(map[string]any)
		if !ok {
			continue
		}
		text := recordText(rec, "data", "text")
		if text == "" {
			continue
		}
		xs, okX := numbers(rec["x"])
		ys, okY := numbers(rec["y"])
		if !okX || !okY || len(xs) < 4 || len(ys) < 4 {
			continue
		}
		box := geometry.Box{MinX: xs[0], MinY: ys[0], MaxX: xs[0], MaxY: ys[0]}
		for _, x := range xs[1:] {
			box.MinX, box.MaxX = min(box.MinX, x), max(box.MaxX, x)
		}
		for _, y := range ys[1:] {
			box.MinY, box.MaxY = min(box.MinY, y), max(box.MaxY, y)
		}
		words = append(words, Word{Text: text, BBox: box})
	}
	return words
}

// recordText returns the first non-blank string among keys, NFC normalised.
func recordText(rec map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := rec[k].(string); ok && strings.TrimSpace(s) != "" {
			return textnorm.NFC(s)
		}
	}
	return ""
}

// polygon reads a list of [x, y] vertices. At least four vertices are
// required; vertices with fewer than two numbers are ignored.
func polygon(v any) ([]geometry.Point, bool) {
	list, ok := v.([]any)
	if !ok || len(list) < 4 {
		return nil, false
	}
	if _, ok := list[0].([]any); !ok {
		return nil, false
	}
	pts := make([]geometry.Point, 0, len(list))
	for _, vert := range list {
		xy, ok := numbers(vert)
		if !ok || len(xy) < 2 {
			continue
		}
		pts = append(pts, geometry.Point{X: xy[0], Y: xy[1]})
	}
	return pts, len(pts) > 0
}

// numbers reads a JSON array made only of numbers.
func numbers(v any) ([]float64, bool) {
	list, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]float64, 0, len(list))
	for _, n := range list {
		f, ok := n.(float64)
		if !ok {
			return nil, false
		}
		out = append(out, f)
	}
	return out, true
}
