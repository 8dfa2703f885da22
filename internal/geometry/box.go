// Package geometry provides the axis-aligned box primitives shared by the
// alignment stages: overlap tests, IoU, overlap ratio, translation and snapping.
package geometry

import (
	"encoding/json"
	"fmt"
	"image"
	"math"
)

// Point represents a 2D coordinate in float space.
type Point struct {
	X float64
	Y float64
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }

// Add returns p + q.
func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

// Distance returns the Euclidean distance between two points.
func Distance(a, b Point) float64 { return math.Hypot(a.X-b.X, a.Y-b.Y) }

// DistanceSq returns the squared Euclidean distance between two points.
func DistanceSq(a, b Point) float64 {
	dx, dy := a.X-b.X, a.Y-b.Y
	return dx*dx + dy*dy
}

// Box represents an axis-aligned bounding box [x1, y1, x2, y2].
// It encodes to and decodes from a JSON array of four numbers.
type Box struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// NewBox constructs a Box from min/max coordinates ensuring ordering.
func NewBox(x1, y1, x2, y2 float64) Box {
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	return Box{MinX: x1, MinY: y1, MaxX: x2, MaxY: y2}
}

// FromSlice builds a Box from the first four values of v.
// It reports false when fewer than four values are present.
func FromSlice(v []float64) (Box, bool) {
	if len(v) < 4 {
		return Box{}, false
	}
	return Box{MinX: v[0], MinY: v[1], MaxX: v[2], MaxY: v[3]}, true
}

// Slice returns the box as [x1, y1, x2, y2].
func (b Box) Slice() []float64 { return []float64{b.MinX, b.MinY, b.MaxX, b.MaxY} }

// Width returns the box width.
func (b Box) Width() float64 { return b.MaxX - b.MinX }

// Height returns the box height.
func (b Box) Height() float64 { return b.MaxY - b.MinY }

// Area returns the box area, zero for degenerate boxes.
func (b Box) Area() float64 {
	w, h := b.Width(), b.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// TopLeft returns (x1, y1).
func (b Box) TopLeft() Point { return Point{X: b.MinX, Y: b.MinY} }

// Center returns the box centroid.
func (b Box) Center() Point {
	return Point{X: (b.MinX + b.MaxX) / 2, Y: (b.MinY + b.MaxY) / 2}
}

// CornerSum is x1+y1, the top-left-most tie-break key.
func (b Box) CornerSum() float64 { return b.MinX + b.MinY }

// Translate shifts the box by (dx, dy) keeping its size.
func (b Box) Translate(dx, dy float64) Box {
	return Box{MinX: b.MinX + dx, MinY: b.MinY + dy, MaxX: b.MaxX + dx, MaxY: b.MaxY + dy}
}

// MoveTo places the box's top-left corner at p keeping its size.
func (b Box) MoveTo(p Point) Box {
	return Box{MinX: p.X, MinY: p.Y, MaxX: p.X + b.Width(), MaxY: p.Y + b.Height()}
}

// Expand grows the box by d on every side.
func (b Box) Expand(d float64) Box {
	return Box{MinX: b.MinX - d, MinY: b.MinY - d, MaxX: b.MaxX + d, MaxY: b.MaxY + d}
}

// Contains reports whether o lies entirely within b, edges inclusive.
func (b Box) Contains(o Box) bool {
	return o.MinX >= b.MinX && o.MinY >= b.MinY && o.MaxX <= b.MaxX && o.MaxY <= b.MaxY
}

// ContainsPoint reports whether p lies within b, edges inclusive.
func (b Box) ContainsPoint(p Point) bool {
	return p.X >= b.MinX && p.X <= b.MaxX && p.Y >= b.MinY && p.Y <= b.MaxY
}

// ClampX restricts the horizontal extent of b to that of limit.
func (b Box) ClampX(limit Box) Box {
	b.MinX = math.Max(b.MinX, limit.MinX)
	b.MaxX = math.Min(b.MaxX, limit.MaxX)
	return b
}

// Round rounds every coordinate to the nearest integer.
func (b Box) Round() Box {
	return Box{MinX: math.Round(b.MinX), MinY: math.Round(b.MinY), MaxX: math.Round(b.MaxX), MaxY: math.Round(b.MaxY)}
}

// ToRect converts a Box to an image.Rectangle, clamped to image bounds.
func (b Box) ToRect(bounds image.Rectangle) image.Rectangle {
	x1 := clampInt(int(math.Floor(b.MinX)), bounds.Min.X, bounds.Max.X)
	y1 := clampInt(int(math.Floor(b.MinY)), bounds.Min.Y, bounds.Max.Y)
	x2 := clampInt(int(math.Ceil(b.MaxX)), bounds.Min.X, bounds.Max.X)
	y2 := clampInt(int(math.Ceil(b.MaxY)), bounds.Min.Y, bounds.Max.Y)
	if x2 < x1 {
		x2 = x1
	}
	if y2 < y1 {
		y2 = y1
	}
	return image.Rect(x1, y1, x2, y2)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// MarshalJSON encodes the box as [x1, y1, x2, y2].
func (b Box) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Slice())
}

// UnmarshalJSON decodes a [x1, y1, x2, y2] array.
func (b *Box) UnmarshalJSON(data []byte) error {
	var v []float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("invalid bbox: %w", err)
	}
	box, ok := FromSlice(v)
	if !ok {
		return fmt.Errorf("invalid bbox: need 4 coordinates, got %d", len(v))
	}
	*b = box
	return nil
}

// String implements fmt.Stringer.
func (b Box) String() string {
	return fmt.Sprintf("[%.1f, %.1f, %.1f, %.1f]", b.MinX, b.MinY, b.MaxX, b.MaxY)
}
