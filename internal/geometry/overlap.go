package geometry

// Overlaps reports whether two boxes touch or intersect. Shared edges count.
func Overlaps(a, b Box) bool {
	return !(a.MaxX < b.MinX || a.MinX > b.MaxX || a.MaxY < b.MinY || a.MinY > b.MaxY)
}

// Intersection returns the intersecting box and whether it has positive area.
func Intersection(a, b Box) (Box, bool) {
	ix := Box{
		MinX: max(a.MinX, b.MinX),
		MinY: max(a.MinY, b.MinY),
		MaxX: min(a.MaxX, b.MaxX),
		MaxY: min(a.MaxY, b.MaxY),
	}
	if ix.MaxX <= ix.MinX || ix.MaxY <= ix.MinY {
		return Box{}, false
	}
	return ix, true
}

// IoU computes intersection-over-union of two boxes.
func IoU(a, b Box) float64 {
	ix, ok := Intersection(a, b)
	if !ok {
		return 0
	}
	inter := ix.Area()
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// OverlapRatio returns how much of small lies inside large, as
// intersection area divided by the area of small.
func OverlapRatio(small, large Box) float64 {
	ix, ok := Intersection(small, large)
	if !ok {
		return 0
	}
	area := small.Area()
	if area <= 0 {
		return 0
	}
	return ix.Area() / area
}

// Union returns the bounding box of all boxes. Zero box for empty input.
func Union(boxes ...Box) Box {
	if len(boxes) == 0 {
		return Box{}
	}
	u := boxes[0]
	for _, b := range boxes[1:] {
		u.MinX = min(u.MinX, b.MinX)
		u.MinY = min(u.MinY, b.MinY)
		u.MaxX = max(u.MaxX, b.MaxX)
		u.MaxY = max(u.MaxY, b.MaxY)
	}
	return u
}

// BoundingBox returns the axis-aligned bounding box for a set of points.
func BoundingBox(pts []Point) Box {
	if len(pts) == 0 {
		return Box{}
	}
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := pts[0].X, pts[0].Y
	for _, p := range pts[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	return Box{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}
}
