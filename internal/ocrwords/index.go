package ocrwords

import (
	"slices"

	"github.com/tidwall/rtree"

	"github.com/MeKo-Tech/kvmap/internal/geometry"
)

// searchEpsilon widens rtree queries so boundary-touching words are never
// missed; every candidate is re-checked with the exact predicate.
const searchEpsilon = 1e-6

// Index is an R-tree over a word list. Query results are returned as word
// indices in ascending order so callers see candidates in input order.
type Index struct {
	words []Word
	tree  rtree.RTreeG[int]
}

// NewIndex builds an index over words. The slice is not copied.
func NewIndex(words []Word) *Index {
	idx := &Index{words: words}
	for i, w := range words {
		idx.tree.Insert(
			[2]float64{w.BBox.MinX, w.BBox.MinY},
			[2]float64{w.BBox.MaxX, w.BBox.MaxY},
			i,
		)
	}
	return idx
}

// Len returns the number of indexed words.
func (idx *Index) Len() int { return len(idx.words) }

// Words returns the indexed words.
func (idx *Index) Words() []Word { return idx.words }

// Word returns the word at position i.
func (idx *Index) Word(i int) Word { return idx.words[i] }

func (idx *Index) search(b geometry.Box, keep func(Word) bool) []int {
	var hits []int
	idx.tree.Search(
		[2]float64{b.MinX - searchEpsilon, b.MinY - searchEpsilon},
		[2]float64{b.MaxX + searchEpsilon, b.MaxY + searchEpsilon},
		func(_, _ [2]float64, i int) bool {
			if keep(idx.words[i]) {
				hits = append(hits, i)
			}
			return true
		},
	)
	slices.Sort(hits)
	return hits
}

// Overlapping returns words whose box touches or intersects b.
func (idx *Index) Overlapping(b geometry.Box) []int {
	return idx.search(b, func(w Word) bool { return geometry.Overlaps(b, w.BBox) })
}

// Intersecting returns words sharing a positive area with b. Only these can
// have a non-zero IoU or overlap ratio against b.
func (idx *Index) Intersecting(b geometry.Box) []int {
	return idx.search(b, func(w Word) bool {
		_, ok := geometry.Intersection(b, w.BBox)
		return ok
	})
}

// NearTopLeft returns words whose top-left corner lies strictly closer than
// radius to p.
func (idx *Index) NearTopLeft(p geometry.Point, radius float64) []int {
	area := geometry.Box{MinX: p.X - radius, MinY: p.Y - radius, MaxX: p.X + radius, MaxY: p.Y + radius}
	return idx.search(area, func(w Word) bool {
		return geometry.Distance(w.BBox.TopLeft(), p) < radius
	})
}
