package align

import (
	"github.com/MeKo-Tech/kvmap/internal/geometry"
	"github.com/MeKo-Tech/kvmap/internal/ocrwords"
	"github.com/MeKo-Tech/kvmap/internal/template"
)

// KeyMatch records which stage anchored a key.
type KeyMatch uint8

const (
	KeyUnmatched KeyMatch = iota
	KeyStage1
	KeyStage2
)

func (m KeyMatch) String() string {
	switch m {
	case KeyStage1:
		return "stage1"
	case KeyStage2:
		return "stage2"
	default:
		return "none"
	}
}

// entry is the alignment state of one annotation with geometry.
type entry struct {
	ann   template.Annotation
	bbox  geometry.Box
	delta geometry.Point
	match KeyMatch
	// etcMatched is set for etc annotations relocated onto a fine word.
	etcMatched bool
}

// Context is the per-document alignment state threaded through the stages.
// It is never shared between documents.
type Context struct {
	entries []entry
	keys    []int
	values  []int
	etcs    []int
	// linked maps a key id to its value entries in template order.
	linked map[string][]int

	fine   *ocrwords.Index
	coarse *ocrwords.Index
}

// NewContext prepares the state for one document. Annotations without a
// bbox, or with an unknown type, do not take part.
func NewContext(tpl *template.Template, fine, coarse []ocrwords.Word) *Context {
	ctx := &Context{
		linked: make(map[string][]int),
		fine:   ocrwords.NewIndex(fine),
		coarse: ocrwords.NewIndex(coarse),
	}
	for _, a := range tpl.Annotations {
		if !a.HasGeometry() {
			continue
		}
		i := len(ctx.entries)
		switch a.Type {
		case template.TypeKey:
			ctx.keys = append(ctx.keys, i)
		case template.TypeValue:
			ctx.values = append(ctx.values, i)
			if !a.KeyID.IsZero() {
				ctx.linked[a.KeyID.Key()] = append(ctx.linked[a.KeyID.Key()], i)
			}
		case template.TypeEtc:
			ctx.etcs = append(ctx.etcs, i)
		default:
			continue
		}
		ctx.entries = append(ctx.entries, entry{ann: a, bbox: *a.BBox})
	}
	return ctx
}

// linkedValues returns the value entries owned by key entry k.
func (c *Context) linkedValues(k int) []int {
	id := c.entries[k].ann.ID
	if id.IsZero() {
		return nil
	}
	return c.linked[id.Key()]
}

// translate shifts entry i by d, keeping its size.
func (c *Context) translate(i int, d geometry.Point) {
	e := &c.entries[i]
	e.bbox = e.bbox.Translate(d.X, d.Y)
	e.delta = e.delta.Add(d)
}

// snap moves the top-left corner of entry i onto p and returns the applied delta.
func (c *Context) snap(i int, p geometry.Point) geometry.Point {
	e := &c.entries[i]
	d := p.Sub(e.bbox.TopLeft())
	e.bbox = e.bbox.MoveTo(p)
	e.delta = e.delta.Add(d)
	return d
}

// insideKeyOrValue reports whether p falls inside any current key or value box.
func (c *Context) insideKeyOrValue(p geometry.Point) bool {
	for _, group := range [][]int{c.keys, c.values} {
		for _, i := range group {
			if c.entries[i].bbox.ContainsPoint(p) {
				return true
			}
		}
	}
	return false
}

func (c *Context) bboxOf(n int) geometry.Box { return c.entries[n].bbox }
func (c *Context) deltaOf(n int) geometry.Point { return c.entries[n].delta }
func (c *Context) matchOf(n int) KeyMatch { return c.entries[n].match }
