package geometry

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// genBox generates a random non-degenerate box.
func genBox() gopter.Gen {
	return gopter.CombineGens(
		gen.Float64Range(-500, 500),
		gen.Float64Range(-500, 500),
		gen.Float64Range(1, 200),
		gen.Float64Range(1, 200),
	).Map(func(vals []interface{}) Box {
		x, y := vals[0].(float64), vals[1].(float64)
		return Box{MinX: x, MinY: y, MaxX: x + vals[2].(float64), MaxY: y + vals[3].(float64)}
	})
}

// TestIoU_Properties checks identity, symmetry and range of IoU.
func TestIoU_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("IoU of a box with itself is 1", prop.ForAll(
		func(b Box) bool {
			return math.Abs(IoU(b, b)-1.0) < 1e-9
		},
		genBox(),
	))

	properties.Property("IoU is symmetric", prop.ForAll(
		func(a, b Box) bool {
			return math.Abs(IoU(a, b)-IoU(b, a)) < 1e-12
		},
		genBox(), genBox(),
	))

	properties.Property("IoU stays within [0,1]", prop.ForAll(
		func(a, b Box) bool {
			v := IoU(a, b)
			return v >= 0 && v <= 1+1e-12
		},
		genBox(), genBox(),
	))

	properties.Property("disjoint boxes have IoU 0", prop.ForAll(
		func(a Box, gap float64) bool {
			b := a.Translate(a.Width()+gap, 0)
			return IoU(a, b) == 0
		},
		genBox(), gen.Float64Range(0.1, 100),
	))

	properties.TestingRun(t)
}

// TestOverlapRatio_Properties checks containment and translation invariance.
func TestOverlapRatio_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("a box contained in another has ratio 1", prop.ForAll(
		func(b Box, margin float64) bool {
			return math.Abs(OverlapRatio(b, b.Expand(margin))-1.0) < 1e-9
		},
		genBox(), gen.Float64Range(0, 50),
	))

	properties.Property("translation keeps size", prop.ForAll(
		func(b Box, dx, dy float64) bool {
			m := b.Translate(dx, dy)
			return math.Abs(m.Width()-b.Width()) < 1e-9 && math.Abs(m.Height()-b.Height()) < 1e-9
		},
		genBox(), gen.Float64Range(-100, 100), gen.Float64Range(-100, 100),
	))

	properties.Property("MoveTo puts the top-left exactly on the target", prop.ForAll(
		func(b Box, x, y float64) bool {
			m := b.MoveTo(Point{X: x, Y: y})
			return m.MinX == x && m.MinY == y &&
				math.Abs(m.Width()-b.Width()) < 1e-9 && math.Abs(m.Height()-b.Height()) < 1e-9
		},
		genBox(), gen.Float64Range(-100, 100), gen.Float64Range(-100, 100),
	))

	properties.TestingRun(t)
}
