package align

import (
	"log/slog"
	"math"

	"github.com/MeKo-Tech/kvmap/internal/geometry"
)

// alignByValues recovers keys that found no anchor of their own. The first
// linked value that lands near an auto-value run decides the translation,
// which is then refined on the nearest fine word.
func (r *run) alignByValues() {
	ctx := r.ctx
	runs := ClusterLines(ctx.coarse.Words(), r.cfg.SameLineFactor)
	r.stats.AutoValues = len(runs)

	movedWithKey := make(map[int]bool)
	for _, k := range ctx.keys {
		if ctx.entries[k].match == KeyStage1 {
			for _, v := range ctx.linkedValues(k) {
				movedWithKey[v] = true
			}
		}
	}

	for _, k := range ctx.keys {
		key := &ctx.entries[k]
		if key.match != KeyUnmatched {
			continue
		}
		var pending []int
		for _, v := range ctx.linkedValues(k) {
			if !movedWithKey[v] {
				pending = append(pending, v)
			}
		}
		if len(pending) == 0 {
			continue
		}

		for _, v := range pending {
			valBox := ctx.entries[v].bbox
			av, ok := r.nearestRun(runs, valBox)
			if !ok {
				continue
			}

			target := key.bbox.TopLeft().Add(av.BBox.TopLeft().Sub(valBox.TopLeft()))
			refined := ""
			if i, ok := r.nearestFineTopLeft(target); ok {
				w := ctx.fine.Word(i)
				target, refined = w.BBox.TopLeft(), w.Text
			}

			d := ctx.snap(k, target)
			for _, lv := range ctx.linkedValues(k) {
				ctx.translate(lv, d)
			}
			key.match = KeyStage2
			r.stats.Stage2++
			r.log.Debug("key matched via value",
				slog.String("stage", "values"),
				slog.String("id", key.ann.ID.Key()),
				slog.String("text", key.ann.Text),
				slog.String("run", av.Text),
				slog.String("refined_on", refined),
				slog.Float64("dx", d.X),
				slog.Float64("dy", d.Y))
			break
		}
	}
}

// nearestRun picks the auto-value closest by centroid among those lying
// inside the tolerance-expanded value box or within the proximity radius.
func (r *run) nearestRun(runs []AutoValue, valBox geometry.Box) (AutoValue, bool) {
	region := valBox.Expand(r.cfg.ContainmentTolerance)
	center := valBox.Center()
	best, bestDist := -1, math.Inf(1)
	for i, av := range runs {
		dist := geometry.Distance(av.BBox.Center(), center)
		if !region.Contains(av.BBox) && dist >= r.cfg.ProximityRadius {
			continue
		}
		if dist < bestDist {
			best, bestDist = i, dist
		}
	}
	if best < 0 {
		return AutoValue{}, false
	}
	return runs[best], true
}

// nearestFineTopLeft finds the fine word whose top-left corner is closest to p
// within the refine radius.
func (r *run) nearestFineTopLeft(p geometry.Point) (int, bool) {
	best, bestDist := -1, math.Inf(1)
	for _, i := range r.ctx.fine.NearTopLeft(p, r.cfg.RefineRadius) {
		if d := geometry.Distance(r.ctx.fine.Word(i).BBox.TopLeft(), p); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, best >= 0
}
