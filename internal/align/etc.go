package align

import (
	"log/slog"

	"github.com/MeKo-Tech/kvmap/internal/geometry"
	"github.com/MeKo-Tech/kvmap/internal/ocrwords"
	"github.com/MeKo-Tech/kvmap/internal/textnorm"
)

// alignEtcs relocates free-standing etc labels. Words sitting inside a key
// or value box are never used. An overlapping word wins over a merely
// similar one elsewhere on the page; unmatched etc labels are dropped.
func (r *run) alignEtcs() {
	ctx := r.ctx
	for _, e := range ctx.etcs {
		etc := &ctx.entries[e]
		token, ok := textnorm.FirstToken(etc.ann.Text)
		if !ok {
			r.stats.EtcDropped++
			continue
		}
		eligible := func(w ocrwords.Word) bool {
			wt := textnorm.Token(w.Text)
			return textnorm.PrefixMatch(wt, token, r.cfg.EtcPrefixLength) &&
				!ctx.insideKeyOrValue(w.BBox.Center())
		}

		match, how := -1, "overlap"
		for _, i := range ctx.fine.Overlapping(etc.bbox) {
			w := ctx.fine.Word(i)
			if !eligible(w) {
				continue
			}
			if match < 0 || w.BBox.CornerSum() < ctx.fine.Word(match).BBox.CornerSum() {
				match = i
			}
		}

		if match < 0 {
			how = "nearest"
			center := etc.bbox.Center()
			var bestDist float64
			for i, w := range ctx.fine.Words() {
				if !eligible(w) {
					continue
				}
				d := geometry.DistanceSq(w.BBox.Center(), center)
				if match < 0 || d < bestDist {
					match, bestDist = i, d
				}
			}
		}

		if match < 0 {
			r.stats.EtcDropped++
			r.log.Debug("etc dropped", slog.String("stage", "etc"), slog.String("id", etc.ann.ID.Key()), slog.String("text", etc.ann.Text))
			continue
		}

		word := ctx.fine.Word(match)
		d := ctx.snap(e, word.BBox.TopLeft())
		etc.etcMatched = true
		r.stats.EtcMatched++
		r.log.Debug("etc matched",
			slog.String("stage", "etc"),
			slog.String("id", etc.ann.ID.Key()),
			slog.String("text", etc.ann.Text),
			slog.String("match", word.Text),
			slog.String("by", how),
			slog.Float64("dx", d.X),
			slog.Float64("dy", d.Y))
	}
}
