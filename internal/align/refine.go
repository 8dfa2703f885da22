package align

import (
	"log/slog"

	"github.com/MeKo-Tech/kvmap/internal/textnorm"
)

// refineKeys nudges keys recovered through their values onto an overlapping
// fine word that starts with the same character as the label.
func (r *run) refineKeys() {
	ctx := r.ctx
	for _, k := range ctx.keys {
		key := &ctx.entries[k]
		if key.match != KeyStage2 {
			continue
		}
		first := textnorm.FirstChar(key.ann.Text)
		if first == "" {
			continue
		}

		match := -1
		for _, i := range ctx.fine.Overlapping(key.bbox) {
			w := ctx.fine.Word(i)
			if textnorm.FirstChar(w.Text) != first {
				continue
			}
			if match < 0 || w.BBox.CornerSum() < ctx.fine.Word(match).BBox.CornerSum() {
				match = i
			}
		}
		if match < 0 {
			continue
		}

		word := ctx.fine.Word(match)
		d := ctx.snap(k, word.BBox.TopLeft())
		for _, v := range ctx.linkedValues(k) {
			ctx.translate(v, d)
		}
		r.stats.Stage3++
		r.log.Debug("key adjusted",
			slog.String("stage", "refine"),
			slog.String("id", key.ann.ID.Key()),
			slog.String("match", word.Text),
			slog.Float64("dx", d.X),
			slog.Float64("dy", d.Y))
	}
}
