package align

import (
	"log/slog"

	"github.com/MeKo-Tech/kvmap/internal/geometry"
	"github.com/MeKo-Tech/kvmap/internal/textnorm"
)

// alignKeys anchors template keys on fine words, first by label text and
// then by box overlap. Linked values follow their key.
func (r *run) alignKeys() {
	ctx := r.ctx
	for _, k := range ctx.keys {
		key := &ctx.entries[k]
		lines := textnorm.Lines(key.ann.Text)

		match, how := -1, ""
		for i, w := range ctx.fine.Words() {
			if !matchesAnyLine(lines, w.Text) {
				continue
			}
			if match < 0 || w.BBox.CornerSum() < ctx.fine.Word(match).BBox.CornerSum() {
				match = i
			}
		}
		if match >= 0 {
			how = "text"
			r.stats.Stage1Text++
		} else {
			best := r.cfg.KeyIoUThreshold
			for _, i := range ctx.fine.Intersecting(key.bbox) {
				if iou := geometry.IoU(key.bbox, ctx.fine.Word(i).BBox); iou > best {
					best, match = iou, i
				}
			}
			if match >= 0 {
				how = "iou"
				r.stats.Stage1IoU++
			}
		}

		if match < 0 {
			r.log.Debug("key deferred", slog.String("stage", "keys"), slog.String("id", key.ann.ID.Key()), slog.String("text", key.ann.Text))
			continue
		}

		word := ctx.fine.Word(match)
		d := ctx.snap(k, word.BBox.TopLeft())
		for _, v := range ctx.linkedValues(k) {
			ctx.translate(v, d)
		}
		key.match = KeyStage1
		r.log.Debug("key matched",
			slog.String("stage", "keys"),
			slog.String("id", key.ann.ID.Key()),
			slog.String("text", key.ann.Text),
			slog.String("match", word.Text),
			slog.String("by", how),
			slog.Float64("dx", d.X),
			slog.Float64("dy", d.Y))
	}
}

func matchesAnyLine(lines []string, text string) bool {
	for _, line := range lines {
		if textnorm.EqualIgnoringSpaces(line, text) {
			return true
		}
	}
	return false
}
