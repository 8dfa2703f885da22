package align

import (
	"github.com/MeKo-Tech/kvmap/internal/geometry"
	"github.com/MeKo-Tech/kvmap/internal/ocrwords"
	"github.com/MeKo-Tech/kvmap/internal/template"
)

// synthesize builds the output annotations: keys, then values, then the
// matched etc labels.
func (r *run) synthesize() []template.Annotation {
	ctx := r.ctx
	out := make([]template.Annotation, 0, len(ctx.entries))

	for _, k := range ctx.keys {
		key := ctx.entries[k]
		box := key.bbox
		if i, ok := r.bestKeyWord(key.bbox); ok {
			box = ctx.fine.Word(i).BBox
			if box.Width() > key.bbox.Width() {
				box = box.ClampX(key.bbox)
			}
			r.stats.KeysSnapped++
		}
		out = append(out, template.Annotation{
			Type:  template.TypeKey,
			BBox:  &box,
			Text:  key.ann.Text,
			KeyID: key.ann.ID,
		})
	}

	for _, v := range ctx.values {
		val := ctx.entries[v]
		var words []ocrwords.Word
		for _, i := range ctx.coarse.Intersecting(val.bbox) {
			w := ctx.coarse.Word(i)
			if geometry.OverlapRatio(w.BBox, val.bbox) >= r.cfg.ValueOverlapThreshold {
				words = append(words, w)
			}
		}
		if len(words) == 0 {
			box := val.bbox
			out = append(out, template.Annotation{
				Type:  template.TypeValue,
				BBox:  &box,
				Text:  val.ann.Text,
				KeyID: val.ann.KeyID,
				Order: 1,
			})
			r.stats.ValuesFallback++
			continue
		}
		for n, line := range SplitLines(words, r.cfg.LineSplitFactor) {
			box := line.BBox
			out = append(out, template.Annotation{
				Type:  template.TypeValue,
				BBox:  &box,
				Text:  line.Text,
				KeyID: val.ann.KeyID,
				Order: n + 1,
			})
		}
		r.stats.ValuesRebuilt++
	}

	for _, e := range ctx.etcs {
		etc := ctx.entries[e]
		if !etc.etcMatched {
			continue
		}
		box := etc.bbox
		out = append(out, template.Annotation{
			Type: template.TypeEtc,
			BBox: &box,
			Text: etc.ann.Text,
		})
	}
	return out
}

// bestKeyWord returns the fine word with the strictly highest IoU above the
// result threshold.
func (r *run) bestKeyWord(b geometry.Box) (int, bool) {
	best, match := r.cfg.ResultIoUThreshold, -1
	for _, i := range r.ctx.fine.Intersecting(b) {
		if iou := geometry.IoU(b, r.ctx.fine.Word(i).BBox); iou > best {
			best, match = iou, i
		}
	}
	return match, match >= 0
}
