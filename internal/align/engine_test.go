package align

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/kvmap/internal/geometry"
	"github.com/MeKo-Tech/kvmap/internal/ocrwords"
	"github.com/MeKo-Tech/kvmap/internal/template"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(DefaultConfig(), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	return e
}

func box(x1, y1, x2, y2 float64) *geometry.Box {
	return &geometry.Box{MinX: x1, MinY: y1, MaxX: x2, MaxY: y2}
}

func word(text string, x1, y1, x2, y2 float64) ocrwords.Word {
	return ocrwords.Word{Text: text, BBox: geometry.Box{MinX: x1, MinY: y1, MaxX: x2, MaxY: y2}}
}

func key(id int, text string, b *geometry.Box) template.Annotation {
	return template.Annotation{ID: template.IntID(id), Type: template.TypeKey, BBox: b, Text: text}
}

func value(id, keyID int, text string, b *geometry.Box) template.Annotation {
	return template.Annotation{ID: template.IntID(id), Type: template.TypeValue, BBox: b, Text: text, KeyID: template.IntID(keyID)}
}

func etc(id int, text string, b *geometry.Box) template.Annotation {
	return template.Annotation{ID: template.IntID(id), Type: template.TypeEtc, BBox: b, Text: text}
}

func tplOf(anns ...template.Annotation) *template.Template {
	return (&template.Template{}).WithAnnotations(anns)
}

func byType(anns []template.Annotation, typ template.Type) []template.Annotation {
	var out []template.Annotation
	for _, a := range anns {
		if a.Type == typ {
			out = append(out, a)
		}
	}
	return out
}

func TestAlign_TextMatchMovesKeyAndValue(t *testing.T) {
	e := newTestEngine(t)
	tpl := tplOf(
		key(1, "INVOICE NO", box(10, 10, 100, 30)),
		value(2, 1, "12345", box(110, 10, 200, 30)),
	)
	fine := []ocrwords.Word{word("INVOICENO", 50, 50, 140, 70)}

	res := e.Align(tpl, fine, nil)
	require.Len(t, res.Template.Annotations, 2)

	k := res.Template.Annotations[0]
	assert.Equal(t, template.TypeKey, k.Type)
	assert.Equal(t, "INVOICE NO", k.Text)
	assert.Equal(t, "1", k.KeyID.Key())
	assert.Equal(t, *box(50, 50, 140, 70), *k.BBox)

	v := res.Template.Annotations[1]
	assert.Equal(t, template.TypeValue, v.Type)
	assert.Equal(t, *box(150, 50, 240, 70), *v.BBox)
	assert.Equal(t, "12345", v.Text)
	assert.Equal(t, 1, v.Order)
	assert.Equal(t, "1", v.KeyID.Key())

	assert.Equal(t, 1, res.Stats.Stage1Text)
	assert.Equal(t, 1, res.Stats.KeysSnapped)
	assert.Equal(t, 1, res.Stats.ValuesFallback)
	assert.Equal(t, 1, res.Stats.Keys)
	assert.Equal(t, 1, res.Stats.Values)
	assert.Len(t, res.Stats.Timings, 5)
}

func TestAlign_UnmatchedKeyStaysInPlace(t *testing.T) {
	e := newTestEngine(t)
	tpl := tplOf(
		key(1, "INVOICE NO", box(10, 10, 100, 30)),
		value(2, 1, "12345", box(110, 10, 200, 30)),
	)
	fine := []ocrwords.Word{word("TOTAL", 500, 500, 560, 520)}

	r := &run{cfg: e.cfg, log: e.logger, ctx: NewContext(tpl, fine, nil), stats: &Stats{}}
	r.alignKeys()
	assert.Equal(t, KeyUnmatched, r.ctx.matchOf(0))
	assert.Equal(t, *box(10, 10, 100, 30), r.ctx.bboxOf(0))

	res := e.Align(tpl, fine, nil)
	assert.Equal(t, *box(10, 10, 100, 30), *res.Template.Annotations[0].BBox)
	assert.Equal(t, *box(110, 10, 200, 30), *res.Template.Annotations[1].BBox)
	assert.Zero(t, res.Stats.Stage1Text+res.Stats.Stage1IoU+res.Stats.Stage2)
}

func TestAlignKeys_IoUFallbackIsStrictAndKeepsFirst(t *testing.T) {
	tpl := tplOf(key(1, "SHIPPER", box(0, 0, 100, 20)))

	tests := []struct {
		name      string
		fine      []ocrwords.Word
		wantMatch bool
		wantTL    geometry.Point
	}{
		{
			name:      "shifted word above threshold",
			fine:      []ocrwords.Word{word("5HIPPER", 5, 2, 105, 22)},
			wantMatch: true,
			wantTL:    geometry.Point{X: 5, Y: 2},
		},
		{
			name: "equal IoU keeps the first",
			fine: []ocrwords.Word{
				word("A", 5, 0, 105, 20),
				word("B", -5, 0, 95, 20),
			},
			wantMatch: true,
			wantTL:    geometry.Point{X: 5, Y: 0},
		},
		{
			// inter=60*20, union=100*20+100*20-60*20 -> 1200/2800
			name:      "below threshold",
			fine:      []ocrwords.Word{word("X", 40, 0, 140, 20)},
			wantMatch: false,
			wantTL:    geometry.Point{X: 0, Y: 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &run{cfg: DefaultConfig(), log: slog.New(slog.NewTextHandler(io.Discard, nil)), ctx: NewContext(tpl, tt.fine, nil), stats: &Stats{}}
			r.alignKeys()
			assert.Equal(t, tt.wantMatch, r.ctx.matchOf(0) == KeyStage1)
			assert.Equal(t, tt.wantTL, r.ctx.bboxOf(0).TopLeft())
			assert.InDelta(t, 100.0, r.ctx.bboxOf(0).Width(), 1e-9)
		})
	}
}

func TestAlignKeys_MultiLineLabelPicksTopLeftMost(t *testing.T) {
	tpl := tplOf(key(1, "PORT OF\nLOADING", box(0, 0, 80, 40)))
	fine := []ocrwords.Word{
		word("LOADING", 300, 320, 380, 340),
		word("PORTOF", 300, 300, 370, 318),
		word("LOADING", 10, 900, 90, 920),
	}
	r := &run{cfg: DefaultConfig(), log: slog.Default(), ctx: NewContext(tpl, fine, nil), stats: &Stats{}}
	r.alignKeys()

	assert.Equal(t, KeyStage1, r.ctx.matchOf(0))
	assert.Equal(t, geometry.Point{X: 300, Y: 300}, r.ctx.bboxOf(0).TopLeft())
	assert.Equal(t, geometry.Point{X: 300, Y: 300}, r.ctx.deltaOf(0))
}

func TestAlign_ValueFallbackRecoversKey(t *testing.T) {
	e := newTestEngine(t)
	tpl := tplOf(
		key(1, "SHIPPER", box(10, 10, 80, 30)),
		value(2, 1, "ACME", box(100, 10, 200, 30)),
	)
	fine := []ocrwords.Word{word("SHIPPER:", 31, 26, 101, 46)}
	coarse := []ocrwords.Word{
		word("ACME", 120, 25, 170, 45),
		word("CORP", 175, 25, 215, 45),
	}

	res := e.Align(tpl, fine, coarse)
	require.Len(t, res.Template.Annotations, 2)

	assert.Equal(t, 1, res.Stats.Stage2)
	assert.Equal(t, 1, res.Stats.AutoValues)
	assert.Equal(t, *box(31, 26, 101, 46), *res.Template.Annotations[0].BBox)

	v := res.Template.Annotations[1]
	assert.Equal(t, "ACME CORP", v.Text)
	assert.Equal(t, *box(120, 25, 215, 45), *v.BBox)
	assert.Equal(t, 1, v.Order)
	assert.Equal(t, 1, res.Stats.ValuesRebuilt)
}

func TestAlign_RefineSnapsOnFirstCharacter(t *testing.T) {
	e := newTestEngine(t)
	tpl := tplOf(
		key(1, "SHIPPER", box(10, 10, 110, 30)),
		value(2, 1, "ACME", box(120, 10, 200, 30)),
	)
	// too far from the tentative key corner for the value-stage refinement
	fine := []ocrwords.Word{word("shipper", 85, 27, 140, 45)}
	coarse := []ocrwords.Word{word("ACME", 140, 25, 190, 45)}

	r := &run{cfg: e.cfg, log: e.logger, ctx: NewContext(tpl, fine, coarse), stats: &Stats{}}
	r.alignKeys()
	r.alignByValues()
	require.Equal(t, KeyStage2, r.ctx.matchOf(0))
	assert.Equal(t, *box(30, 25, 130, 45), r.ctx.bboxOf(0))
	assert.Equal(t, *box(140, 25, 220, 45), r.ctx.bboxOf(1))

	r.refineKeys()
	assert.Equal(t, 1, r.stats.Stage3)
	assert.Equal(t, *box(85, 27, 185, 47), r.ctx.bboxOf(0))
	assert.Equal(t, *box(195, 27, 275, 47), r.ctx.bboxOf(1))
	assert.Equal(t, geometry.Point{X: 75, Y: 17}, r.ctx.deltaOf(0))
	assert.Equal(t, geometry.Point{X: 75, Y: 17}, r.ctx.deltaOf(1))
}

func TestAlign_ValueFallbackNeedsNearbyRun(t *testing.T) {
	e := newTestEngine(t)
	tpl := tplOf(
		key(1, "SHIPPER", box(10, 10, 80, 30)),
		value(2, 1, "ACME", box(100, 10, 200, 30)),
	)
	coarse := []ocrwords.Word{word("FAR", 600, 600, 650, 620)}

	r := &run{cfg: e.cfg, log: e.logger, ctx: NewContext(tpl, nil, coarse), stats: &Stats{}}
	r.alignKeys()
	r.alignByValues()
	assert.Equal(t, KeyUnmatched, r.ctx.matchOf(0))
	assert.Equal(t, *box(10, 10, 80, 30), r.ctx.bboxOf(0))
}

func TestAlign_FirstLinkedValueWins(t *testing.T) {
	e := newTestEngine(t)
	tpl := tplOf(
		key(1, "ADDRESS", box(0, 0, 80, 20)),
		value(2, 1, "line one", box(100, 0, 300, 20)),
		value(3, 1, "line two", box(100, 30, 300, 50)),
	)
	// only the first value has a run nearby; it moves both values by (10, 5)
	coarse := []ocrwords.Word{word("line", 110, 5, 160, 25)}

	r := &run{cfg: e.cfg, log: e.logger, ctx: NewContext(tpl, nil, coarse), stats: &Stats{}}
	r.alignKeys()
	r.alignByValues()
	require.Equal(t, KeyStage2, r.ctx.matchOf(0))
	assert.Equal(t, geometry.Point{X: 10, Y: 5}, r.ctx.deltaOf(0))
	assert.Equal(t, *box(110, 5, 310, 25), r.ctx.bboxOf(1))
	assert.Equal(t, *box(110, 35, 310, 55), r.ctx.bboxOf(2))
}

func TestAlign_LaterLinkedValueDecidesWhenFirstHasNoRun(t *testing.T) {
	e := newTestEngine(t)
	tpl := tplOf(
		key(1, "ADDRESS", box(0, 0, 80, 20)),
		value(2, 1, "line one", box(100, 0, 300, 20)),
		value(3, 1, "line two", box(100, 200, 300, 220)),
	)
	// far from the first value, inside the expanded box of the second
	coarse := []ocrwords.Word{word("line", 110, 205, 160, 225)}

	r := &run{cfg: e.cfg, log: e.logger, ctx: NewContext(tpl, nil, coarse), stats: &Stats{}}
	r.alignKeys()
	r.alignByValues()
	require.Equal(t, KeyStage2, r.ctx.matchOf(0))
	assert.Equal(t, geometry.Point{X: 10, Y: 5}, r.ctx.deltaOf(0))
	assert.Equal(t, *box(10, 5, 90, 25), r.ctx.bboxOf(0))
	assert.Equal(t, *box(110, 5, 310, 25), r.ctx.bboxOf(1))
	assert.Equal(t, *box(110, 205, 310, 225), r.ctx.bboxOf(2))
}

func TestAlign_RunQualifiesByContainmentAlone(t *testing.T) {
	e := newTestEngine(t)
	tpl := tplOf(
		key(1, "TOTAL", box(0, 0, 80, 20)),
		value(2, 1, "0.00", box(100, 0, 300, 20)),
	)
	// centroid (292.5, 10) is 92.5 away from the value centre, but the run
	// lies inside the value box grown by 30 on every side
	coarse := []ocrwords.Word{word("99.00", 260, -25, 325, 45)}

	r := &run{cfg: e.cfg, log: e.logger, ctx: NewContext(tpl, nil, coarse), stats: &Stats{}}
	r.alignKeys()
	r.alignByValues()
	require.Equal(t, KeyStage2, r.ctx.matchOf(0))
	assert.Equal(t, geometry.Point{X: 160, Y: -25}, r.ctx.deltaOf(0))
	assert.Equal(t, *box(260, -25, 460, -5), r.ctx.bboxOf(1))

	// one pixel outside the grown box and the run no longer qualifies
	coarse = []ocrwords.Word{word("99.00", 260, -25, 331, 45)}
	r = &run{cfg: e.cfg, log: e.logger, ctx: NewContext(tpl, nil, coarse), stats: &Stats{}}
	r.alignKeys()
	r.alignByValues()
	assert.Equal(t, KeyUnmatched, r.ctx.matchOf(0))
}

func TestAlign_EtcOverlapMatch(t *testing.T) {
	e := newTestEngine(t)
	tpl := tplOf(
		key(1, "DATE", box(10, 10, 60, 30)),
		etc(9, "REMARKS: none", box(300, 300, 420, 320)),
	)
	fine := []ocrwords.Word{
		word("DATE", 10, 10, 60, 30),
		word("REMARKS", 310, 305, 380, 318),
	}

	res := e.Align(tpl, fine, nil)
	etcs := byType(res.Template.Annotations, template.TypeEtc)
	require.Len(t, etcs, 1)
	assert.Equal(t, *box(310, 305, 430, 325), *etcs[0].BBox)
	assert.Equal(t, "REMARKS: none", etcs[0].Text)
	assert.True(t, etcs[0].KeyID.IsZero())
	assert.Zero(t, etcs[0].Order)
	assert.Equal(t, 1, res.Stats.EtcMatched)
}

func TestAlign_EtcSkipsWordsInsideKeysAndFallsBackToNearest(t *testing.T) {
	e := newTestEngine(t)
	tpl := tplOf(
		key(1, "NOTE", box(300, 300, 400, 320)),
		etc(9, "NOTE", box(300, 300, 400, 320)),
	)
	fine := []ocrwords.Word{
		// anchors the key and sits inside it, so the etc may not use it
		word("NOTE", 300, 300, 400, 320),
		word("note-2", 900, 900, 950, 915),
		word("NOTES", 500, 500, 560, 515),
	}

	res := e.Align(tpl, fine, nil)
	etcs := byType(res.Template.Annotations, template.TypeEtc)
	require.Len(t, etcs, 1)
	// strategy B: nearest centre among prefix matches outside key/value boxes
	assert.Equal(t, *box(500, 500, 600, 520), *etcs[0].BBox)
}

func TestAlign_EtcTokenOfPunctuationMatchesAnyWord(t *testing.T) {
	e := newTestEngine(t)
	tpl := tplOf(etc(9, "- remarks", box(300, 300, 420, 320)))
	fine := []ocrwords.Word{word("NOTE", 310, 305, 380, 318)}

	res := e.Align(tpl, fine, nil)
	etcs := byType(res.Template.Annotations, template.TypeEtc)
	require.Len(t, etcs, 1)
	assert.Equal(t, *box(310, 305, 430, 325), *etcs[0].BBox)
}

func TestAlign_EtcAcceptsPunctuationWordsAsPrefix(t *testing.T) {
	e := newTestEngine(t)
	tpl := tplOf(etc(9, "REMARKS: none", box(80, 90, 200, 115)))
	fine := []ocrwords.Word{
		word("REMARKS", 120, 104, 190, 114),
		// normalises to "", a prefix of every token, and is further top-left
		word("-", 90, 95, 96, 105),
	}

	res := e.Align(tpl, fine, nil)
	etcs := byType(res.Template.Annotations, template.TypeEtc)
	require.Len(t, etcs, 1)
	assert.Equal(t, *box(90, 95, 210, 120), *etcs[0].BBox)
}

func TestAlign_UnmatchedEtcIsDropped(t *testing.T) {
	e := newTestEngine(t)
	tpl := tplOf(
		etc(9, "SIGNATURE", box(0, 0, 100, 20)),
		etc(10, "   ", box(0, 0, 100, 20)),
	)
	res := e.Align(tpl, []ocrwords.Word{word("TOTAL", 0, 0, 100, 20)}, nil)
	assert.Empty(t, res.Template.Annotations)
	assert.Equal(t, 2, res.Stats.EtcDropped)
}

func TestAlign_KeyClampedToTemplateWidth(t *testing.T) {
	e := newTestEngine(t)
	tpl := tplOf(key(1, "DATE", box(10, 10, 100, 30)))
	fine := []ocrwords.Word{word("DATE", 50, 48, 160, 72)}

	res := e.Align(tpl, fine, nil)
	require.Len(t, res.Template.Annotations, 1)
	// vertical extent from the word, horizontal extent from the moved key
	assert.Equal(t, *box(50, 48, 140, 72), *res.Template.Annotations[0].BBox)
}

func TestAlign_ValueSplitsIntoOrderedLines(t *testing.T) {
	e := newTestEngine(t)
	tpl := tplOf(
		key(1, "CONSIGNEE", box(0, 0, 90, 10)),
		value(2, 1, "template text", box(0, 20, 200, 100)),
	)
	fine := []ocrwords.Word{word("CONSIGNEE", 0, 0, 90, 10)}
	coarse := []ocrwords.Word{
		word("ACME", 0, 20, 50, 30),
		word("CORP", 60, 20, 100, 30),
		word("BERLIN", 0, 60, 60, 70),
		word("OUTSIDE", 500, 500, 560, 510),
	}

	res := e.Align(tpl, fine, coarse)
	values := byType(res.Template.Annotations, template.TypeValue)
	require.Len(t, values, 2)
	assert.Equal(t, "ACME CORP", values[0].Text)
	assert.Equal(t, 1, values[0].Order)
	assert.Equal(t, *box(0, 20, 100, 30), *values[0].BBox)
	assert.Equal(t, "BERLIN", values[1].Text)
	assert.Equal(t, 2, values[1].Order)
	for _, v := range values {
		assert.Equal(t, "1", v.KeyID.Key())
	}
}

func TestAlign_AnnotationsWithoutGeometryAreNotEmitted(t *testing.T) {
	e := newTestEngine(t)
	tpl := tplOf(
		key(1, "DATE", nil),
		value(2, 1, "x", nil),
		template.Annotation{ID: template.IntID(3), Type: template.Type("comment"), BBox: box(0, 0, 1, 1)},
		key(4, "TOTAL", box(0, 0, 50, 20)),
	)
	res := e.Align(tpl, nil, nil)
	require.Len(t, res.Template.Annotations, 1)
	assert.Equal(t, "TOTAL", res.Template.Annotations[0].Text)
}

func TestAlign_EmptyInputs(t *testing.T) {
	e := newTestEngine(t)
	res := e.Align(tplOf(), nil, nil)
	assert.Empty(t, res.Template.Annotations)
	assert.Zero(t, res.Stats.Keys)
}

func TestAlignRaw(t *testing.T) {
	e := newTestEngine(t)
	tpl := []byte(`{"image": "tpl.png", "annotations": [
		{"id": 1, "type": "key", "bbox": [10, 10, 100, 30], "text": "INVOICE NO"},
		{"id": 2, "type": "value", "bbox": [110, 10, 200, 30], "text": "12345", "key_id": 1}
	]}`)
	fine := []byte(`[{"bbox": [[50,50],[140,50],[140,70],[50,70]], "text": "INVOICENO"}]`)

	res, err := e.AlignRaw(Input{Template: tpl, Fine: fine, Coarse: []byte(`42`)})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.FineWords)
	assert.Equal(t, 0, res.Stats.CoarseWords)
	assert.Equal(t, *box(150, 50, 240, 70), *res.Template.Annotations[1].BBox)
	raw, ok := res.Template.Field("image")
	require.True(t, ok)
	assert.Equal(t, `"tpl.png"`, string(raw))

	_, err = e.AlignRaw(Input{Template: []byte(`{"nope": 1}`)})
	var verr *template.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.KeyIoUThreshold = 1.5
	_, err := New(cfg)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.EtcPrefixLength = 0
	_, err = New(cfg)
	assert.Error(t, err)

	e, err := New(DefaultConfig(), WithLogger(nil))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), e.Config())
}
