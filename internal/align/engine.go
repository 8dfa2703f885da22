// Package align propagates a labelled template onto a new document using two
// OCR word lists. Alignment runs in five stages over a per-document Context:
// keys by text or overlap, keys recovered through their values, a
// first-character refinement, free-standing etc labels, and finally the
// synthesis of output boxes from the OCR words.
package align

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/kvmap/internal/common"
	"github.com/MeKo-Tech/kvmap/internal/ocrwords"
	"github.com/MeKo-Tech/kvmap/internal/template"
)

// Stage names used in timings and logs.
const (
	StageKeys       = "keys"
	StageValues     = "values"
	StageRefine     = "refine"
	StageEtc        = "etc"
	StageSynthesize = "synthesize"
)

// Stats summarises one alignment run. It is informational only.
type Stats struct {
	FineWords   int `json:"fine_words" yaml:"fine_words"`
	CoarseWords int `json:"coarse_words" yaml:"coarse_words"`
	AutoValues  int `json:"auto_values" yaml:"auto_values"`

	Stage1Text int `json:"stage1_text" yaml:"stage1_text"`
	Stage1IoU  int `json:"stage1_iou" yaml:"stage1_iou"`
	Stage2     int `json:"stage2" yaml:"stage2"`
	Stage3     int `json:"stage3" yaml:"stage3"`
	EtcMatched int `json:"etc_matched" yaml:"etc_matched"`
	EtcDropped int `json:"etc_dropped" yaml:"etc_dropped"`

	KeysSnapped    int `json:"keys_snapped" yaml:"keys_snapped"`
	ValuesRebuilt  int `json:"values_rebuilt" yaml:"values_rebuilt"`
	ValuesFallback int `json:"values_fallback" yaml:"values_fallback"`

	Keys   int `json:"keys" yaml:"keys"`
	Values int `json:"values" yaml:"values"`
	Etc    int `json:"etc" yaml:"etc"`

	Timings []common.Lap  `json:"timings,omitempty" yaml:"timings,omitempty"`
	Elapsed time.Duration `json:"elapsed" yaml:"elapsed"`
}

// Result is the aligned document plus its statistics.
type Result struct {
	Template *template.Template
	Stats    Stats
}

// Engine runs alignments with a fixed configuration. It holds no
// per-document state and is safe for concurrent use.
type Engine struct {
	cfg    Config
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for stage diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an engine.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid alignment config: %w", err)
	}
	e := &Engine{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// run carries the state of one Align call.
type run struct {
	cfg   Config
	log   *slog.Logger
	ctx   *Context
	stats *Stats
}

// Align maps the template onto a document described by its fine and coarse
// OCR words. The returned template keeps every top-level field of tpl and
// carries the synthesized annotations.
func (e *Engine) Align(tpl *template.Template, fine, coarse []ocrwords.Word) *Result {
	var stats Stats
	r := &run{
		cfg:   e.cfg,
		log:   e.logger,
		ctx:   NewContext(tpl, fine, coarse),
		stats: &stats,
	}
	stats.FineWords, stats.CoarseWords = len(fine), len(coarse)

	var sw common.Stopwatch
	var anns []template.Annotation
	sw.Time(StageKeys, r.alignKeys)
	sw.Time(StageValues, r.alignByValues)
	sw.Time(StageRefine, r.refineKeys)
	sw.Time(StageEtc, r.alignEtcs)
	sw.Time(StageSynthesize, func() { anns = r.synthesize() })

	out := tpl.WithAnnotations(anns)
	stats.Keys, stats.Values, stats.Etc = out.Counts()
	stats.Timings = sw.Laps()
	stats.Elapsed = sw.Total()

	e.logger.Info("alignment complete",
		slog.Int("fine_words", stats.FineWords),
		slog.Int("coarse_words", stats.CoarseWords),
		slog.Int("stage1", stats.Stage1Text+stats.Stage1IoU),
		slog.Int("stage2", stats.Stage2),
		slog.Int("stage3", stats.Stage3),
		slog.Int("etc_matched", stats.EtcMatched),
		slog.Int("keys", stats.Keys),
		slog.Int("values", stats.Values),
		slog.Int("etc", stats.Etc),
		slog.Duration("elapsed", stats.Elapsed))

	return &Result{Template: out, Stats: stats}
}

// Input is a document to align in its raw JSON form.
type Input struct {
	Template []byte
	Fine     []byte
	Coarse   []byte
}

// AlignRaw validates and decodes the template, then runs AlignPayloads.
// Only template errors are returned.
func (e *Engine) AlignRaw(in Input) (*Result, error) {
	tpl, err := template.Parse(in.Template)
	if err != nil {
		return nil, err
	}
	return e.AlignPayloads(tpl, in.Fine, in.Coarse), nil
}

// AlignPayloads extracts both word lists from their raw OCR payloads and
// runs Align. An unreadable payload degrades to an empty word list.
func (e *Engine) AlignPayloads(tpl *template.Template, fineRaw, coarseRaw []byte) *Result {
	fine := e.words(ocrwords.SourceFine, fineRaw)
	coarse := e.words(ocrwords.SourceCoarse, coarseRaw)
	return e.Align(tpl, fine, coarse)
}

func (e *Engine) words(src ocrwords.Source, raw []byte) []ocrwords.Word {
	words, err := ocrwords.Parse(src, raw)
	if err != nil {
		e.logger.Warn("ignoring unreadable OCR payload", slog.String("source", string(src)), slog.String("error", err.Error()))
		return nil
	}
	return words
}
