package batch

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/MeKo-Tech/kvmap/internal/align"
	"github.com/MeKo-Tech/kvmap/internal/overlay"
	"github.com/MeKo-Tech/kvmap/internal/template"
)

// ErrOCRNotFound is wrapped when a document has no OCR file in one of the folders.
var ErrOCRNotFound = errors.New("OCR file not found")

// ErrOutputExists is returned when an output file exists and overwriting is off.
var ErrOutputExists = errors.New("output file already exists")

// DocumentResult is the outcome for one document.
type DocumentResult struct {
	Document
	OutputFile  string        `json:"output_file,omitempty" yaml:"output_file,omitempty"`
	OverlayFile string        `json:"overlay_file,omitempty" yaml:"overlay_file,omitempty"`
	KeyCount    int           `json:"key_count" yaml:"key_count"`
	ValueCount  int           `json:"value_count" yaml:"value_count"`
	EtcCount    int           `json:"etc_count" yaml:"etc_count"`
	Stats       *align.Stats  `json:"stats,omitempty" yaml:"stats,omitempty"`
	Duration    time.Duration `json:"duration" yaml:"duration"`
	Err         error         `json:"-" yaml:"-"`
	Error       string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// Succeeded reports whether the document was aligned and written.
func (r *DocumentResult) Succeeded() bool { return r.Err == nil }

// Processor aligns single documents from the configured folders.
type Processor struct {
	engine *align.Engine
	tpl    *template.Template
	cfg    Config
	logger *slog.Logger
}

// NewProcessor creates a processor. The template is shared read-only by all
// documents; every document gets its own alignment context.
func NewProcessor(engine *align.Engine, tpl *template.Template, cfg Config, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{engine: engine, tpl: tpl, cfg: cfg, logger: logger}
}

func readOCR(dir, base, source string) ([]byte, error) {
	path := filepath.Join(dir, base+".json")
	data, err := os.ReadFile(path) //nolint:gosec // G304: folder paths are user supplied by design
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s %w: %s", source, ErrOCRNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s OCR %s: %w", source, path, err)
	}
	return data, nil
}

// Process aligns one document and writes <output>/<base>.json.
func (p *Processor) Process(doc Document) *DocumentResult {
	start := time.Now()
	res := &DocumentResult{Document: doc}
	res.Err = p.process(doc, res)
	if res.Err != nil {
		res.Error = res.Err.Error()
	}
	res.Duration = time.Since(start)
	return res
}

func (p *Processor) process(doc Document, res *DocumentResult) error {
	coarse, err := readOCR(p.cfg.CoarseDir, doc.Base, "coarse")
	if err != nil {
		return err
	}
	fine, err := readOCR(p.cfg.FineDir, doc.Base, "fine")
	if err != nil {
		return err
	}

	outPath := filepath.Join(p.cfg.OutputDir, doc.Base+".json")
	if !p.cfg.Overwrite {
		if _, err := os.Stat(outPath); err == nil {
			return fmt.Errorf("%w: %s", ErrOutputExists, outPath)
		}
	}

	result := p.engine.AlignPayloads(p.tpl, fine, coarse)
	if err := result.Template.Set("image", filepath.Base(doc.ImagePath)); err != nil {
		return err
	}
	format := p.cfg.OutputFormat
	if format == "" {
		format = template.FormatJSON
	}
	if err := template.Save(outPath, result.Template, format); err != nil {
		return err
	}

	res.OutputFile = outPath
	res.KeyCount, res.ValueCount, res.EtcCount = result.Template.Counts()
	res.Stats = &result.Stats

	if p.cfg.OverlayDir != "" {
		ovPath := filepath.Join(p.cfg.OverlayDir, doc.Base+"_overlay.png")
		if err := overlay.RenderFile(doc.ImagePath, ovPath, result.Template.Annotations, p.cfg.Colors); err != nil {
			// the alignment itself succeeded
			p.logger.Warn("failed to render overlay", "file", doc.ImagePath, "error", err)
		} else {
			res.OverlayFile = ovPath
		}
	}

	p.logger.Debug("document aligned",
		"base", doc.Base,
		"keys", res.KeyCount,
		"values", res.ValueCount,
		"etc", res.EtcCount)
	return nil
}
