package testutil

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

// SampleTemplateJSON is a template with two key/value pairs and one etc label.
// Aligned against SampleFineJSON and SampleCoarseJSON it yields two keys,
// two values and one etc annotation.
const SampleTemplateJSON = `{
  "image": "template.png",
  "annotations": [
    {"id": 1, "type": "key", "bbox": [10, 10, 100, 30], "text": "INVOICE NO"},
    {"id": 2, "type": "value", "bbox": [110, 10, 200, 30], "text": "00000", "key_id": 1},
    {"id": 3, "type": "key", "bbox": [10, 60, 80, 80], "text": "SHIPPER"},
    {"id": 4, "type": "value", "bbox": [100, 60, 200, 80], "text": "NAME", "key_id": 3},
    {"id": 5, "type": "etc", "bbox": [300, 300, 420, 320], "text": "REMARKS: none"}
  ]
}`

// SampleFineJSON is a polygon-style fine OCR payload.
const SampleFineJSON = `[
  {"bbox": [[50, 50], [140, 50], [140, 70], [50, 70]], "text": "INVOICENO"},
  {"bbox": [[31, 76], [101, 76], [101, 96], [31, 96]], "text": "SHIPPER:"},
  {"bbox": [[310, 305], [380, 305], [380, 318], [310, 318]], "text": "REMARKS"}
]`

// SampleCoarseJSON is an x/y-array coarse OCR payload.
const SampleCoarseJSON = `[
  {"x": [152, 230, 230, 152], "y": [52, 52, 68, 68], "data": "12345"},
  {"x": [120, 170, 170, 120], "y": [75, 75, 95, 95], "data": "ACME"},
  {"x": [175, 215, 215, 175], "y": [75, 75, 95, 95], "text": "CORP"}
]`

// DocumentSet is a folder layout for batch processing tests.
type DocumentSet struct {
	Root         string
	ImageDir     string
	FineDir      string
	CoarseDir    string
	OutputDir    string
	TemplatePath string
}

// CreateDocumentSet lays out a template plus, for each base name, a small
// PNG and matching fine and coarse OCR files under root.
func CreateDocumentSet(root string, bases ...string) (DocumentSet, error) {
	set := DocumentSet{
		Root:         root,
		ImageDir:     filepath.Join(root, "images"),
		FineDir:      filepath.Join(root, "fine"),
		CoarseDir:    filepath.Join(root, "coarse"),
		OutputDir:    filepath.Join(root, "out"),
		TemplatePath: filepath.Join(root, "template.json"),
	}
	for _, dir := range []string{set.ImageDir, set.FineDir, set.CoarseDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return set, err
		}
	}
	if err := os.WriteFile(set.TemplatePath, []byte(SampleTemplateJSON), 0o600); err != nil {
		return set, err
	}
	for _, base := range bases {
		img := imaging.New(500, 400, color.White)
		if err := imaging.Save(img, filepath.Join(set.ImageDir, base+".png")); err != nil {
			return set, err
		}
		if err := os.WriteFile(filepath.Join(set.FineDir, base+".json"), []byte(SampleFineJSON), 0o600); err != nil {
			return set, err
		}
		if err := os.WriteFile(filepath.Join(set.CoarseDir, base+".json"), []byte(SampleCoarseJSON), 0o600); err != nil {
			return set, err
		}
	}
	return set, nil
}

// WriteDocumentSet is CreateDocumentSet in a test temp dir.
func WriteDocumentSet(t *testing.T, bases ...string) DocumentSet {
	t.Helper()
	set, err := CreateDocumentSet(t.TempDir(), bases...)
	require.NoError(t, err)
	return set
}

// WriteImage saves a blank white image and returns its path.
func WriteImage(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	path := WriteFile(t, dir, name, nil)
	require.NoError(t, imaging.Save(imaging.New(w, h, color.White), path))
	return path
}
