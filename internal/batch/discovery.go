package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/MeKo-Tech/kvmap/internal/overlay"
)

// Document names one page to align: an image and the base name that its
// OCR and output files share.
type Document struct {
	Base      string `json:"base" yaml:"base"`
	ImagePath string `json:"image" yaml:"image"`
}

// NewDocument derives a Document from an image path.
func NewDocument(imagePath string) Document {
	name := filepath.Base(imagePath)
	return Document{Base: strings.TrimSuffix(name, filepath.Ext(name)), ImagePath: imagePath}
}

// discoverDocuments lists the supported images directly inside dir, sorted by name.
func discoverDocuments(dir string, includePatterns, excludePatterns []string) ([]Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read image folder %s: %w", dir, err)
	}

	var docs []Document
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if !overlay.IsSupportedImage(path) || !shouldIncludeFile(path, includePatterns, excludePatterns) {
			continue
		}
		docs = append(docs, NewDocument(path))
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ImagePath < docs[j].ImagePath })
	return docs, nil
}

// shouldIncludeFile determines if a file should be included based on include/exclude patterns.
func shouldIncludeFile(path string, includePatterns, excludePatterns []string) bool {
	if matchesAnyPattern(path, excludePatterns) {
		return false
	}
	if len(includePatterns) == 0 {
		return true
	}
	return matchesAnyPattern(path, includePatterns)
}

// matchesAnyPattern checks if a file path matches any of the given patterns.
func matchesAnyPattern(path string, patterns []string) bool {
	base := filepath.Base(path)
	for _, pattern := range patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}
