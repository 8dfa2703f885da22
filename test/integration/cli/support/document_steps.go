package support

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/kvmap/internal/testutil"
)

func (testCtx *TestContext) documentsNamed(names string) error {
	var bases []string
	if err := json.Unmarshal([]byte("["+names+"]"), &bases); err != nil {
		return fmt.Errorf("invalid document list %s: %w", names, err)
	}
	set, err := testutil.CreateDocumentSet(testCtx.TempDir, bases...)
	if err != nil {
		return err
	}
	testCtx.Documents = set
	return nil
}

func (testCtx *TestContext) anEmptyDocumentFolder() error {
	return testCtx.documentsNamed("")
}

func (testCtx *TestContext) theOCRFileIsMissing(kind, base string) error {
	dir := testCtx.Documents.FineDir
	if kind == "coarse" {
		dir = testCtx.Documents.CoarseDir
	}
	return os.Remove(filepath.Join(dir, base+".json"))
}

func (testCtx *TestContext) theOCRFileContains(kind, base, content string) error {
	dir := testCtx.Documents.FineDir
	if kind == "coarse" {
		dir = testCtx.Documents.CoarseDir
	}
	return os.WriteFile(filepath.Join(dir, base+".json"), []byte(content), 0o600)
}

type alignedDocument struct {
	Image       string `json:"image"`
	Annotations []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"annotations"`
}

func (testCtx *TestContext) readAligned(path string) (*alignedDocument, error) {
	var data []byte
	if path == "" {
		data = []byte(testCtx.LastStdout)
	} else {
		var err error
		if data, err = os.ReadFile(testCtx.Path(testCtx.substitute(path))); err != nil {
			return nil, err
		}
	}
	var doc alignedDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("not an aligned document: %w", err)
	}
	return &doc, nil
}

func countAnnotations(doc *alignedDocument, kind string) int {
	n := 0
	for _, a := range doc.Annotations {
		if a.Type == kind {
			n++
		}
	}
	return n
}

func (testCtx *TestContext) theAlignedDocumentShouldHave(keys, values, etcs int) error {
	return testCtx.theAlignedFileShouldHave("", keys, values, etcs)
}

func (testCtx *TestContext) theAlignedFileShouldHave(path string, keys, values, etcs int) error {
	doc, err := testCtx.readAligned(path)
	if err != nil {
		return err
	}
	got := [3]int{countAnnotations(doc, "key"), countAnnotations(doc, "value"), countAnnotations(doc, "etc")}
	if got != [3]int{keys, values, etcs} {
		return fmt.Errorf("expected %d keys, %d values, %d etc; got %v", keys, values, etcs, got)
	}
	return nil
}

func (testCtx *TestContext) theAlignedDocumentImageShouldBe(name string) error {
	doc, err := testCtx.readAligned("")
	if err != nil {
		return err
	}
	if doc.Image != name {
		return fmt.Errorf("expected image %q, got %q", name, doc.Image)
	}
	return nil
}

// RegisterDocumentSteps registers the document fixture and result steps.
func (testCtx *TestContext) RegisterDocumentSteps(sc *godog.ScenarioContext) {
	sc.Step(`^documents (.+) with template and OCR results$`, testCtx.documentsNamed)
	sc.Step(`^an empty document folder$`, testCtx.anEmptyDocumentFolder)
	sc.Step(`^the (fine|coarse) OCR file for "([^"]*)" is missing$`, testCtx.theOCRFileIsMissing)
	sc.Step(`^the (fine|coarse) OCR file for "([^"]*)" contains '([^']*)'$`, testCtx.theOCRFileContains)
	sc.Step(`^the aligned document should have (\d+) keys?, (\d+) values? and (\d+) etc$`, testCtx.theAlignedDocumentShouldHave)
	sc.Step(`^the aligned file "([^"]*)" should have (\d+) keys?, (\d+) values? and (\d+) etc$`, testCtx.theAlignedFileShouldHave)
	sc.Step(`^the aligned document image should be "([^"]*)"$`, testCtx.theAlignedDocumentImageShouldBe)
}
