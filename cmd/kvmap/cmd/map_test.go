package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/kvmap/internal/config"
	"github.com/MeKo-Tech/kvmap/internal/testutil"
)

func defaultTestConfig() *config.Config {
	cfg := config.DefaultConfig()
	return &cfg
}

type mappedOutput struct {
	Image       string `json:"image" yaml:"image"`
	Annotations []struct {
		ID   any       `json:"id" yaml:"id"`
		Type string    `json:"type" yaml:"type"`
		BBox []float64 `json:"bbox" yaml:"bbox"`
		Text string    `json:"text" yaml:"text"`
	} `json:"annotations" yaml:"annotations"`
}

func (m mappedOutput) count(kind string) int {
	n := 0
	for _, a := range m.Annotations {
		if a.Type == kind {
			n++
		}
	}
	return n
}

func mapArgs(set testutil.DocumentSet, base string, extra ...string) []string {
	args := []string{
		"map",
		"--template", set.TemplatePath,
		"--fine", filepath.Join(set.FineDir, base+".json"),
		"--coarse", filepath.Join(set.CoarseDir, base+".json"),
	}
	return append(args, extra...)
}

func TestMapCommandJSON(t *testing.T) {
	set := testutil.WriteDocumentSet(t, "scan")
	out, _, err := execute(t, mapArgs(set, "scan", "--image", "scan.png")...)
	require.NoError(t, err)

	var got mappedOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "scan.png", got.Image)
	assert.Equal(t, 2, got.count("key"))
	assert.Equal(t, 2, got.count("value"))
	assert.Equal(t, 1, got.count("etc"))
}

func TestMapCommandKeepsTemplateImageWithoutFlag(t *testing.T) {
	set := testutil.WriteDocumentSet(t, "scan")
	out, _, err := execute(t, mapArgs(set, "scan")...)
	require.NoError(t, err)

	var got mappedOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "template.png", got.Image)
}

func TestMapCommandYAML(t *testing.T) {
	set := testutil.WriteDocumentSet(t, "scan")
	out, _, err := execute(t, mapArgs(set, "scan", "--format", "yaml")...)
	require.NoError(t, err)

	var got mappedOutput
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Len(t, got.Annotations, 5)
}

func TestMapCommandCompact(t *testing.T) {
	set := testutil.WriteDocumentSet(t, "scan")
	out, _, err := execute(t, mapArgs(set, "scan", "--compact")...)
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(strings.TrimSpace(out), "\n")+1, "compact output is one line")
	var got mappedOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	for _, a := range got.Annotations {
		assert.Nil(t, a.ID)
		for _, v := range a.BBox {
			assert.Equal(t, float64(int(v)), v)
		}
	}
}

func TestMapCommandTextAndCSV(t *testing.T) {
	set := testutil.WriteDocumentSet(t, "scan")

	out, _, err := execute(t, mapArgs(set, "scan", "--format", "text")...)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "key"))

	out, _, err = execute(t, mapArgs(set, "scan", "--format", "csv")...)
	require.NoError(t, err)
	lines = strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "type,x1,y1,x2,y2,text,key_id,order", lines[0])
}

func TestMapCommandOutputFile(t *testing.T) {
	set := testutil.WriteDocumentSet(t, "scan")
	target := filepath.Join(set.Root, "nested", "scan.json")
	out, _, err := execute(t, mapArgs(set, "scan", "-o", target)...)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.True(t, testutil.FileExists(target))
}

func TestMapCommandOverlay(t *testing.T) {
	set := testutil.WriteDocumentSet(t, "scan")
	overlays := filepath.Join(set.Root, "overlays")
	_, _, err := execute(t, mapArgs(set, "scan",
		"--overlay-dir", overlays,
		"--image-path", filepath.Join(set.ImageDir, "scan.png"))...)
	require.NoError(t, err)
	assert.True(t, testutil.FileExists(filepath.Join(overlays, "scan_overlay.png")))
}

func TestMapCommandErrors(t *testing.T) {
	set := testutil.WriteDocumentSet(t, "scan")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing flags", []string{"map"}, "required flag"},
		{"overlay without image", mapArgs(set, "scan", "--overlay-dir", set.Root), "--image-path"},
		{"bad format", mapArgs(set, "scan", "--format", "xml"), "invalid output format"},
		{"missing fine", []string{"map", "--template", set.TemplatePath, "--fine", "nope.json", "--coarse", "nope.json"}, "failed to read fine OCR"},
		{"missing template", []string{"map", "--template", "nope.json", "--fine", "f", "--coarse", "c"}, "nope.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestMapCommandInvalidTemplate(t *testing.T) {
	set := testutil.WriteDocumentSet(t, "scan")
	require.NoError(t, os.WriteFile(set.TemplatePath, []byte(`{"annotations": "nope"}`), 0o600))
	_, _, err := execute(t, mapArgs(set, "scan")...)
	require.Error(t, err)
}

func TestMapCommandUnreadableOCRStillMaps(t *testing.T) {
	set := testutil.WriteDocumentSet(t, "scan")
	require.NoError(t, os.WriteFile(filepath.Join(set.FineDir, "scan.json"), []byte(`"garbage"`), 0o600))
	out, _, err := execute(t, mapArgs(set, "scan")...)
	require.NoError(t, err)

	var got mappedOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 2, got.count("key"))
}
