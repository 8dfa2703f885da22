package batch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/kvmap/internal/testutil"
)

func TestProcessor_Process(t *testing.T) {
	set, cfg, engine, tpl := setup(t, "doc")
	p := NewProcessor(engine, tpl, cfg, nil)

	res := p.Process(NewDocument(filepath.Join(set.ImageDir, "doc.png")))
	require.NoError(t, res.Err)
	assert.True(t, res.Succeeded())
	assert.Equal(t, filepath.Join(set.OutputDir, "doc.json"), res.OutputFile)
	require.NotNil(t, res.Stats)
	assert.Equal(t, 2, res.Stats.Keys)
}

func TestProcessor_UnreadableOCRDegradesToEmpty(t *testing.T) {
	set, cfg, engine, tpl := setup(t, "doc")
	testutil.WriteFile(t, set.FineDir, "doc.json", []byte("42"))
	testutil.WriteFile(t, set.CoarseDir, "doc.json", []byte("not json"))

	res := NewProcessor(engine, tpl, cfg, nil).Process(NewDocument(filepath.Join(set.ImageDir, "doc.png")))
	require.NoError(t, res.Err)
	// keys and values pass through at their template positions, etc needs OCR
	assert.Equal(t, 2, res.KeyCount)
	assert.Equal(t, 2, res.ValueCount)
	assert.Equal(t, 0, res.EtcCount)
}

func TestProcessor_OverlayFailureIsNotFatal(t *testing.T) {
	set, cfg, engine, tpl := setup(t, "doc")
	cfg.OverlayDir = filepath.Join(set.Root, "ov")
	// corrupt image
	require.NoError(t, os.WriteFile(filepath.Join(set.ImageDir, "doc.png"), []byte("nope"), 0o644))

	res := NewProcessor(engine, tpl, cfg, nil).Process(NewDocument(filepath.Join(set.ImageDir, "doc.png")))
	require.NoError(t, res.Err)
	assert.Empty(t, res.OverlayFile)
}
