package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProjectRoot(t *testing.T) {
	root, err := GetProjectRoot()
	require.NoError(t, err)
	assert.True(t, FileExists(filepath.Join(root, "go.mod")))
}

func TestWriteDocumentSet(t *testing.T) {
	set := WriteDocumentSet(t, "a", "b")
	assert.True(t, FileExists(set.TemplatePath))
	for _, base := range []string{"a", "b"} {
		assert.True(t, FileExists(filepath.Join(set.ImageDir, base+".png")))
		assert.True(t, FileExists(filepath.Join(set.FineDir, base+".json")))
		assert.True(t, FileExists(filepath.Join(set.CoarseDir, base+".json")))
	}
	assert.False(t, FileExists(set.OutputDir))
}
