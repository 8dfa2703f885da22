package support

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/kvmap/internal/testutil"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	// Command execution state
	LastCommand  string
	LastStdout   string
	LastStderr   string
	LastError    error
	LastExitCode int
	LastDuration time.Duration

	// Test environment
	TempDir   string
	Documents testutil.DocumentSet
	EnvVars   map[string]string

	prevEnv map[string]*string
}

// NewTestContext creates a scenario context rooted in a fresh temp dir.
func NewTestContext() (*TestContext, error) {
	tempDir, err := os.MkdirTemp("", "kvmap-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	return &TestContext{
		TempDir: tempDir,
		EnvVars: map[string]string{},
		prevEnv: map[string]*string{},
	}, nil
}

// SetEnv sets an environment variable for the rest of the scenario.
func (testCtx *TestContext) SetEnv(name, value string) error {
	if _, saved := testCtx.prevEnv[name]; !saved {
		if old, ok := os.LookupEnv(name); ok {
			testCtx.prevEnv[name] = &old
		} else {
			testCtx.prevEnv[name] = nil
		}
	}
	testCtx.EnvVars[name] = value
	return os.Setenv(name, value)
}

// Cleanup restores the environment and removes the temp directory.
func (testCtx *TestContext) Cleanup() error {
	for name, old := range testCtx.prevEnv {
		if old == nil {
			_ = os.Unsetenv(name)
		} else {
			_ = os.Setenv(name, *old)
		}
	}
	if err := os.RemoveAll(testCtx.TempDir); err != nil {
		return fmt.Errorf("failed to remove temp directory %s: %w", testCtx.TempDir, err)
	}
	return nil
}

// Path resolves a path relative to the scenario directory.
func (testCtx *TestContext) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(testCtx.TempDir, name)
}

// substitute expands the {placeholders} used in feature files.
func (testCtx *TestContext) substitute(s string) string {
	d := testCtx.Documents
	return strings.NewReplacer(
		"{tmp}", testCtx.TempDir,
		"{template}", d.TemplatePath,
		"{images}", d.ImageDir,
		"{fine}", d.FineDir,
		"{coarse}", d.CoarseDir,
		"{output}", d.OutputDir,
	).Replace(s)
}
