package batch

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingProgress struct {
	mu       sync.Mutex
	started  int
	progress []int
	errors   int
	complete bool
}

func (r *recordingProgress) OnStart(total int) { r.started = total }
func (r *recordingProgress) OnProgress(current, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, current)
}
func (r *recordingProgress) OnComplete() { r.complete = true }
func (r *recordingProgress) OnError(int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors++
}

func TestConsoleProgressCallback(t *testing.T) {
	var buf bytes.Buffer
	cb := NewConsoleProgressCallback(&buf, "X: ").WithUpdateInterval(0)
	cb.OnStart(2)
	cb.OnProgress(1, 2)
	cb.OnProgress(2, 2)
	cb.OnError(1, errors.New("boom"))
	cb.OnComplete()

	out := buf.String()
	assert.Contains(t, out, "X: 0/2 documents")
	assert.Contains(t, out, "2/2")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "Completed in")
}

func TestMultiProgressCallback(t *testing.T) {
	a, b := &recordingProgress{}, &recordingProgress{}
	m := NewMultiProgressCallback(a, nil, b)
	m.OnStart(3)
	m.OnProgress(1, 3)
	m.OnError(0, errors.New("x"))
	m.OnComplete()

	for _, r := range []*recordingProgress{a, b} {
		assert.Equal(t, 3, r.started)
		assert.Equal(t, []int{1}, r.progress)
		assert.Equal(t, 1, r.errors)
		assert.True(t, r.complete)
	}
}

func TestProcessAll_ReportsProgressInOrder(t *testing.T) {
	_, cfg, engine, tpl := setup(t, "a", "b", "c")
	docs, err := discoverDocuments(cfg.ImageDir, nil, nil)
	assert.NoError(t, err)

	rec := &recordingProgress{}
	results := processAll(t.Context(), NewProcessor(engine, tpl, cfg, nil), docs, 3, true, rec)

	assert.Equal(t, 3, rec.started)
	assert.Equal(t, []int{1, 2, 3}, rec.progress)
	assert.True(t, rec.complete)
	for i, r := range results {
		assert.Equal(t, docs[i].Base, r.Base)
	}
}
