package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/kvmap/internal/align"
	"github.com/MeKo-Tech/kvmap/internal/testutil"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServer(Config{
		CORSOrigin: "*",
		Version:    "test",
		Align:      align.DefaultConfig(),
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return s
}

// sampleAutomapBody builds a complete automap request from the shared fixtures.
func sampleAutomapBody() map[string]any {
	return map[string]any{
		"image_name": "scan-001.png",
		"template":   json.RawMessage(testutil.SampleTemplateJSON),
		"fine_ocr":   json.RawMessage(testutil.SampleFineJSON),
		"coarse_ocr": json.RawMessage(testutil.SampleCoarseJSON),
	}
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type mappedDocument struct {
	Image       string `json:"image"`
	Annotations []struct {
		Type  string    `json:"type"`
		BBox  []float64 `json:"bbox"`
		Text  string    `json:"text"`
		Order int       `json:"order"`
	} `json:"annotations"`
}

func countTypes(doc mappedDocument) map[string]int {
	counts := map[string]int{}
	for _, a := range doc.Annotations {
		counts[a.Type]++
	}
	return counts
}
