// Package server exposes the alignment engine over HTTP and WebSocket.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/kvmap/internal/align"
	"github.com/MeKo-Tech/kvmap/internal/overlay"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	engine      atomic.Pointer[align.Engine]
	corsOrigin  string
	maxUploadMB int64
	colors      overlay.Colors
	rateLimiter *RateLimiter
	logger      *slog.Logger
	version     string
}

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	TimeoutSec  int
	Version     string

	Align  align.Config
	Colors overlay.Colors

	// RateLimit is nil when rate limiting is disabled.
	RateLimit *RateLimitConfig

	Logger *slog.Logger
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// AutomapRequest is the body of POST /automap. The OCR payloads are
// accepted under both their generic and their provider names.
type AutomapRequest struct {
	ImageName    string          `json:"image_name"`
	Template     json.RawMessage `json:"template"`
	FineOCR      json.RawMessage `json:"fine_ocr,omitempty"`
	PaddleOCR    json.RawMessage `json:"paddle_ocr,omitempty"`
	CoarseOCR    json.RawMessage `json:"coarse_ocr,omitempty"`
	LogisticsOCR json.RawMessage `json:"logistics_ocr,omitempty"`
}

// BatchProcessRequest is the body of POST /batch/process. Template is
// either an inline template object or the path of a template file.
type BatchProcessRequest struct {
	ImageFile    string          `json:"image_file"`
	ImageFolder  string          `json:"image_folder"`
	CoarseFolder string          `json:"coarse_folder"`
	FineFolder   string          `json:"fine_folder"`
	OutputFolder string          `json:"output_folder"`
	OverlayDir   string          `json:"overlay_dir,omitempty"`
	Template     json.RawMessage `json:"template"`
}

// BatchProcessResponse reports one processed document.
type BatchProcessResponse struct {
	Success     bool   `json:"success"`
	OutputFile  string `json:"output_file,omitempty"`
	OverlayFile string `json:"overlay_file,omitempty"`
	KeyCount    int    `json:"key_count"`
	ValueCount  int    `json:"value_count"`
	EtcCount    int    `json:"etc_count"`
	Error       string `json:"error,omitempty"`
}

// ErrorResponse is the body of every JSON error.
type ErrorResponse struct {
	Error     string   `json:"error"`
	Details   []string `json:"details,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
}

// NewServer creates a server with an engine built from config.Align.
func NewServer(config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		corsOrigin:  config.CORSOrigin,
		maxUploadMB: config.MaxUploadMB,
		colors:      config.Colors,
		logger:      logger,
		version:     config.Version,
	}
	if s.maxUploadMB <= 0 {
		s.maxUploadMB = 50
	}
	if s.colors == (overlay.Colors{}) {
		s.colors = overlay.DefaultColors()
	}
	if config.RateLimit != nil {
		s.rateLimiter = NewRateLimiter(*config.RateLimit)
	}
	if err := s.SetAlignConfig(config.Align); err != nil {
		return nil, err
	}
	return s, nil
}

// SetAlignConfig swaps the engine for one with new thresholds. Requests
// already running finish with the engine they started with.
func (s *Server) SetAlignConfig(cfg align.Config) error {
	engine, err := align.New(cfg, align.WithLogger(s.logger))
	if err != nil {
		return err
	}
	s.engine.Store(engine)
	return nil
}

// Engine returns the current alignment engine.
func (s *Server) Engine() *align.Engine { return s.engine.Load() }

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/automap", s.corsMiddleware(s.requestIDMiddleware(s.rateLimitMiddleware(s.automapHandler))))
	mux.HandleFunc("/batch/process", s.corsMiddleware(s.requestIDMiddleware(s.rateLimitMiddleware(s.batchProcessHandler))))
	mux.HandleFunc("/ws", s.corsMiddleware(s.automapWebSocketHandler))
	mux.Handle("/metrics", promhttp.Handler())
}

// Handler returns a mux with all routes installed.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}
