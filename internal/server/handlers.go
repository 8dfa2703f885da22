package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/MeKo-Tech/kvmap/internal/batch"
	"github.com/MeKo-Tech/kvmap/internal/template"
)

// requestError carries the HTTP status of a rejected request.
type requestError struct {
	status  int
	message string
	details []string
	err     error
}

func (e *requestError) Error() string {
	if e.err != nil {
		return e.message + ": " + e.err.Error()
	}
	return e.message
}

func (e *requestError) Unwrap() error { return e.err }

func badRequest(msg string, err error) *requestError {
	return &requestError{status: http.StatusBadRequest, message: msg, err: err}
}

// writeError maps err onto a status and an ErrorResponse.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := ErrorResponse{Error: err.Error(), RequestID: requestIDFrom(r.Context())}
	status := http.StatusInternalServerError
	var re *requestError
	if errors.As(err, &re) {
		status = re.status
		resp.Details = re.details
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "request_id", resp.RequestID, "error", err)
	} else {
		s.logger.Debug("request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	s.writeJSON(w, status, resp)
}

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: s.version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// automapHandler aligns a template supplied inline with its OCR payloads.
func (s *Server) automapHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req AutomapRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.automap(req, "http")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

// decodeBody reads a size-limited JSON body.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB*1024*1024)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &requestError{status: http.StatusRequestEntityTooLarge, message: "request body too large", err: err}
		}
		return badRequest("invalid JSON body", err)
	}
	return nil
}

// automap validates a request and runs the engine on it.
func (s *Server) automap(req AutomapRequest, source string) (*template.Template, error) {
	fine := firstPresent(req.FineOCR, req.PaddleOCR)
	coarse := firstPresent(req.CoarseOCR, req.LogisticsOCR)
	switch {
	case req.ImageName == "":
		return nil, badRequest("image_name is required", nil)
	case !present(req.Template):
		return nil, badRequest("template is required", nil)
	case fine == nil:
		return nil, badRequest("fine_ocr is required", nil)
	case coarse == nil:
		return nil, badRequest("coarse_ocr is required", nil)
	}

	tpl, err := parseInlineTemplate(req.Template)
	if err != nil {
		recordAlignment(source, nil, err, 0)
		return nil, err
	}

	start := time.Now()
	res := s.Engine().AlignPayloads(tpl, fine, coarse)
	recordAlignment(source, &res.Stats, nil, time.Since(start))

	if err := res.Template.Set("image", req.ImageName); err != nil {
		return nil, err
	}
	return res.Template, nil
}

// parseInlineTemplate accepts a template object or a string holding one.
func parseInlineTemplate(raw json.RawMessage) (*template.Template, error) {
	data := []byte(raw)
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, badRequest("invalid template", err)
		}
		data = []byte(s)
	}
	tpl, err := template.Parse(data)
	if err != nil {
		var verr *template.ValidationError
		if errors.As(err, &verr) {
			return nil, &requestError{
				status:  http.StatusUnprocessableEntity,
				message: "template does not match the schema",
				details: verr.Causes,
				err:     err,
			}
		}
		return nil, badRequest("invalid template", err)
	}
	return tpl, nil
}

// present reports whether a JSON field was given a non-null value.
func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

func firstPresent(candidates ...json.RawMessage) []byte {
	for _, c := range candidates {
		if present(c) {
			return c
		}
	}
	return nil
}

// batchProcessHandler aligns one document from server-side folders.
func (s *Server) batchProcessHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req BatchProcessRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.processDocument(req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) processDocument(req BatchProcessRequest) (*BatchProcessResponse, error) {
	required := []struct{ name, value string }{
		{"image_file", req.ImageFile},
		{"image_folder", req.ImageFolder},
		{"coarse_folder", req.CoarseFolder},
		{"fine_folder", req.FineFolder},
		{"output_folder", req.OutputFolder},
	}
	for _, f := range required {
		if f.value == "" {
			return nil, badRequest(f.name+" is required", nil)
		}
	}
	if !present(req.Template) {
		return nil, badRequest("template is required", nil)
	}

	tpl, err := s.loadBatchTemplate(req.Template)
	if err != nil {
		return nil, err
	}

	imagePath := filepath.Join(req.ImageFolder, req.ImageFile)
	if _, err := os.Stat(imagePath); err != nil {
		return nil, &requestError{status: http.StatusNotFound, message: "image file not found: " + imagePath}
	}

	cfg := batch.DefaultConfig()
	cfg.ImageDir = req.ImageFolder
	cfg.FineDir = req.FineFolder
	cfg.CoarseDir = req.CoarseFolder
	cfg.OutputDir = req.OutputFolder
	cfg.OverlayDir = req.OverlayDir
	cfg.Colors = s.colors

	start := time.Now()
	res := batch.NewProcessor(s.Engine(), tpl, cfg, s.logger).Process(batch.NewDocument(imagePath))
	recordAlignment("batch", res.Stats, res.Err, time.Since(start))
	if res.Err != nil {
		status := http.StatusInternalServerError
		if errors.Is(res.Err, batch.ErrOCRNotFound) {
			status = http.StatusNotFound
		}
		return nil, &requestError{status: status, message: res.Err.Error()}
	}

	return &BatchProcessResponse{
		Success:     true,
		OutputFile:  res.OutputFile,
		OverlayFile: res.OverlayFile,
		KeyCount:    res.KeyCount,
		ValueCount:  res.ValueCount,
		EtcCount:    res.EtcCount,
	}, nil
}

// loadBatchTemplate accepts an inline template or a template file path.
func (s *Server) loadBatchTemplate(raw json.RawMessage) (*template.Template, error) {
	var path string
	if err := json.Unmarshal(raw, &path); err != nil {
		return parseInlineTemplate(raw)
	}
	tpl, err := template.Load(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &requestError{status: http.StatusNotFound, message: "template file not found: " + path}
		}
		var verr *template.ValidationError
		if errors.As(err, &verr) {
			return nil, &requestError{status: http.StatusUnprocessableEntity, message: "template does not match the schema", details: verr.Causes, err: err}
		}
		return nil, badRequest(fmt.Sprintf("cannot load template %s", path), err)
	}
	return tpl, nil
}
