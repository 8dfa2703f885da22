package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketRequest is one client message. Only type "automap" is handled;
// the remaining fields are those of AutomapRequest.
type WebSocketRequest struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	AutomapRequest
}

// WebSocketResponse is one server message.
type WebSocketResponse struct {
	Type      string   `json:"type"`
	Status    string   `json:"status"` // "processing", "completed", "error"
	Result    any      `json:"result,omitempty"`
	Error     string   `json:"error,omitempty"`
	ErrorType string   `json:"error_type,omitempty"`
	Details   []string `json:"details,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
}

// WebSocketConnWriter is the part of a websocket connection the handlers write to.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// automapWebSocketHandler upgrades the connection and serves automap messages.
func (s *Server) automapWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	s.logger.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)
	s.serveWebSocket(conn)
}

func (s *Server) serveWebSocket(conn *websocket.Conn) {
	const readTimeout = 60 * time.Second
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	conn.SetReadLimit(s.maxUploadMB * 1024 * 1024)

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("WebSocket closed", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()
		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(conn, data)
		}
	}
}

// handleWebSocketMessage answers one message with a processing frame
// followed by a completed or error frame.
func (s *Server) handleWebSocketMessage(conn WebSocketConnWriter, data []byte) {
	var req WebSocketRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(conn, "", "invalid_request", fmt.Errorf("failed to parse request: %w", err))
		return
	}
	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	if req.Type != "automap" {
		s.sendWebSocketError(conn, requestID, "invalid_request", fmt.Errorf("unsupported request type: %q", req.Type))
		return
	}

	s.sendWebSocketResponse(conn, WebSocketResponse{Type: "automap_response", Status: "processing", RequestID: requestID})

	out, err := s.automap(req.AutomapRequest, "websocket")
	if err != nil {
		errType := "processing_error"
		var re *requestError
		if errors.As(err, &re) && re.status < http.StatusInternalServerError {
			errType = "invalid_request"
		}
		s.sendWebSocketError(conn, requestID, errType, err)
		return
	}
	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:      "automap_response",
		Status:    "completed",
		Result:    out,
		RequestID: requestID,
	})
}

func (s *Server) sendWebSocketError(conn WebSocketConnWriter, requestID, errorType string, err error) {
	resp := WebSocketResponse{
		Type:      "error",
		Status:    "error",
		Error:     err.Error(),
		ErrorType: errorType,
		RequestID: requestID,
	}
	var re *requestError
	if errors.As(err, &re) {
		resp.Details = re.details
	}
	s.sendWebSocketResponse(conn, resp)
}

func (s *Server) sendWebSocketResponse(conn WebSocketConnWriter, response WebSocketResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		s.logger.Error("failed to marshal WebSocket response", "error", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Error("failed to send WebSocket message", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}
