package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"i4.energy/across/atbridge/bridge"
	"i4.energy/across/atbridge/decode"
	"i4.energy/across/atbridge/store"
	"i4.energy/across/atbridge/workflow"
)

// Server exposes bridge status and modem queries over HTTP. Commands go
// through the local bridge socket like any other client.
type Server struct {
	Logger *slog.Logger
	// State reports the supervisor state
	State func() bridge.State
	// Workflow sends commands through the bridge
	Workflow *workflow.Orchestrator
	// History is optional; without it the scan list is unavailable
	History *store.Store

	once   sync.Once
	router chi.Router
}

// ServeHTTP implements the http.Handler interface for the Server struct
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.once.Do(s.routes)
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Get("/signal", s.handleSignal)
	r.Post("/command", s.handleCommand)
	r.Post("/scan", s.handleScan)
	r.Get("/scans", s.handleScans)

	s.router = r
}

func (s *Server) sendJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Warn("Failed to write response", "error", err)
	}
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	if message == "" {
		w.WriteHeader(statusCode)
		return
	}

	type ErrorResponse struct {
		Message string `json:"message"`
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Message: message})
}

// statusFor maps a command failure onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, decode.ErrInvalidFormat):
		return http.StatusBadGateway
	case errors.Is(err, bridge.ErrNoResponse):
		return http.StatusGatewayTimeout
	default:
		return http.StatusServiceUnavailable
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	state := bridge.Disconnected
	if s.State != nil {
		state = s.State()
	}
	s.sendJSON(w, map[string]string{"state": state.String()})
}

func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	status, err := s.Workflow.Signal(r.Context())
	if err != nil {
		s.Logger.Error("Failed to query signal", "error", err)
		s.sendError(w, err.Error(), statusFor(err))
		return
	}

	type SignalResponse struct {
		SystemMode string `json:"system_mode"`
		RSRP       string `json:"rsrp"`
		SINR       string `json:"sinr"`
		RSRQ       string `json:"rsrq"`
	}
	s.sendJSON(w, SignalResponse{
		SystemMode: status.SystemMode,
		RSRP:       status.RSRP.String(),
		SINR:       status.SINR.String(),
		RSRQ:       status.RSRQ.String(),
	})
}

// handleCommand passes an AT command through verbatim
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	type CommandRequest struct {
		Command string `json:"command"`
	}

	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Command == "" {
		s.sendError(w, "'command' field is required", http.StatusBadRequest)
		return
	}

	resp, err := s.Workflow.Manual(r.Context(), req.Command)
	if err != nil {
		s.Logger.Error("Failed to send command", "error", err, "command", req.Command)
		s.sendError(w, err.Error(), statusFor(err))
		return
	}

	s.Logger.Info("Command sent", "command", req.Command, "response_length", len(resp))
	s.sendJSON(w, map[string]string{"response": resp})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	cells, err := s.Workflow.CellScan(r.Context())
	if err != nil {
		s.Logger.Error("Cell scan failed", "error", err)
		s.sendError(w, err.Error(), statusFor(err))
		return
	}
	s.sendJSON(w, cells)
}

func (s *Server) handleScans(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		s.sendError(w, "scan history is not configured", http.StatusNotFound)
		return
	}

	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.sendError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	scans, err := s.History.List(limit)
	if err != nil {
		s.Logger.Error("Failed to list scans", "error", err)
		s.sendError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if scans == nil {
		scans = []store.Scan{}
	}
	s.sendJSON(w, scans)
}
