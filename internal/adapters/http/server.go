// Package http exposes the engine over a small JSON API: start calls, feed
// caller input, hang up, inspect sessions, validate graph definitions.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dialflow/dialflow"
	"github.com/dialflow/dialflow/internal/compiler"
	"github.com/dialflow/dialflow/pkg/adapters/memory"
	"github.com/dialflow/dialflow/pkg/flow"
)

// Server bridges HTTP requests onto a running engine. Caller input arrives
// through the hub, which the engine's transcriber and DTMF ports read from.
type Server struct {
	engine *dialflow.Engine
	hub    *memory.InputHub
	logger *slog.Logger
}

// NewHandler builds the router.
func NewHandler(engine *dialflow.Engine, hub *memory.InputHub, logger *slog.Logger) http.Handler {
	s := &Server{engine: engine, hub: hub, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/calls", s.startCall)
	r.Get("/calls/{callID}", s.getCall)
	r.Post("/calls/{callID}/input", s.pushInput)
	r.Post("/calls/{callID}/dtmf", s.pushDigit)
	r.Post("/calls/{callID}/hangup", s.hangup)
	r.Get("/graphs/{name}", s.getGraph)
	r.Post("/validate", s.validate)
	r.Get("/healthz", s.health)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(
		engine.Metrics().Prometheus(),
		promhttp.HandlerOpts{},
	))
	return r
}

type startCallRequest struct {
	CallID string `json:"call_id,omitempty"`
	Graph  string `json:"graph"`
}

type startCallResponse struct {
	CallID string `json:"call_id"`
}

func (s *Server) startCall(w http.ResponseWriter, r *http.Request) {
	var req startCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Graph == "" {
		http.Error(w, "graph is required", http.StatusBadRequest)
		return
	}

	callID, err := s.engine.StartCall(r.Context(), req.CallID, req.Graph)
	if err != nil {
		switch {
		case errors.Is(err, flow.ErrDuplicateSession):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, flow.ErrCapacity):
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
		default:
			s.logger.Error("start call", "err", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusCreated, startCallResponse{CallID: callID})
}

func (s *Server) getCall(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "callID")
	sess, err := s.engine.Session(r.Context(), callID)
	if err != nil {
		if errors.Is(err, flow.ErrSessionNotFound) {
			http.Error(w, "call not found", http.StatusNotFound)
			return
		}
		s.logger.Error("load session", "call_id", callID, "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

type inputRequest struct {
	Text  string `json:"text"`
	Final bool   `json:"final"`
}

func (s *Server) pushInput(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "callID")
	var req inputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.hub.Push(callID, req.Text, req.Final); err != nil {
		http.Error(w, err.Error(), http.StatusTooManyRequests)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type dtmfRequest struct {
	Digit string `json:"digit"`
}

func (s *Server) pushDigit(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "callID")
	var req dtmfRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Digit) != 1 {
		http.Error(w, "digit must be a single key", http.StatusBadRequest)
		return
	}
	if err := s.hub.PushDigit(callID, req.Digit); err != nil {
		http.Error(w, err.Error(), http.StatusTooManyRequests)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) hangup(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "callID")
	if err := s.engine.Hangup(callID); err != nil {
		if errors.Is(err, flow.ErrSessionNotFound) {
			http.Error(w, "call not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type graphResponse struct {
	Name    string   `json:"name"`
	Version string   `json:"version"`
	Start   string   `json:"start"`
	Nodes   []string `json:"nodes"`
}

func (s *Server) getGraph(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	graph, err := s.engine.Graph(r.Context(), name)
	if err != nil {
		http.Error(w, "graph not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, graphResponse{
		Name:    graph.Name(),
		Version: graph.Version(),
		Start:   graph.StartID(),
		Nodes:   graph.NodeIDs(),
	})
}

type validateResponse struct {
	Valid    bool                `json:"valid"`
	Issues   []flow.CompileIssue `json:"issues,omitempty"`
	Warnings []compiler.Warning  `json:"warnings,omitempty"`
}

// validate compiles a graph definition from the request body without
// publishing it.
func (s *Server) validate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read request body", http.StatusBadRequest)
		return
	}
	def, err := compiler.Parse(body)
	if err != nil {
		http.Error(w, fmt.Sprintf("parse graph: %v", err), http.StatusBadRequest)
		return
	}
	_, warnings, err := compiler.Compile(def)
	if err != nil {
		var cerr *flow.CompileError
		if errors.As(err, &cerr) {
			writeJSON(w, http.StatusUnprocessableEntity, validateResponse{
				Valid:  false,
				Issues: cerr.Issues,
			})
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, validateResponse{Valid: true, Warnings: warnings})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"active_calls": s.engine.ActiveCalls(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("encode response", "err", err)
	}
}
