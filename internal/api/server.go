// Package api exposes the pipeline over HTTP for non-Discord hosts.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"nubi/internal/persona"
	"nubi/internal/pipeline"
	"nubi/internal/workflow"
)

// Server wraps the HTTP surface: message ingestion, persona introspection,
// workflow runs, and a health probe.
type Server struct {
	processor *pipeline.Processor
	state     *persona.State
	workflows *workflow.Engine
}

// NewServer builds the HTTP surface.
func NewServer(processor *pipeline.Processor, state *persona.State, workflows *workflow.Engine) *Server {
	return &Server{processor: processor, state: state, workflows: workflows}
}

// Router assembles the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/message", s.handleMessage)
		r.Get("/state", s.handleState)
		r.Post("/workflows/{id}/run", s.handleWorkflowRun)
		r.Get("/workflows/executions", s.handleWorkflowExecutions)
		r.Delete("/workflows/executions/{id}", s.handleWorkflowCancel)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": "ok"})
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var msg pipeline.InboundMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid message payload"})
		return
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	reply := s.processor.Process(r.Context(), &msg)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "reply": reply})
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"emotion":     s.state.EmotionSnapshot(),
		"personality": s.state.TraitSnapshot(),
	})
}

func (s *Server) handleWorkflowRun(w http.ResponseWriter, r *http.Request) {
	var variables map[string]any
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&variables); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid variables payload"})
			return
		}
	}

	result := s.workflows.Execute(r.Context(), chi.URLParam(r, "id"), variables)
	status := http.StatusOK
	errMsg := ""
	if result.Err != nil {
		status = http.StatusUnprocessableEntity
		errMsg = result.Err.Error()
	}
	writeJSON(w, status, map[string]any{
		"success":     result.Success,
		"executionId": result.ExecutionID,
		"variables":   result.Variables,
		"elapsed":     result.Elapsed.String(),
		"error":       errMsg,
	})
}

func (s *Server) handleWorkflowExecutions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "executions": s.workflows.RunningExecutions()})
}

func (s *Server) handleWorkflowCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.workflows.CancelExecution(id) {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "no such execution"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}
