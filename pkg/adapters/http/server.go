// Package http exposes the orchestrator over a JSON REST API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/serviceops/conveyor/pkg/domain"
)

// Engine defines the orchestrator surface the HTTP adapter needs.
type Engine interface {
	CreateInstance(ctx context.Context, origin domain.Channel, initial map[string]any) (domain.Snapshot, error)
	SubmitAction(ctx context.Context, instanceID string, action domain.Action, role domain.Role, payload map[string]any) (*domain.TransitionResult, error)
	GetInstance(ctx context.Context, instanceID string) (domain.Snapshot, error)
	GetHistory(ctx context.Context, instanceID string) ([]domain.TransitionRecord, error)
	Recommendations(ctx context.Context, instanceID string) ([]domain.Recommendation, error)
	ListInstances(ctx context.Context) ([]string, error)
}

// Server routes pipeline requests to the engine.
type Server struct {
	engine Engine
}

// NewHandler creates an HTTP handler over the engine.
func NewHandler(engine Engine) http.Handler {
	s := &Server{engine: engine}
	r := chi.NewRouter()

	r.Get("/healthz", s.health)
	r.Route("/instances", func(r chi.Router) {
		r.Post("/", s.createInstance)
		r.Get("/", s.listInstances)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getInstance)
			r.Get("/history", s.getHistory)
			r.Get("/recommendations", s.getRecommendations)
			r.Post("/actions", s.submitAction)
		})
	})
	return r
}

type createRequest struct {
	Origin  string         `json:"origin"`
	Payload map[string]any `json:"payload,omitempty"`
}

type actionRequest struct {
	Action    string         `json:"action"`
	ActorRole string         `json:"actor_role"`
	Payload   map[string]any `json:"payload,omitempty"`
}

type errorResponse struct {
	Kind    domain.ErrorKind `json:"kind"`
	Message string           `json:"message"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) createInstance(w http.ResponseWriter, r *http.Request) {
	var body createRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, domain.KindInternal, "invalid request body")
		return
	}
	if body.Origin == "" {
		writeError(w, http.StatusBadRequest, domain.KindInternal, "origin is required")
		return
	}

	snap, err := s.engine.CreateInstance(r.Context(), domain.Channel(body.Origin), body.Payload)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (s *Server) listInstances(w http.ResponseWriter, r *http.Request) {
	ids, err := s.engine.ListInstances(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"instances": ids})
}

func (s *Server) getInstance(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.GetInstance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.engine.GetHistory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

func (s *Server) getRecommendations(w http.ResponseWriter, r *http.Request) {
	recs, err := s.engine.Recommendations(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if recs == nil {
		recs = []domain.Recommendation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"recommendations": recs})
}

func (s *Server) submitAction(w http.ResponseWriter, r *http.Request) {
	var body actionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, domain.KindInternal, "invalid request body")
		return
	}
	if body.Action == "" || body.ActorRole == "" {
		writeError(w, http.StatusBadRequest, domain.KindInternal, "action and actor_role are required")
		return
	}

	result, err := s.engine.SubmitAction(r.Context(), chi.URLParam(r, "id"),
		domain.Action(body.Action), domain.Role(body.ActorRole), body.Payload)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// writeDomainError maps the error taxonomy onto HTTP statuses. The response
// carries a stable kind plus a human-readable reason, without leaking
// handler internals beyond the reason string the orchestrator composed.
func writeDomainError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case domain.KindInstanceNotFound:
		status = http.StatusNotFound
	case domain.KindInstanceTerminal, domain.KindInvalidTransition, domain.KindGuardNotSatisfied:
		status = http.StatusConflict
	case domain.KindRoleNotAuthorized:
		status = http.StatusForbidden
	case domain.KindHandlerExecution, domain.KindHandlerNotRegistered:
		status = http.StatusUnprocessableEntity
	}

	msg := err.Error()
	if kind == domain.KindInternal {
		// Internal failures (store errors etc.) are not caller-actionable.
		msg = "internal error"
	}
	if errors.Is(err, domain.ErrInstanceNotFound) {
		msg = domain.ErrInstanceNotFound.Error()
	}
	writeError(w, status, kind, msg)
}

func writeError(w http.ResponseWriter, status int, kind domain.ErrorKind, msg string) {
	writeJSON(w, status, errorResponse{Kind: kind, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
