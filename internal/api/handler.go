package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reverie-ai/reverie/internal/extractor"
	"github.com/reverie-ai/reverie/internal/memory"
	"github.com/reverie-ai/reverie/internal/persona"
	"github.com/reverie-ai/reverie/internal/session"
)

// PersonaStore is the persona registry the API manages. Implemented by
// the Postgres store.
type PersonaStore interface {
	SavePersona(ctx context.Context, p *persona.Profile) error
	GetProfile(ctx context.Context, id string) (*persona.Profile, error)
	ListPersonas(ctx context.Context) ([]*persona.Profile, error)
	DeletePersona(ctx context.Context, id string) error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	sessions *session.Manager
	memStore *memory.Store
	extract  *extractor.Extractor
	personas PersonaStore
	logger   *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(
	sessions *session.Manager,
	memStore *memory.Store,
	extract *extractor.Extractor,
	personas PersonaStore,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		sessions: sessions,
		memStore: memStore,
		extract:  extract,
		personas: personas,
		logger:   logger,
	}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)

		r.Get("/personas", h.listPersonas)
		r.Post("/personas", h.createPersona)
		r.Get("/personas/{id}", h.getPersona)
		r.Delete("/personas/{id}", h.deletePersona)

		r.Post("/personas/{id}/ingest", h.ingestContent)
		r.Get("/personas/{id}/memory/summary", h.memorySummary)
		r.Get("/personas/{id}/memory/top", h.topMemories)

		r.Post("/sessions", h.startSession)
		r.Post("/sessions/{id}/turns", h.submitTurn)
		r.Delete("/sessions/{id}", h.endSession)
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) listPersonas(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.personas.ListPersonas(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if profiles == nil {
		profiles = []*persona.Profile{}
	}
	writeJSON(w, http.StatusOK, profiles)
}

func (h *Handler) createPersona(w http.ResponseWriter, r *http.Request) {
	var p persona.Profile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if p.Name == "" || p.Relationship == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name and relationship are required"})
		return
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now

	if err := h.personas.SavePersona(r.Context(), &p); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) getPersona(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := h.personas.GetProfile(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "persona not found"})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) deletePersona(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.personas.DeletePersona(r.Context(), id); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type ingestRequest struct {
	Items []extractor.ContentItem `json:"items"`
}

func (h *Handler) ingestContent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.personas.GetProfile(r.Context(), id); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "persona not found"})
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "items are required"})
		return
	}

	res, err := h.extract.ProcessBatch(r.Context(), id, req.Items)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) memorySummary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sum, err := h.memStore.Summarize(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (h *Handler) topMemories(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	mems, err := h.memStore.TopImportant(r.Context(), id, 10)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if mems == nil {
		mems = []*memory.Memory{}
	}
	writeJSON(w, http.StatusOK, mems)
}

type startSessionRequest struct {
	PersonaID string `json:"persona_id"`
}

type sessionResponse struct {
	ID        string    `json:"id"`
	PersonaID string    `json:"persona_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.PersonaID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "persona_id is required"})
		return
	}

	sess, err := h.sessions.Start(r.Context(), req.PersonaID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{
		ID:        sess.ID,
		PersonaID: sess.PersonaID,
		CreatedAt: sess.CreatedAt,
	})
}

type turnRequest struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

func (h *Handler) submitTurn(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
		return
	}
	if req.Confidence == 0 {
		req.Confidence = 1.0
	}

	resp, err := h.sessions.SubmitUserTurn(r.Context(), id, req.Text, req.Confidence)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrSessionNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		case errors.Is(err, session.ErrSuperseded):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "turn superseded by a newer one"})
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) endSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.sessions.End(r.Context(), id); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ended"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
