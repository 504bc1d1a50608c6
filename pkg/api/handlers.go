package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/parentpass/chatbot-api/pkg/chat"
	"github.com/parentpass/chatbot-api/pkg/session"
)

// Processor answers one user message within a session. It never fails; any
// internal failure is already converted to a fallback reply.
type Processor interface {
	Process(ctx context.Context, sessionID, message string) string
}

// Handler serves the session and query endpoints.
type Handler struct {
	store     session.Store
	processor Processor
	version   string
}

// NewHandler creates a Handler over the given store and processor.
func NewHandler(store session.Store, processor Processor, version string) *Handler {
	return &Handler{
		store:     store,
		processor: processor,
		version:   version,
	}
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// Health reports service liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   h.version,
	})
}

type sessionResponse struct {
	SessionID string      `json:"session_id"`
	State     *chat.State `json:"state"`
}

// CreateSession allocates a new session with a server-generated identifier,
// seeded with the welcome message.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	state, err := h.store.GetState(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{SessionID: id, State: state})
}

// GetSession returns the session's state. An unknown identifier yields a
// fresh welcome-seeded session rather than a 404.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	state, err := h.store.GetState(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load session")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{SessionID: id, State: state})
}

type deleteResponse struct {
	Deleted   bool   `json:"deleted"`
	SessionID string `json:"session_id"`
	Timestamp string `json:"timestamp"`
}

// DeleteSession removes the session. Deleting an unknown identifier succeeds.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.Delete(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete session")
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{
		Deleted:   true,
		SessionID: id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

type queryRequest struct {
	Message string `json:"message"`
}

type queryResponse struct {
	Response         string `json:"response"`
	SessionID        string `json:"session_id"`
	Timestamp        string `json:"timestamp"`
	ProcessingTimeMS int64  `json:"processing_time_ms"`
}

// Query dispatches one user message and returns the assistant's reply. It
// always answers 200 once validation passes; downstream failures are already
// folded into fallback replies by the processor.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get("X-Session-ID")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "X-Session-ID header is required")
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusUnprocessableEntity, "Message must not be empty")
		return
	}

	start := time.Now()
	answer := h.processor.Process(r.Context(), sessionID, req.Message)

	writeJSON(w, http.StatusOK, queryResponse{
		Response:         answer,
		SessionID:        sessionID,
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
		ProcessingTimeMS: time.Since(start).Milliseconds(),
	})
}
