package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parentpass/chatbot-api/pkg/chat"
	"github.com/parentpass/chatbot-api/pkg/session"
)

type echoProcessor struct {
	lastSession string
	lastMessage string
}

func (p *echoProcessor) Process(_ context.Context, sessionID, message string) string {
	p.lastSession = sessionID
	p.lastMessage = message
	return "answer to: " + message
}

// failingStore errors on every operation.
type failingStore struct{}

func (failingStore) GetState(context.Context, string) (*chat.State, error) {
	return nil, errors.New("store offline")
}
func (failingStore) SetState(context.Context, string, *chat.State) error {
	return errors.New("store offline")
}
func (failingStore) Delete(context.Context, string) error { return errors.New("store offline") }
func (failingStore) Cleanup(context.Context) error        { return errors.New("store offline") }
func (failingStore) Close() error                         { return nil }

func testRouter(store session.Store, proc Processor) *chi.Mux {
	h := NewHandler(store, proc, "1.0.0-test")
	r := chi.NewRouter()
	r.Get("/api/health", h.Health)
	r.Post("/api/sessions", h.CreateSession)
	r.Get("/api/sessions/{id}", h.GetSession)
	r.Delete("/api/sessions/{id}", h.DeleteSession)
	r.Post("/api/query", h.Query)
	return r
}

func TestHealth(t *testing.T) {
	router := testRouter(session.NewMemoryStore(0), &echoProcessor{})
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "1.0.0-test", body["version"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestCreateSession(t *testing.T) {
	router := testRouter(session.NewMemoryStore(0), &echoProcessor{})
	req := httptest.NewRequest(http.MethodPost, "/api/sessions", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var body sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.SessionID)
	require.NotNil(t, body.State)
	require.Len(t, body.State.RecentMessages, 1)
	assert.Equal(t, chat.RoleAssistant, body.State.RecentMessages[0].Role)
}

func TestGetSession_UnknownIDCreatesFresh(t *testing.T) {
	router := testRouter(session.NewMemoryStore(0), &echoProcessor{})
	req := httptest.NewRequest(http.MethodGet, "/api/sessions/never-seen", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "never-seen", body.SessionID)
	require.Len(t, body.State.RecentMessages, 1)
	assert.Equal(t, session.WelcomeContent, body.State.RecentMessages[0].Content)
}

func TestDeleteSession_Idempotent(t *testing.T) {
	router := testRouter(session.NewMemoryStore(0), &echoProcessor{})

	for range 2 {
		req := httptest.NewRequest(http.MethodDelete, "/api/sessions/gone", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var body deleteResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.True(t, body.Deleted)
		assert.Equal(t, "gone", body.SessionID)
		assert.NotEmpty(t, body.Timestamp)
	}
}

func TestSessionEndpoints_StoreFailure(t *testing.T) {
	router := testRouter(failingStore{}, &echoProcessor{})

	tests := []struct {
		name   string
		method string
		path   string
	}{
		{name: "create", method: http.MethodPost, path: "/api/sessions"},
		{name: "get", method: http.MethodGet, path: "/api/sessions/abc"},
		{name: "delete", method: http.MethodDelete, path: "/api/sessions/abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusInternalServerError, rec.Code)
		})
	}
}

func TestQuery(t *testing.T) {
	proc := &echoProcessor{}
	router := testRouter(session.NewMemoryStore(0), proc)

	req := httptest.NewRequest(http.MethodPost, "/api/query",
		strings.NewReader(`{"message": "how many active users?"}`))
	req.Header.Set("X-Session-ID", "sess-1")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body queryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "answer to: how many active users?", body.Response)
	assert.Equal(t, "sess-1", body.SessionID)
	assert.NotEmpty(t, body.Timestamp)
	assert.GreaterOrEqual(t, body.ProcessingTimeMS, int64(0))
	assert.Equal(t, "sess-1", proc.lastSession)
	assert.Equal(t, "how many active users?", proc.lastMessage)
}

func TestQuery_MissingSessionHeader(t *testing.T) {
	router := testRouter(session.NewMemoryStore(0), &echoProcessor{})
	req := httptest.NewRequest(http.MethodPost, "/api/query",
		strings.NewReader(`{"message": "hello"}`))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"detail":"X-Session-ID header is required"}`, rec.Body.String())
}

func TestQuery_MalformedBody(t *testing.T) {
	router := testRouter(session.NewMemoryStore(0), &echoProcessor{})

	tests := []struct {
		name string
		body string
	}{
		{name: "invalid json", body: `{"message": `},
		{name: "empty body", body: ``},
		{name: "empty message", body: `{"message": ""}`},
		{name: "whitespace message", body: `{"message": "   "}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(tt.body))
			req.Header.Set("X-Session-ID", "sess-1")
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		})
	}
}
