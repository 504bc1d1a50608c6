package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parentpass/chatbot-api/pkg/health"
	"github.com/parentpass/chatbot-api/pkg/session"
)

const testKey = "integration-test-key"

type staticProcessor struct{}

func (staticProcessor) Process(context.Context, string, string) string {
	return "static answer"
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	store := session.NewMemoryStore(0)
	t.Cleanup(func() { _ = store.Close() })
	checker := health.NewChecker()
	checker.SetReady()
	return New(store, staticProcessor{}, testKey, checker)
}

func TestRouter_ProbesUnauthenticated(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestRouter_RejectsWithoutToken(t *testing.T) {
	srv := newTestServer(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/health"},
		{http.MethodPost, "/api/sessions"},
		{http.MethodGet, "/api/sessions/abc"},
		{http.MethodDelete, "/api/sessions/abc"},
		{http.MethodPost, "/api/query"},
	}

	for _, p := range paths {
		req := httptest.NewRequest(p.method, p.path, nil)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code, "%s %s", p.method, p.path)
	}
}

func TestRouter_QueryFlow(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/query",
		strings.NewReader(`{"message": "hello"}`))
	req.Header.Set("Authorization", "Bearer "+testKey)
	req.Header.Set("X-Session-ID", "s1")
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "static answer")
}

func TestRouter_HealthAuthenticated(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Authorization", "Bearer "+testKey)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy"`)
}

func TestRouter_UnknownRoute(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/nope", nil)
	req.Header.Set("Authorization", "Bearer "+testKey)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
