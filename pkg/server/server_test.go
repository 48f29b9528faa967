package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupHandler(t *testing.T) {
	srv := newTestServer(t, &mockStorage{})
	srv.serverName = "chargeplan-test"
	handler := srv.setupHandler()

	t.Run("Healthz", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/healthz", nil)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ok", w.Body.String())
		assert.Equal(t, "chargeplan-test", w.Header().Get("Server"))
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	})

	t.Run("Request ID Generated", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/healthz", nil)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		_, err := uuid.Parse(w.Header().Get(requestIDHeader))
		assert.NoError(t, err)
	})

	t.Run("Request ID Reused", func(t *testing.T) {
		id := uuid.NewString()
		req := httptest.NewRequest("GET", "/healthz", nil)
		req.Header.Set(requestIDHeader, id)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, id, w.Header().Get(requestIDHeader))
	})

	t.Run("Request ID Replaced When Invalid", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/healthz", nil)
		req.Header.Set(requestIDHeader, "<script>")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.NotEqual(t, "<script>", w.Header().Get(requestIDHeader))
	})

	t.Run("Missing Station", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/profiles", nil)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "stationID required")
	})

	t.Run("Metrics", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/metrics", nil)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "chargeplan_http_requests_total")
	})
}
