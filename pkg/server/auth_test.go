package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAuthMiddleware(t *testing.T) {
	srv := newTestServer(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), defaultRecords()...)
	srv.verifyToken = func(ctx context.Context, token string) (string, error) {
		switch token {
		case "valid-token":
			return "user@example.com", nil
		case "other-token":
			return "other@example.com", nil
		}
		return "", assert.AnError
	}
	srv.allowedEmails = []string{"user@example.com"}

	req := func(auth string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "/api/daily?date=2024-06-01", nil)
		if auth != "" {
			r.Header.Set("Authorization", auth)
		}
		w := httptest.NewRecorder()
		srv.setupHandler().ServeHTTP(w, r)
		return w
	}

	t.Run("Valid", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, req("Bearer valid-token").Code)
	})

	t.Run("Missing", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, req("").Code)
	})

	t.Run("NotBearer", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, req("Basic dXNlcjpwYXNz").Code)
	})

	t.Run("Invalid", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, req("Bearer forged").Code)
	})

	t.Run("NotAllowed", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, req("Bearer other-token").Code)
	})

	t.Run("HealthzIsOpen", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		w := httptest.NewRecorder()
		srv.setupHandler().ServeHTTP(w, r)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
