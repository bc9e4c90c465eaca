package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func authedHandler(t *testing.T, wantUser string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, wantUser, GetUserFromContext(r.Context()))
		w.WriteHeader(http.StatusOK)
	})
}

func TestBearerAuth(t *testing.T) {
	keys := map[string]string{"user-1": "token-1", "user-2": "token-2"}

	t.Run("valid token resolves user", func(t *testing.T) {
		h := BearerAuth(keys)(authedHandler(t, "user-2"))
		req := httptest.NewRequest(http.MethodGet, "/v1/subscriptions", nil)
		req.Header.Set("Authorization", "Bearer token-2")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("bare token without prefix accepted", func(t *testing.T) {
		h := BearerAuth(keys)(authedHandler(t, "user-1"))
		req := httptest.NewRequest(http.MethodGet, "/v1/subscriptions", nil)
		req.Header.Set("Authorization", "token-1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing header", func(t *testing.T) {
		h := BearerAuth(keys)(authedHandler(t, ""))
		req := httptest.NewRequest(http.MethodGet, "/v1/subscriptions", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown token", func(t *testing.T) {
		h := BearerAuth(keys)(authedHandler(t, ""))
		req := httptest.NewRequest(http.MethodGet, "/v1/subscriptions", nil)
		req.Header.Set("Authorization", "Bearer nope")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("health bypasses auth", func(t *testing.T) {
		h := BearerAuth(keys)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
