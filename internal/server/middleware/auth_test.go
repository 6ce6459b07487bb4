package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func authProbe(t *testing.T, apiKey string, decorate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	if decorate != nil {
		decorate(req)
	}
	rec := httptest.NewRecorder()
	Auth(apiKey)(next).ServeHTTP(rec, req)
	return rec
}

func TestAuthDisabledWithEmptyKey(t *testing.T) {
	rec := authProbe(t, "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAuthRejectsMissingToken(t *testing.T) {
	rec := authProbe(t, "s3cret", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejectsWrongToken(t *testing.T) {
	rec := authProbe(t, "s3cret", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer nope")
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthAcceptsBearerToken(t *testing.T) {
	rec := authProbe(t, "s3cret", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer s3cret")
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAuthAcceptsAPIKeyHeader(t *testing.T) {
	rec := authProbe(t, "s3cret", func(r *http.Request) {
		r.Header.Set("X-API-Key", "s3cret")
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
