package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutrifit-backend/internal/config"
	"nutrifit-backend/internal/fault"
)

var fixedNow = time.Date(2026, 10, 18, 9, 30, 0, 123_000_000, time.UTC)

func newTestHandler(env string, logs *bytes.Buffer) *Handler {
	h := New(config.Config{NodeEnv: env}, zerolog.New(logs), fixedNow.Add(-90*time.Second))
	h.now = func() time.Time { return fixedNow }
	return h
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	for _, env := range []string{"development", "production"} {
		t.Run(env, func(t *testing.T) {
			h := newTestHandler(env, &bytes.Buffer{})
			rec := httptest.NewRecorder()

			h.Health(rec, httptest.NewRequest("GET", "/health", nil))

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
			body := decode(t, rec)
			assert.Equal(t, "success", body["status"])
			assert.Equal(t, "Server is running", body["message"])
			assert.Equal(t, "2026-10-18T09:30:00.123Z", body["timestamp"])
			assert.InDelta(t, 90.0, body["uptime"], 0.001)
			assert.Equal(t, env, body["environment"])
			assert.NotContains(t, body, "stack")
		})
	}
}

func TestNotFound(t *testing.T) {
	for _, env := range []string{"development", "production"} {
		t.Run(env, func(t *testing.T) {
			h := newTestHandler(env, &bytes.Buffer{})
			rec := httptest.NewRecorder()

			h.NotFound(rec, httptest.NewRequest("DELETE", "/nonexistent?q=1", nil))

			assert.Equal(t, http.StatusNotFound, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, "error", body["status"])
			assert.Equal(t, "Route DELETE /nonexistent not found", body["message"])
			assert.Equal(t, "2026-10-18T09:30:00.123Z", body["timestamp"])
		})
	}
}

func TestHandleErrorDevelopment(t *testing.T) {
	var logs bytes.Buffer
	h := newTestHandler("development", &logs)
	rec := httptest.NewRecorder()

	h.HandleError(rec, httptest.NewRequest("POST", "/api/meals", nil), fault.New(http.StatusConflict, "meal already logged"), false)

	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "meal already logged", body["message"])
	assert.NotEmpty(t, body["stack"])
	assert.Equal(t, "2026-10-18T09:30:00.123Z", body["timestamp"])
	assert.Contains(t, logs.String(), "meal already logged")
	assert.Contains(t, logs.String(), `"stack"`)
}

func TestHandleErrorProduction(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"plain error", errors.New("secret dsn leaked"), http.StatusInternalServerError},
		{"fault with status", fault.New(http.StatusBadRequest, "secret detail"), http.StatusBadRequest},
		{"payload", fault.Payload(http.StatusRequestEntityTooLarge, fault.ErrPayloadTooLarge, "request entity too large"), http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			h := newTestHandler("production", &logs)
			rec := httptest.NewRecorder()

			h.HandleError(rec, httptest.NewRequest("GET", "/x", nil), tt.err, false)

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, "error", body["status"])
			assert.Equal(t, "Internal Server Error", body["message"])
			assert.NotContains(t, body, "stack")
			assert.NotContains(t, rec.Body.String(), "secret")
			assert.NotContains(t, logs.String(), "goroutine")
		})
	}
}

func TestHandleErrorProductionLogsServerFaultsOnly(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantLog bool
	}{
		{"client fault", fault.New(http.StatusBadRequest, "bad meal id"), false},
		{"payload", fault.Payload(http.StatusUnsupportedMediaType, fault.ErrUnsupportedCharset, "unsupported charset"), false},
		{"server fault", errors.New("db down"), true},
		{"bad gateway", fault.New(http.StatusBadGateway, "upstream"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			h := newTestHandler("production", &logs)
			h.Log = h.Log.Level(zerolog.InfoLevel)

			h.HandleError(httptest.NewRecorder(), httptest.NewRequest("GET", "/x", nil), tt.err, false)

			if !tt.wantLog {
				assert.Empty(t, logs.String())
				return
			}
			assert.Equal(t, 1, strings.Count(logs.String(), "\n"))
			assert.Contains(t, logs.String(), `"level":"error"`)
			assert.NotContains(t, logs.String(), `"stack"`)
		})
	}
}

func TestHandleErrorAfterCommit(t *testing.T) {
	var logs bytes.Buffer
	h := newTestHandler("development", &logs)
	rec := httptest.NewRecorder()

	h.HandleError(rec, httptest.NewRequest("GET", "/x", nil), errors.New("late"), true)

	assert.Zero(t, rec.Body.Len())
	assert.Contains(t, logs.String(), "committed")
}

func TestHandleErrorNil(t *testing.T) {
	h := newTestHandler("development", &bytes.Buffer{})
	rec := httptest.NewRecorder()

	h.HandleError(rec, httptest.NewRequest("GET", "/x", nil), nil, false)

	assert.Zero(t, rec.Body.Len())
}
