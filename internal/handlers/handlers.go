package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"nutrifit-backend/internal/config"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"

	// TimestampFormat matches JavaScript's Date.toISOString.
	TimestampFormat = "2006-01-02T15:04:05.000Z"
)

// Envelope is the shape of every JSON response body.
type Envelope struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Stack     string `json:"stack,omitempty"`
	Timestamp string `json:"timestamp"`
}

type Handler struct {
	Cfg     config.Config
	Log     zerolog.Logger
	started time.Time
	now     func() time.Time
}

// New returns handlers whose uptime counts from started.
func New(cfg config.Config, logger zerolog.Logger, started time.Time) *Handler {
	return &Handler{Cfg: cfg, Log: logger, started: started, now: time.Now}
}

// ---- small helpers ----

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) envelope(status, message string) Envelope {
	return Envelope{Status: status, Message: message, Timestamp: Timestamp(h.now())}
}

// Error writes an error envelope. It never attaches a stack; only the error
// handler does that.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, h.envelope(StatusError, message))
}

func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}
