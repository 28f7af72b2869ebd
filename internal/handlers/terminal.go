package handlers

import (
	"net/http"

	"nutrifit-backend/internal/fault"
	"nutrifit-backend/internal/request"
)

const internalServerError = "Internal Server Error"

// NotFound answers every request the dispatcher could not match. The
// message names the method and path in every mode.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	f := fault.NotFound(r.Method, r.URL.Path)
	h.Error(w, f.StatusCode(), f.Message)
}

// HandleError is the single interception point for faults raised by a
// pipeline stage or a route. started reports whether the response was
// already committed; in that case nothing more can be sent and the fault is
// only logged.
func (h *Handler) HandleError(w http.ResponseWriter, r *http.Request, err error, started bool) {
	f := fault.From(err)
	if f == nil {
		return
	}
	status := f.StatusCode()
	dev := h.Cfg.IsDevelopment()

	// production: server faults at error, client faults only at debug, no stack
	ev := h.Log.Error()
	if !dev && status < http.StatusInternalServerError {
		ev = h.Log.Debug()
	}
	ev = ev.Err(f).
		Int("status", status).
		Str("kind", f.Kind.String()).
		Str("method", r.Method).
		Str("path", r.URL.Path)
	if rc := request.From(r.Context()); rc != nil {
		ev = ev.Str("request_id", rc.ID)
	}
	if dev {
		ev = ev.Str("stack", f.Stack)
	}
	if started {
		ev.Msg("fault after response was committed")
		return
	}
	ev.Msg("request failed")

	env := h.envelope(StatusError, internalServerError)
	if dev {
		env.Message = f.Error()
		env.Stack = f.Stack
	}
	WriteJSON(w, status, env)
}
