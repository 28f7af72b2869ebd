// Package request holds the per-request state the pipeline stages share.
package request

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// HeaderRequestID is echoed on every response.
const HeaderRequestID = "X-Request-Id"

// Context is owned by one request for the duration of its processing.
type Context struct {
	ID         string
	Method     string
	Path       string
	Header     http.Header
	ClientIP   string
	ReceivedAt time.Time

	// Body is the decoded payload: map[string]any or []any for JSON, a
	// nested map[string]any for forms. Nil when the request had no body or
	// a content type the decoder does not handle.
	Body any
	// Raw holds the bytes Body was decoded from.
	Raw []byte
}

type ctxKey struct{}

// New captures the request line and headers. An incoming X-Request-Id that
// parses as a UUID is kept; anything else is replaced.
func New(r *http.Request, now time.Time) *Context {
	id := r.Header.Get(HeaderRequestID)
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}
	return &Context{
		ID:         id,
		Method:     r.Method,
		Path:       r.URL.Path,
		Header:     r.Header,
		ReceivedAt: now,
	}
}

// With stores rc in ctx.
func With(ctx context.Context, rc *Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, rc)
}

// From returns the request context stored in ctx, or nil.
func From(ctx context.Context) *Context {
	rc, _ := ctx.Value(ctxKey{}).(*Context)
	return rc
}
