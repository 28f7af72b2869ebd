// Package fault defines the error values that travel through the request
// pipeline to the error handler.
package fault

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
)

// Kind classifies a fault.
type Kind int

const (
	// KindHandler is any failure raised while dispatching a request.
	KindHandler Kind = iota
	// KindPayload is a client-caused body problem (too large, malformed).
	KindPayload
	// KindNotFound means no route matched.
	KindNotFound
	// KindUnrecoverable escaped the request pipeline entirely and ends the process.
	KindUnrecoverable
)

func (k Kind) String() string {
	switch k {
	case KindPayload:
		return "payload"
	case KindNotFound:
		return "not_found"
	case KindUnrecoverable:
		return "unrecoverable"
	default:
		return "handler"
	}
}

var (
	ErrPayloadTooLarge    = errors.New("request entity too large")
	ErrMalformedBody      = errors.New("malformed request body")
	ErrUnsupportedCharset = errors.New("unsupported charset")
	ErrTooManyParameters  = errors.New("too many parameters")
	ErrNotFound           = errors.New("route not found")
)

// Fault carries an optional status, a message and the stack captured where
// it was raised.
type Fault struct {
	Kind    Kind
	Status  int
	Message string
	Stack   string
	Err     error
}

func (f *Fault) Error() string {
	if f.Message != "" {
		return f.Message
	}
	if f.Err != nil {
		return f.Err.Error()
	}
	return http.StatusText(f.StatusCode())
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// StatusCode is the HTTP status the fault maps to; 500 when none was set.
func (f *Fault) StatusCode() int {
	if f.Status < 100 || f.Status > 599 {
		return http.StatusInternalServerError
	}
	return f.Status
}

// New raises a handler fault with the given status (0 means 500).
func New(status int, message string) *Fault {
	return &Fault{Kind: KindHandler, Status: status, Message: message, Stack: stack()}
}

// Payload raises a body-decoding fault wrapping cause.
func Payload(status int, cause error, message string) *Fault {
	return &Fault{Kind: KindPayload, Status: status, Message: message, Err: cause, Stack: stack()}
}

// NotFound describes a request no route matched.
func NotFound(method, path string) *Fault {
	return &Fault{
		Kind:    KindNotFound,
		Status:  http.StatusNotFound,
		Message: fmt.Sprintf("Route %s %s not found", method, path),
		Err:     ErrNotFound,
	}
}

// Unrecoverable marks err as process-fatal.
func Unrecoverable(err error) *Fault {
	f := From(err)
	f.Kind = KindUnrecoverable
	return f
}

// FromPanic converts a recovered panic value into a handler fault. stack
// should come from debug.Stack() inside the deferred recover.
func FromPanic(v any, stack []byte) *Fault {
	f := &Fault{Kind: KindHandler, Stack: string(stack)}
	switch x := v.(type) {
	case *Fault:
		x.Stack = string(stack)
		return x
	case error:
		f.Err = x
		f.Message = x.Error()
		if sc, ok := x.(interface{ StatusCode() int }); ok {
			f.Status = sc.StatusCode()
		}
	default:
		f.Message = fmt.Sprint(x)
	}
	return f
}

// From returns err as a *Fault. Existing faults anywhere in the chain are
// reused; other errors become handler faults, keeping a StatusCode() int if
// the error provides one. The stack is captured here when the error did not
// carry one.
func From(err error) *Fault {
	if err == nil {
		return nil
	}
	var f *Fault
	if errors.As(err, &f) {
		if f.Stack == "" {
			f.Stack = stack()
		}
		return f
	}
	out := &Fault{Kind: KindHandler, Message: err.Error(), Err: err, Stack: stack()}
	var sc interface{ StatusCode() int }
	if errors.As(err, &sc) {
		out.Status = sc.StatusCode()
	}
	return out
}

func stack() string {
	return string(debug.Stack())
}
