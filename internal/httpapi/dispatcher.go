package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// HandlerFunc is a route handler that reports failure by returning an error.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Dispatcher maps (method, path) to a handler and hands unmatched requests
// to the not-found handler, including known paths with an unknown method.
type Dispatcher struct {
	mux chi.Router
}

type dispatchResult struct {
	err error
}

type resultKey struct{}

func NewDispatcher(notFound http.HandlerFunc) *Dispatcher {
	mux := chi.NewRouter()
	mux.Use(middleware.GetHead)
	mux.NotFound(notFound)
	mux.MethodNotAllowed(notFound)
	return &Dispatcher{mux: mux}
}

// Handle registers fn for method and pattern.
func (d *Dispatcher) Handle(method, pattern string, fn HandlerFunc) {
	d.mux.MethodFunc(method, pattern, func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			if res, ok := r.Context().Value(resultKey{}).(*dispatchResult); ok {
				res.err = err
			}
		}
	})
}

// HandleFunc registers a handler that cannot fail.
func (d *Dispatcher) HandleFunc(method, pattern string, fn http.HandlerFunc) {
	d.Handle(method, pattern, func(w http.ResponseWriter, r *http.Request) error {
		fn(w, r)
		return nil
	})
}

// Mount groups routes under pattern.
func (d *Dispatcher) Mount(pattern string, fn func(sub *Dispatcher)) {
	d.mux.Route(pattern, func(r chi.Router) {
		fn(&Dispatcher{mux: r})
	})
}

// Dispatch is the pipeline's final step. It returns the error of the
// matched handler, if any.
func (d *Dispatcher) Dispatch(w http.ResponseWriter, r *http.Request) error {
	res := &dispatchResult{}
	d.mux.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), resultKey{}, res)))
	return res.err
}
