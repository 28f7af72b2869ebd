package httpapi

import (
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"nutrifit-backend/internal/fault"
	"nutrifit-backend/internal/request"
)

// Next continues the pipeline with the following stage (or the dispatcher
// after the last one).
type Next func(w http.ResponseWriter, r *http.Request) error

// Stage is one unit of the request pipeline. Run does exactly one of:
// call next and return its result; write a response and return nil; or
// return an error without writing, which aborts the chain.
type Stage struct {
	Name string
	Run  func(w http.ResponseWriter, r *http.Request, next Next) error
}

// ErrorHandler turns a fault into a response. started reports whether the
// response had already been committed.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error, started bool)

// Observer is told about every request the pipeline handles.
type Observer interface {
	RequestStarted()
	RequestFinished(method string, status int, elapsed time.Duration)
	Fault(kind string)
}

// Pipeline runs its stages in order, then the final handler, and routes any
// returned error or recovered panic to the error handler.
type Pipeline struct {
	stages     []Stage
	final      Next
	onError    ErrorHandler
	observer   Observer
	trustProxy bool
	now        func() time.Time
}

func NewPipeline(final Next, onError ErrorHandler, stages ...Stage) *Pipeline {
	return &Pipeline{
		stages:  stages,
		final:   final,
		onError: onError,
		now:     time.Now,
	}
}

// WithObserver attaches o to the pipeline.
func (p *Pipeline) WithObserver(o Observer) *Pipeline {
	p.observer = o
	return p
}

// WithTrustProxy makes the client IP come from the first X-Forwarded-For hop.
func (p *Pipeline) WithTrustProxy(trust bool) *Pipeline {
	p.trustProxy = trust
	return p
}

// Stages returns the stage names in execution order.
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name
	}
	return names
}

func (p *Pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := p.now()
	ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

	rc := request.New(r, start)
	rc.ClientIP = clientIP(r, p.trustProxy)
	ww.Header().Set(request.HeaderRequestID, rc.ID)
	r = r.WithContext(request.With(r.Context(), rc))

	if p.observer != nil {
		p.observer.RequestStarted()
		defer func() {
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			p.observer.RequestFinished(r.Method, status, p.now().Sub(start))
		}()
	}

	if err := p.exec(ww, r); err != nil {
		f := fault.From(err)
		if p.observer != nil {
			p.observer.Fault(f.Kind.String())
		}
		p.onError(ww, r, f, ww.Status() != 0)
	}
}

func (p *Pipeline) exec(w http.ResponseWriter, r *http.Request) (err error) {
	defer func() {
		if v := recover(); v != nil {
			if v == http.ErrAbortHandler {
				panic(v)
			}
			err = fault.FromPanic(v, debug.Stack())
		}
	}()
	return p.run(0, w, r)
}

func (p *Pipeline) run(i int, w http.ResponseWriter, r *http.Request) error {
	if i == len(p.stages) {
		return p.final(w, r)
	}
	return p.stages[i].Run(w, r, func(w http.ResponseWriter, r *http.Request) error {
		return p.run(i+1, w, r)
	})
}

func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		// Render sets X-Forwarded-For: client, proxy
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	// r.RemoteAddr is "ip:port"
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i >= 0 {
		host = host[:i]
	}
	return strings.Trim(host, "[]")
}
