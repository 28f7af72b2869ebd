package httpapi

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"nutrifit-backend/internal/config"
	"nutrifit-backend/internal/handlers"
)

// Deps are the collaborators NewRouter wires in. Zero values disable the
// optional parts.
type Deps struct {
	Logger zerolog.Logger
	// Started is when the process came up; /health reports uptime from it.
	Started  time.Time
	Limiter  *RateLimiter
	Observer Observer
	// Routes registers route groups next to /health.
	Routes func(d *Dispatcher)
}

func NewRouter(cfg config.Config, deps Deps) *Pipeline {
	if deps.Started.IsZero() {
		deps.Started = time.Now()
	}
	h := handlers.New(cfg, deps.Logger, deps.Started)

	d := NewDispatcher(h.NotFound)
	d.HandleFunc(http.MethodGet, "/health", h.Health)

	// /api/auth, /api/users and /api/nutrition mount here once they exist
	if deps.Routes != nil {
		deps.Routes(d)
	}

	stages := []Stage{
		SecurityHeaders(),
		CORS(cfg.CORSOrigins, cfg.CORSMethods, cfg.CORSHeaders),
	}
	// rejected clients never get their body read
	if deps.Limiter != nil {
		stages = append(stages, deps.Limiter.Stage(h))
	}
	stages = append(stages, BodyDecoder(cfg.BodyLimit, cfg.FormParameterLimit))
	if cfg.IsDevelopment() {
		stages = append(stages, RequestLogger(deps.Logger))
	}

	p := NewPipeline(d.Dispatch, h.HandleError, stages...).
		WithTrustProxy(cfg.TrustProxy)
	if deps.Observer != nil {
		p.WithObserver(deps.Observer)
	}
	return p
}
