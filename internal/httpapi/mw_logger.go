package httpapi

import (
	"net/http"

	"github.com/rs/zerolog"

	"nutrifit-backend/internal/logging"
	"nutrifit-backend/internal/request"
)

// RequestLogger writes one line per request before it reaches the router.
// It is only installed in development.
func RequestLogger(logger zerolog.Logger) Stage {
	return Stage{
		Name: "request-logger",
		Run: func(w http.ResponseWriter, r *http.Request, next Next) error {
			ev := logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path)
			if rc := request.From(r.Context()); rc != nil {
				ev = ev.Str("received_at", rc.ReceivedAt.UTC().Format(logging.TimeFormat)).
					Str("request_id", rc.ID)
			}
			ev.Msg(r.Method + " " + r.URL.Path)
			return next(w, r)
		},
	}
}
