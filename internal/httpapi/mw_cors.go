package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

var exposedHeaders = []string{"Content-Length", "Content-Type", "X-Request-Id", "RateLimit-Limit", "RateLimit-Remaining", "Retry-After"}

// CORS mirrors the old Express cors() options:
// - only configured origins get Access-Control-Allow-* headers
// - credentials are allowed for a matching origin only
// - every OPTIONS request is treated as preflight and answered 200 with an
//   empty body, whether or not the origin matched
//
// go-chi/cors handles actual requests. It only treats OPTIONS as preflight
// when Access-Control-Request-Method is present, so OPTIONS is finished here.
func CORS(allowedOrigins, methods, headers []string) Stage {
	allow := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		o = normalizeOrigin(o)
		if o != "" {
			allow[o] = struct{}{}
		}
	}
	allowed := func(origin string) bool {
		_, ok := allow[normalizeOrigin(origin)]
		return origin != "" && ok
	}

	c := cors.New(cors.Options{
		AllowOriginFunc: func(_ *http.Request, origin string) bool {
			return allowed(origin)
		},
		AllowedMethods:     append([]string{http.MethodHead}, methods...),
		AllowedHeaders:     headers,
		ExposedHeaders:     exposedHeaders,
		AllowCredentials:   true,
		OptionsPassthrough: true,
	})
	allowMethods := strings.Join(methods, ",")
	allowHeaders := strings.Join(headers, ", ")

	preflight := func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		if origin := r.Header.Get("Origin"); allowed(origin) {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", allowMethods)
			h.Set("Access-Control-Allow-Headers", allowHeaders)
		}
		if len(allow) > 0 && h.Get("Vary") == "" {
			h.Add("Vary", "Origin")
		}
		h.Set("Content-Length", "0")
		w.WriteHeader(http.StatusOK)
	}

	return Stage{
		Name: "cors",
		Run: func(w http.ResponseWriter, r *http.Request, next Next) error {
			var err error
			c.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method == http.MethodOptions {
					preflight(w, r)
					return
				}
				err = next(w, r)
			})).ServeHTTP(w, r)
			return err
		},
	}
}

func normalizeOrigin(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, "/")
	return s
}
