package httpapi

import "net/http"

// securityHeaders is the fixed set attached to every response (helmet's
// defaults).
var securityHeaders = []struct {
	Name  string
	Value string
}{
	// script/style/frame restrictions
	{"Content-Security-Policy", "default-src 'self';base-uri 'self';font-src 'self' https: data:;form-action 'self';frame-ancestors 'self';img-src 'self' data:;object-src 'none';script-src 'self';script-src-attr 'none';style-src 'self' https: 'unsafe-inline';upgrade-insecure-requests"},
	{"Cross-Origin-Opener-Policy", "same-origin"},
	{"Cross-Origin-Resource-Policy", "same-origin"},
	{"Origin-Agent-Cluster", "?1"},
	{"Referrer-Policy", "no-referrer"},
	// transport security
	{"Strict-Transport-Security", "max-age=31536000; includeSubDomains"},
	// content-type sniffing
	{"X-Content-Type-Options", "nosniff"},
	{"X-DNS-Prefetch-Control", "off"},
	{"X-Download-Options", "noopen"},
	// frame embedding
	{"X-Frame-Options", "SAMEORIGIN"},
	{"X-Permitted-Cross-Domain-Policies", "none"},
	{"X-XSS-Protection", "0"},
}

// SecurityHeaders attaches securityHeaders unconditionally.
func SecurityHeaders() Stage {
	return Stage{
		Name: "security-headers",
		Run: func(w http.ResponseWriter, r *http.Request, next Next) error {
			h := w.Header()
			for _, sh := range securityHeaders {
				h.Set(sh.Name, sh.Value)
			}
			h.Del("X-Powered-By")
			return next(w, r)
		},
	}
}
