package httpmiddleware

import (
	"net/http"
	"strconv"
	"strings"
)

// Defaults for CORSConfig fields left empty.
var (
	DefaultCORSMethods = []string{
		http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions,
	}
	DefaultCORSHeaders = []string{"Authorization", "Content-Type", HeaderRequestID}
	DefaultCORSExpose  = []string{HeaderRequestID, "Retry-After"}
)

// CORSConfig configures CORS.
type CORSConfig struct {
	// AllowOrigins lists permitted origins, matched case-insensitively. Empty
	// or "*" allows any origin.
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool
	// MaxAge is the preflight cache lifetime in seconds; zero omits it.
	MaxAge int
}

type cors struct {
	any         bool
	origins     map[string]string
	methods     string
	headers     string
	expose      string
	credentials bool
	maxAge      string
}

func newCORS(cfg CORSConfig) *cors {
	c := &cors{
		any:         len(cfg.AllowOrigins) == 0,
		origins:     make(map[string]string, len(cfg.AllowOrigins)),
		methods:     strings.Join(orDefault(cfg.AllowMethods, DefaultCORSMethods), ", "),
		headers:     strings.Join(orDefault(cfg.AllowHeaders, DefaultCORSHeaders), ", "),
		expose:      strings.Join(orDefault(cfg.ExposeHeaders, DefaultCORSExpose), ", "),
		credentials: cfg.AllowCredentials,
	}
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			c.any = true
			continue
		}
		c.origins[strings.ToLower(o)] = o
	}
	// A wildcard is not allowed together with credentials; the request
	// origin is echoed instead.
	if c.credentials && c.any {
		c.any = false
		c.origins = nil
	}
	if cfg.MaxAge > 0 {
		c.maxAge = strconv.Itoa(cfg.MaxAge)
	}
	return c
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin, or ""
// when the origin is refused.
func (c *cors) allowOrigin(origin string) string {
	switch {
	case c.any:
		return "*"
	case c.origins == nil:
		return origin
	default:
		return c.origins[strings.ToLower(origin)]
	}
}

func (c *cors) vary(h http.Header, preflight bool) {
	if c.any && !preflight {
		return
	}
	h.Add("Vary", "Origin")
	if preflight {
		h.Add("Vary", "Access-Control-Request-Method")
		h.Add("Vary", "Access-Control-Request-Headers")
	}
}

// CORS answers preflight requests and decorates actual cross-origin
// responses.
func CORS(cfg CORSConfig) Middleware {
	c := newCORS(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
			h := w.Header()
			c.vary(h, preflight)

			allowed := ""
			if origin != "" {
				allowed = c.allowOrigin(origin)
			}
			if allowed != "" {
				h.Set("Access-Control-Allow-Origin", allowed)
				if c.credentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
			}

			if !preflight {
				if allowed != "" {
					h.Set("Access-Control-Expose-Headers", c.expose)
				}
				next.ServeHTTP(w, r)
				return
			}

			if allowed != "" {
				h.Set("Access-Control-Allow-Methods", c.methods)
				h.Set("Access-Control-Allow-Headers", c.headers)
				if c.maxAge != "" {
					h.Set("Access-Control-Max-Age", c.maxAge)
				}
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}

func orDefault(v, def []string) []string {
	if len(v) == 0 {
		return def
	}
	return v
}
