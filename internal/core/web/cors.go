package web

import (
	"net/http"
	"net/url"
	"strings"
)

// amplifySuffix is accepted for any hosted frontend deployment.
const amplifySuffix = ".amplifyapp.com"

type originPolicy struct {
	exact map[string]struct{}
}

func newOriginPolicy(origins []string) *originPolicy {
	p := &originPolicy{exact: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o != "" {
			p.exact[o] = struct{}{}
		}
	}
	return p
}

// allowed reports whether origin may call the API. An empty origin
// (same-origin or non-browser client) is always allowed.
func (p *originPolicy) allowed(origin string) bool {
	if origin == "" {
		return true
	}
	if _, ok := p.exact[origin]; ok {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	return strings.HasSuffix(u.Hostname(), amplifySuffix)
}

func (p *originPolicy) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if !p.allowed(origin) {
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "Not allowed by CORS"})
			return
		}

		if origin != "" {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			h := w.Header()
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
				h.Set("Access-Control-Allow-Headers", reqHeaders)
			} else {
				h.Set("Access-Control-Allow-Headers", "Content-Type")
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// OriginPatterns converts CORS origins to the host patterns used for
// websocket origin checks.
func OriginPatterns(origins []string) []string {
	patterns := []string{"*" + amplifySuffix}
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
		}
	}
	return patterns
}
