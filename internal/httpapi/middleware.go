package httpapi

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rexmedia/mediavault/internal/apperr"
	"github.com/rexmedia/mediavault/internal/config"
)

// Middleware wraps an http.Handler with another; chain applies them
// outermost-first so the first entry in the slice runs first on the way in.
type Middleware func(http.Handler) http.Handler

func chain(h http.Handler, mw ...Middleware) http.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

// loggingMiddleware logs one line per request: method, path, status,
// duration. Matches the teacher's request-logging texture without pulling
// in a dedicated access-log library.
func (a *API) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		a.Log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", sw.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// corsMiddleware allows any origin to read the public API: the optimized
// and original blob endpoints are meant to be embedded cross-origin (e.g.
// an NFT marketplace frontend on another domain), and §1 explicitly states
// there is no read-side access control.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Range, X-API-Key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// apiKeyMiddleware enforces §6 auth config: when enabled, any request whose
// path matches protected_paths (and doesn't match public_paths) must carry
// a valid X-API-Key header.
func (a *API) apiKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cfg := a.Cfg.Auth
		if !cfg.Enabled || !pathMatches(r.URL.Path, cfg.ProtectedPaths) || pathMatches(r.URL.Path, cfg.PublicPaths) {
			next.ServeHTTP(w, r)
			return
		}
		key := r.Header.Get("X-API-Key")
		if key == "" || !containsStr(cfg.APIKeys, key) {
			a.writeError(w, r, apperr.New(apperr.KindUnauthorized, "missing or invalid API key"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func pathMatches(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func containsStr(list []string, target string) bool {
	for _, v := range list {
		if v == target {
			return true
		}
	}
	return false
}

// rateLimiter hands out one golang.org/x/time/rate.Limiter per client IP,
// lazily, for both the general request budget and the tighter upload
// budget named in §6's rate_limit config section.
type rateLimiter struct {
	mu      sync.Mutex
	general map[string]*rate.Limiter
	uploads map[string]*rate.Limiter
	cfg     config.RateLimitConfig
}

func newRateLimiter(cfg config.RateLimitConfig) *rateLimiter {
	return &rateLimiter{
		general: make(map[string]*rate.Limiter),
		uploads: make(map[string]*rate.Limiter),
		cfg:     cfg,
	}
}

func (rl *rateLimiter) limiterFor(bucket map[string]*rate.Limiter, ip string, burst int, window time.Duration) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	l, ok := bucket[ip]
	if !ok {
		every := window / time.Duration(burst)
		l = rate.NewLimiter(rate.Every(every), burst)
		bucket[ip] = l
	}
	return l
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// rateLimitMiddleware applies the general per-IP budget to every request
// and, additionally, the tighter upload budget to the upload endpoints.
func (a *API) rateLimitMiddleware(rl *rateLimiter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.cfg.Enabled {
				next.ServeHTTP(w, r)
				return
			}
			ip := clientIP(r)
			general := rl.limiterFor(rl.general, ip, rl.cfg.RequestsPerWindow, rl.cfg.Window())
			if !general.Allow() {
				a.writeError(w, r, apperr.New(apperr.KindRateLimitExceeded, "too many requests"))
				return
			}
			if strings.HasPrefix(r.URL.Path, "/api/upload") {
				uploads := rl.limiterFor(rl.uploads, ip, rl.cfg.UploadsPerWindow, rl.cfg.Window())
				if !uploads.Allow() {
					a.writeError(w, r, apperr.New(apperr.KindRateLimitExceeded, "too many upload requests"))
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
