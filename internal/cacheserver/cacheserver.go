// Package cacheserver exposes CacheManager over the /cache/{kind}/{id}
// HTTP namespace of the player's external interfaces, for non-browser
// renderers that have no Service-Worker-style interceptor of their own.
// It mirrors the teacher's server package's handler-per-concern layout:
// one file per route group, wired onto a shared http.ServeMux.
package cacheserver

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"playercore/internal/cachemanager"
	"playercore/internal/fileid"
	"playercore/internal/logging"
)

// Config wires a Server's dependencies.
type Config struct {
	Cache  *cachemanager.Manager
	Logger *slog.Logger
	// RequestsPerSecond and Burst configure the per-IP token-bucket rate
	// limiter guarding the namespace from request storms by an embedded
	// renderer. Zero means unlimited.
	RequestsPerSecond float64
	Burst             int
}

// Server serves the cache HTTP namespace.
type Server struct {
	cache  *cachemanager.Manager
	logger *slog.Logger
	rl     *rateLimiter
}

// New constructs a Server. Call Handler to obtain the http.Handler to mount.
func New(cfg Config) *Server {
	s := &Server{
		cache:  cfg.Cache,
		logger: logging.Default(cfg.Logger).With("component", "cacheserver"),
	}
	if cfg.RequestsPerSecond > 0 {
		s.rl = newRateLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
	}
	return s
}

// Handler builds the route mux: one handler per concern, wrapped in the
// rate-limit middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /cache/{kind}/{id}", s.handleGetWhole)
	mux.HandleFunc("HEAD /cache/{kind}/{id}", s.handleHead)
	// ServeMux wildcards must span a whole segment, so the "chunk-{index}"
	// segment is matched as {chunk} and its prefix checked by the handler.
	mux.HandleFunc("GET /cache/{kind}/{id}/{chunk}", s.handleGetChunk)
	mux.HandleFunc("GET /cache/{kind}/{id}/metadata", s.handleMetadata)

	if s.rl == nil {
		return mux
	}
	return s.rateLimitMiddleware(mux)
}

// parseFileID resolves the {kind}/{id} route parameters into a fileid.ID.
// Widget-HTML and layout-bundle-asset kinds are not addressable through
// this namespace since their identity needs a region/widget or sub-path
// the URL shape here has no room for; only layout and media are served.
func parseFileID(r *http.Request) (fileid.ID, bool) {
	kind := r.PathValue("kind")
	num, err := parseUint(r.PathValue("id"))
	if err != nil {
		return fileid.ID{}, false
	}
	switch kind {
	case "layout":
		return fileid.Layout(num), true
	case "media":
		return fileid.Media(num), true
	default:
		return fileid.ID{}, false
	}
}

func parseUint(s string) (uint64, error) {
	var n uint64
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, errNotANumber
		}
		n = n*10 + uint64(c-'0')
	}
	if s == "" {
		return 0, errNotANumber
	}
	return n, nil
}

var errNotANumber = errors.New("cacheserver: not a number")

// rateLimiter tracks per-IP token buckets, grounded on the teacher's
// server/ratelimit.go but backed directly by golang.org/x/time/rate
// rather than a hand-rolled bucket.
type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newRateLimiter(limit rate.Limit, burst int) *rateLimiter {
	return &rateLimiter{limiters: make(map[string]*rate.Limiter), limit: limit, burst: burst}
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	l, ok := rl.limiters[ip]
	if !ok {
		l = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[ip] = l
	}
	rl.mu.Unlock()
	return l.Allow()
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, _ := net.SplitHostPort(r.RemoteAddr)
		if ip == "" {
			ip = r.RemoteAddr
		}
		if !s.rl.allow(ip) {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
