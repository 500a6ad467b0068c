package shield

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// RateLimitConfig configures the per-client limiter.
type RateLimitConfig struct {
	// Requests allowed per Window per client. Default: 60.
	Requests int

	// Window length. Default: 1m.
	Window time.Duration
}

func (c *RateLimitConfig) defaults() {
	if c.Requests <= 0 {
		c.Requests = 60
	}
	if c.Window <= 0 {
		c.Window = time.Minute
	}
}

// RateLimiter counts requests per client IP in fixed windows. State is
// in-process; behind a load balancer each instance enforces its own share.
type RateLimiter struct {
	cfg RateLimitConfig

	mu      sync.Mutex
	windows map[string]*window
	sweep   time.Time
}

type window struct {
	start time.Time
	count int
}

// NewRateLimiter creates a rate limiter.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	cfg.defaults()
	return &RateLimiter{cfg: cfg, windows: make(map[string]*window), sweep: time.Now()}
}

// Middleware rejects clients over their budget with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientIP(r), time.Now()) {
			w.Header().Set("Retry-After", rl.cfg.Window.String())
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(client string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Drop stale windows opportunistically.
	if now.Sub(rl.sweep) > rl.cfg.Window {
		for k, win := range rl.windows {
			if now.Sub(win.start) > rl.cfg.Window {
				delete(rl.windows, k)
			}
		}
		rl.sweep = now
	}

	win := rl.windows[client]
	if win == nil || now.Sub(win.start) > rl.cfg.Window {
		rl.windows[client] = &window{start: now, count: 1}
		return true
	}
	win.count++
	return win.count <= rl.cfg.Requests
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
