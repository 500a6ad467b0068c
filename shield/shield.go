// Package shield provides the HTTP middleware stack for the public API:
// security headers, body size limits, HEAD handling, and per-client rate
// limiting.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.DefaultAPIStack() {
//	    r.Use(mw)
//	}
package shield

import "net/http"

// DefaultAPIStack returns the standard middleware stack for the JSON API.
// Ordered: HeadToGet → SecurityHeaders → MaxJSONBody → RateLimiter.
func DefaultAPIStack() []func(http.Handler) http.Handler {
	rl := NewRateLimiter(RateLimitConfig{})
	return []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(DefaultHeaders()),
		MaxJSONBody(64 * 1024),
		rl.Middleware,
	}
}
