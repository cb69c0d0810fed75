// Package shield provides the HTTP middleware in front of the chapter API:
// security headers, HEAD handling, body limits, request ids and per-client
// rate limiting.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.APIStack(shield.Options{RateLimit: shield.RateLimit{MaxRequests: 120, Window: time.Minute}}) {
//	    r.Use(mw)
//	}
package shield

import (
	"net/http"
	"time"
)

// Options configures APIStack.
type Options struct {
	// MaxBody caps request bodies (default 64 KiB).
	MaxBody int64
	// RateLimit applies to every path except Exclude. Zero MaxRequests
	// disables limiting.
	RateLimit RateLimit
	// Exclude lists path prefixes that are never rate limited.
	Exclude []string
}

// APIStack returns the middleware for a JSON API, outermost first:
// RequestID → HeadToGet → SecurityHeaders → MaxBody → RateLimiter.
func APIStack(opts Options) []func(http.Handler) http.Handler {
	if opts.MaxBody <= 0 {
		opts.MaxBody = 64 * 1024
	}
	stack := []func(http.Handler) http.Handler{
		RequestID,
		HeadToGet,
		SecurityHeaders(APIHeaders()),
		MaxBody(opts.MaxBody),
	}
	if opts.RateLimit.MaxRequests > 0 {
		if opts.RateLimit.Window <= 0 {
			opts.RateLimit.Window = time.Minute
		}
		stack = append(stack, NewRateLimiter(opts.RateLimit, opts.Exclude...).Middleware)
	}
	return stack
}
