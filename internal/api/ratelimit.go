package api

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// rateLimitSweepEvery bounds how often stale buckets are swept.
	rateLimitSweepEvery = 5 * time.Minute

	// rateLimitStaleAfter is how long an idle IP keeps its bucket.
	rateLimitStaleAfter = 10 * time.Minute
)

// rateLimiter tracks one token bucket per client IP. Buckets for idle
// IPs are swept inline from allow, so the map stays bounded without a
// background goroutine.
type rateLimiter struct {
	mu      sync.Mutex
	perIP   map[string]*ipBucket
	refill  rate.Limit
	burst   int
	sweptAt time.Time
}

// ipBucket pairs a limiter with the last time its IP was seen.
type ipBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newRateLimiter creates a per-IP limiter refilling at refillPerSec
// tokens per second with the given burst capacity.
func newRateLimiter(refillPerSec float64, burst int) *rateLimiter {
	return &rateLimiter{
		perIP:   make(map[string]*ipBucket),
		refill:  rate.Limit(refillPerSec),
		burst:   burst,
		sweptAt: time.Now(),
	}
}

// allow reports whether a request from ip may proceed, consuming one
// token when it does.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.sweep(now)

	b, ok := rl.perIP[ip]
	if !ok {
		b = &ipBucket{limiter: rate.NewLimiter(rl.refill, rl.burst)}
		rl.perIP[ip] = b
	}
	b.lastSeen = now
	return b.limiter.Allow()
}

// sweep drops buckets for IPs not seen within rateLimitStaleAfter.
// Caller holds rl.mu.
func (rl *rateLimiter) sweep(now time.Time) {
	if now.Sub(rl.sweptAt) <= rateLimitSweepEvery {
		return
	}
	for ip, b := range rl.perIP {
		if now.Sub(b.lastSeen) > rateLimitStaleAfter {
			delete(rl.perIP, ip)
		}
	}
	rl.sweptAt = now
}

// rateLimitMiddleware rejects requests from IPs that exhausted their
// token bucket with 429 and a Retry-After hint.
func rateLimitMiddleware(rl *rateLimiter, trustProxy bool, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r, trustProxy)
			if !rl.allow(ip) {
				logger.Warn("rate limit exceeded",
					"ip", ip,
					"path", r.URL.Path,
					"method", r.Method,
				)
				w.Header().Set("Retry-After", "1")
				WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many requests", logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the client IP used as the rate limiter key.
//
// With trustProxy, X-Real-IP is preferred over the first entry of
// X-Forwarded-For; header values must parse with net.ParseIP so
// arbitrary strings cannot become limiter keys. Without trustProxy only
// RemoteAddr is used.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			if ip := net.ParseIP(strings.TrimSpace(xri)); ip != nil {
				return ip.String()
			}
		}
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			raw := xff
			if first, _, ok := strings.Cut(xff, ","); ok {
				raw = first
			}
			if ip := net.ParseIP(strings.TrimSpace(raw)); ip != nil {
				return ip.String()
			}
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
