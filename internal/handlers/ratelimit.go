package handlers

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// retryAfterLimiter is implemented by limiters that can say when a rejected
// caller may try again.
type retryAfterLimiter interface {
	Take(key string) (bool, time.Duration)
}

func allowRequest(limiter RateLimiter, r *http.Request, scope string) (bool, time.Duration) {
	if limiter == nil {
		return true, 0
	}
	key := rateLimitKey(r, scope)
	if l, ok := limiter.(retryAfterLimiter); ok {
		return l.Take(key)
	}
	return limiter.Allow(key), 0
}

func setRetryAfter(w http.ResponseWriter, wait time.Duration) {
	if wait <= 0 {
		return
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
}

func rateLimitKey(r *http.Request, scope string) string {
	ip := clientIP(r)
	if scope == "" {
		return ip
	}
	return scope + ":" + ip
}

// clientIP prefers the first X-Forwarded-For hop so limits apply per client
// behind a reverse proxy.
func clientIP(r *http.Request) string {
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
