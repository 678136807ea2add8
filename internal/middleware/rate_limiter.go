package middleware

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/loomdrop/backend/internal/config"
)

// RateLimiter controls how frequently a caller may perform an action.
type RateLimiter interface {
	Allow(key string) bool
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter keeps one token bucket per key (typically a client IP).
// Buckets idle for longer than ttl are swept at most once per ttl.
type IPRateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	limit     rate.Limit
	burst     int
	ttl       time.Duration
	nextSweep time.Time
	now       func() time.Time
}

// NewIPRateLimiter allows up to `requests` events per `window` for each key,
// plus a burst allowance.
func NewIPRateLimiter(requests int, window time.Duration, burst int, ttl time.Duration) *IPRateLimiter {
	if requests <= 0 {
		requests = 1
	}
	if window <= 0 {
		window = time.Second
	}
	if burst <= 0 {
		burst = 1
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &IPRateLimiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Every(window / time.Duration(requests)),
		burst:   burst,
		ttl:     ttl,
		now:     time.Now,
	}
}

// NewDownloadRateLimiter builds the limiter guarding the download endpoint.
func NewDownloadRateLimiter(cfg config.RateLimitConfig) *IPRateLimiter {
	return NewIPRateLimiter(cfg.Requests, cfg.Window, cfg.Burst, max(2*cfg.Window, 5*time.Minute))
}

// Allow reports whether key may proceed now, consuming a token if so.
func (l *IPRateLimiter) Allow(key string) bool {
	ok, _ := l.Take(key)
	return ok
}

// Take consumes a token for key. When none is available it reports how long
// the caller should wait before retrying and leaves the bucket untouched.
func (l *IPRateLimiter) Take(key string) (bool, time.Duration) {
	if key == "" {
		key = "unknown"
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.sweepLocked(now)

	reservation := b.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return false, 0
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (l *IPRateLimiter) sweepLocked(now time.Time) {
	if now.Before(l.nextSweep) {
		return
	}
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.ttl {
			delete(l.buckets, key)
		}
	}
	l.nextSweep = now.Add(l.ttl)
}

// WithNowFunc allows tests to override the time source.
func (l *IPRateLimiter) WithNowFunc(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}
