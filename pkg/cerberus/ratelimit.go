package cerberus

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LoginLimiter throttles login redirects per client address, so a
// misbehaving page stuck in a redirect loop cannot hammer the hub's
// authorization endpoint. Each address gets its own token bucket.
type LoginLimiter struct {
	perSecond rate.Limit
	burst     int

	limiters map[string]*loginLimiterEntry
	mu       sync.Mutex

	cleanupInterval time.Duration
	cleanupStop     chan struct{}
	cleanupDone     chan struct{}
}

type loginLimiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewLoginLimiter creates a limiter allowing perSecond sustained
// redirects with the given burst, per client address.
func NewLoginLimiter(perSecond float64, burst int) *LoginLimiter {
	l := &LoginLimiter{
		perSecond:       rate.Limit(perSecond),
		burst:           burst,
		limiters:        make(map[string]*loginLimiterEntry),
		cleanupInterval: 5 * time.Minute,
		cleanupStop:     make(chan struct{}),
		cleanupDone:     make(chan struct{}),
	}
	go l.cleanup()
	return l
}

// Allow reports whether this request may be redirected to login.
func (l *LoginLimiter) Allow(r *http.Request) bool {
	return l.allowKey(clientAddr(r))
}

func (l *LoginLimiter) allowKey(key string) bool {
	l.mu.Lock()
	entry, ok := l.limiters[key]
	if !ok {
		entry = &loginLimiterEntry{limiter: rate.NewLimiter(l.perSecond, l.burst)}
		l.limiters[key] = entry
	}
	entry.lastAccess = time.Now()
	l.mu.Unlock()

	return entry.limiter.Allow()
}

// cleanup drops buckets for addresses that have gone quiet.
func (l *LoginLimiter) cleanup() {
	defer close(l.cleanupDone)

	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			idleThreshold := time.Now().Add(-2 * l.cleanupInterval)
			l.mu.Lock()
			for key, entry := range l.limiters {
				if entry.lastAccess.Before(idleThreshold) {
					delete(l.limiters, key)
				}
			}
			l.mu.Unlock()

		case <-l.cleanupStop:
			return
		}
	}
}

// Close stops the cleanup goroutine.
func (l *LoginLimiter) Close() error {
	close(l.cleanupStop)
	<-l.cleanupDone
	return nil
}

// clientAddr extracts the client IP, preferring proxy headers.
func clientAddr(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
