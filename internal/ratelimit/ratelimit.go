// Package ratelimit throttles engagement writes with a token bucket per caller.
package ratelimit

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/reelfeed/reelfeed/internal/httputil"
)

const (
	cleanupInterval = 5 * time.Minute
	idleTTL         = 10 * time.Minute
)

type visitor struct {
	tokens   float64
	lastSeen time.Time
}

// KeyFunc names the bucket a request draws from. An empty key falls back to the client IP.
type KeyFunc func(r *http.Request) string

type Limiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     float64
	burst    float64
	key      KeyFunc
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

type Option func(*Limiter)

func WithKey(fn KeyFunc) Option {
	return func(l *Limiter) { l.key = fn }
}

func NewLimiter(requestsPerSecond float64, burst int, opts ...Option) *Limiter {
	l := &Limiter{
		visitors: make(map[string]*visitor),
		rate:     requestsPerSecond,
		burst:    float64(burst),
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	go l.cleanup()
	return l
}

// Stop ends the background sweep. The limiter keeps working afterwards.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Limiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	v, exists := l.visitors[key]
	if !exists {
		l.visitors[key] = &visitor{tokens: l.burst - 1, lastSeen: now}
		return true
	}

	v.tokens = math.Min(l.burst, v.tokens+now.Sub(v.lastSeen).Seconds()*l.rate)
	v.lastSeen = now

	if v.tokens < 1 {
		return false
	}

	v.tokens--
	return true
}

// retryAfter is the whole number of seconds until one token is available again.
func (l *Limiter) retryAfter() int {
	if l.rate <= 0 {
		return 60
	}
	return int(math.Ceil(1 / l.rate))
}

func (l *Limiter) cleanup() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > idleTTL {
			delete(l.visitors, key)
		}
	}
}

func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := ""
		if l.key != nil {
			key = l.key(r)
		}
		if key == "" {
			key = "ip:" + ClientIP(r)
		}

		if !l.allow(key) {
			w.Header().Set("Retry-After", strconv.Itoa(l.retryAfter()))
			httputil.WriteError(w, http.StatusTooManyRequests, "too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ClientIP returns the first X-Forwarded-For hop, or the remote address without its port.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
