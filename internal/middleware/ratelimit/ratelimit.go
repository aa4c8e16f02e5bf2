// Package ratelimit throttles clients with a fixed one-minute window.
package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const (
	window             = time.Minute
	defaultPerMinute   = 60
	defaultSweepEvery  = 5 * time.Minute
	defaultIdleTimeout = 10 * time.Minute
)

// Config tunes a Limiter. Zero fields take defaults.
type Config struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration
	IdleTimeout       time.Duration
}

// Stats counts rejected requests and tracked clients.
type Stats struct {
	Limited int64
	Clients int
}

type bucket struct {
	opened time.Time
	seen   time.Time
	count  int
}

// Limiter counts requests per client key within a window that opens on the
// client's first request.
type Limiter struct {
	perMinute int
	idle      time.Duration
	now       func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
	limited atomic.Int64

	stop     chan struct{}
	stopOnce sync.Once
}

// NewLimiter starts a limiter with a background sweep of idle clients.
// Call Stop to end the sweep.
func NewLimiter(cfg Config) *Limiter {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = defaultPerMinute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = defaultSweepEvery
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	rl := &Limiter{
		perMinute: cfg.RequestsPerMinute,
		idle:      cfg.IdleTimeout,
		now:       time.Now,
		buckets:   make(map[string]*bucket),
		stop:      make(chan struct{}),
	}
	go rl.sweepEvery(cfg.CleanupInterval)
	return rl
}

// Allow records a request from key. When the request is over the limit it
// returns false and the time until the window reopens.
func (rl *Limiter) Allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[key]
	if !ok || now.Sub(b.opened) >= window {
		rl.buckets[key] = &bucket{opened: now, seen: now, count: 1}
		return true, 0
	}
	b.seen = now
	b.count++
	if b.count <= rl.perMinute {
		return true, 0
	}
	rl.limited.Add(1)
	return false, max(window-now.Sub(b.opened), 0)
}

func (rl *Limiter) sweepEvery(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			rl.sweep()
		case <-rl.stop:
			return
		}
	}
}

// sweep forgets clients idle longer than the idle timeout.
func (rl *Limiter) sweep() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.idle)
	n := 0
	for key, b := range rl.buckets {
		if b.seen.Before(cutoff) {
			delete(rl.buckets, key)
			n++
		}
	}
	return n
}

func (rl *Limiter) Stats() Stats {
	rl.mu.Lock()
	clients := len(rl.buckets)
	rl.mu.Unlock()
	return Stats{Limited: rl.limited.Load(), Clients: clients}
}

// Stop ends the background sweep. It is safe to call more than once.
func (rl *Limiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// MutatingOnly selects POST, PUT, PATCH and DELETE requests.
func MutatingOnly(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// Middleware limits the requests picked by applies, or all requests when
// applies is nil. Rejected requests get Retry-After and are passed to
// onLimit, or answered with a plain 429 when onLimit is nil.
func (rl *Limiter) Middleware(key func(*http.Request) string, applies func(*http.Request) bool, onLimit http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if applies != nil && !applies(r) {
				next.ServeHTTP(w, r)
				return
			}
			ok, wait := rl.Allow(key(r))
			if ok {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Retry-After", strconv.Itoa(int(wait/time.Second)+1))
			if onLimit == nil {
				http.Error(w, "Too many requests, try again later.", http.StatusTooManyRequests)
				return
			}
			onLimit(w, r)
		})
	}
}
