// Package cache provides the in-process memo used for ledger projections.
package cache

import (
	"sync"
	"time"

	applog "finboard/internal/log"
)

// Cleaner is a cache that can drop its expired entries.
type Cleaner interface {
	CleanExpired() int
}

// Manager sweeps registered caches on a fixed interval.
type Manager struct {
	logger   *applog.Logger
	mu       sync.Mutex
	cleaners []Cleaner
	stop     chan struct{}
	done     chan struct{}
}

func NewManager(logger *applog.Logger) *Manager {
	if logger == nil {
		logger = applog.Discard()
	}
	return &Manager{logger: logger.WithComponent(applog.ComponentCache)}
}

func (m *Manager) Register(c Cleaner) {
	m.mu.Lock()
	m.cleaners = append(m.cleaners, c)
	m.mu.Unlock()
}

// CleanNow sweeps every registered cache once and returns the entries removed.
func (m *Manager) CleanNow() int {
	m.mu.Lock()
	cleaners := append([]Cleaner(nil), m.cleaners...)
	m.mu.Unlock()

	removed := 0
	for _, c := range cleaners {
		removed += c.CleanExpired()
	}
	return removed
}

// StartCleanup runs CleanNow every interval until Stop. Starting twice is a no-op.
func (m *Manager) StartCleanup(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stop != nil {
		return
	}
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.loop(interval, m.stop, m.done)
}

func (m *Manager) loop(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := m.CleanNow(); n > 0 {
				m.logger.Debug("Expired cache entries removed", "entries_removed", n)
			}
		case <-stop:
			return
		}
	}
}

// Stop ends the cleanup loop and waits for it. It is safe to call more than once.
func (m *Manager) Stop() {
	m.mu.Lock()
	stop, done := m.stop, m.done
	m.stop, m.done = nil, nil
	m.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}
