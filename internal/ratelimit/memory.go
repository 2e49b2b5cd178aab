package ratelimit

import (
	"context"
	"sync"
	"time"
)

// clientBucket tracks the remaining request budget for one caller.
type clientBucket struct {
	remaining float64
	seen      time.Time
}

// MemoryLimiter is a per-process token bucket Limiter, keyed by whatever the
// middleware's key function produces (client ID for authenticated callers,
// remote IP otherwise). Each caller refills at perSec tokens per second up
// to a burst ceiling. Budgets are local to the process; deployments with
// several replicas should use RedisLimiter so the budget is shared.
type MemoryLimiter struct {
	perSec float64
	burst  float64

	mu      sync.Mutex
	clients map[string]*clientBucket

	stopOnce sync.Once
	done     chan struct{}
}

const (
	evictEvery = time.Minute
	evictAfter = 10 * time.Minute
)

// NewMemoryLimiter creates a limiter allowing perSec sustained requests per
// key with bursts up to burst. A background goroutine drops callers idle for
// evictAfter so the map stays bounded; Close stops it.
func NewMemoryLimiter(perSec float64, burst int) *MemoryLimiter {
	m := &MemoryLimiter{
		perSec:  perSec,
		burst:   float64(burst),
		clients: make(map[string]*clientBucket),
		done:    make(chan struct{}),
	}
	go m.evictLoop()
	return m
}

// Allow spends one token from key's budget and reports whether one was
// available. It never returns an error; the signature matches Limiter so
// the middleware can swap in the Redis implementation.
func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	b, ok := m.clients[key]
	if !ok {
		// Unknown caller starts with a full burst, minus this request.
		m.clients[key] = &clientBucket{remaining: m.burst - 1, seen: now}
		return true, nil
	}

	b.remaining += now.Sub(b.seen).Seconds() * m.perSec
	if b.remaining > m.burst {
		b.remaining = m.burst
	}
	b.seen = now

	if b.remaining < 1 {
		return false, nil
	}
	b.remaining--
	return true, nil
}

// Close stops the eviction goroutine. Safe to call more than once.
func (m *MemoryLimiter) Close() error {
	m.stopOnce.Do(func() { close(m.done) })
	return nil
}

func (m *MemoryLimiter) evictLoop() {
	ticker := time.NewTicker(evictEvery)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.evictIdle()
		}
	}
}

func (m *MemoryLimiter) evictIdle() {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-evictAfter)
	for key, b := range m.clients {
		if b.seen.Before(cutoff) {
			delete(m.clients, key)
		}
	}
}
