package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is a single-process fixed-window counter used when Redis is
// not configured.
type MemoryLimiter struct {
	Limit  int
	Window time.Duration

	mu      sync.Mutex
	windows map[string]*window
}

type window struct {
	count   int
	resetAt time.Time
}

func NewMemoryLimiter(limit int, windowSize time.Duration) *MemoryLimiter {
	return &MemoryLimiter{Limit: limit, Window: windowSize, windows: make(map[string]*window)}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	w, ok := l.windows[key]
	if !ok || now.After(w.resetAt) {
		w = &window{resetAt: now.Add(l.windowSize())}
		l.windows[key] = w
	}
	w.count++
	return w.count <= l.limit(), nil
}

func (l *MemoryLimiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
	return nil
}

func (l *MemoryLimiter) limit() int {
	if l.Limit > 0 {
		return l.Limit
	}
	return 10
}

func (l *MemoryLimiter) windowSize() time.Duration {
	if l.Window > 0 {
		return l.Window
	}
	return time.Minute
}
