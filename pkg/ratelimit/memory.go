// Copyright 2024-2026 Aiku AI

package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	start time.Time
	count int
}

// Memory is an in-process fixed window limiter. Counters are lost on
// restart and are not shared between replicas.
type Memory struct {
	limit  int
	period time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*window
	lastGC  time.Time
}

func NewMemory(limit int, period time.Duration) *Memory {
	return &Memory{
		limit:   limit,
		period:  period,
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.gcLocked(now)

	w, ok := m.windows[key]
	if !ok || now.Sub(w.start) >= m.period {
		w = &window{start: now}
		m.windows[key] = w
	}
	w.count++
	return w.count <= m.limit, nil
}

// gcLocked drops expired windows at most once per period.
func (m *Memory) gcLocked(now time.Time) {
	if now.Sub(m.lastGC) < m.period {
		return
	}
	m.lastGC = now
	for key, w := range m.windows {
		if now.Sub(w.start) >= m.period {
			delete(m.windows, key)
		}
	}
}

func (m *Memory) Close() error {
	return nil
}
