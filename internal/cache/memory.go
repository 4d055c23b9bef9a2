package cache

import (
	"context"
	"sync"
	"time"

	"github.com/mind-engage/mindengage-gradebook/internal/gradebook"
)

type entry struct {
	rows    []gradebook.StudentGradeRow
	expires time.Time
}

type Memory struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]entry
}

// NewMemory keeps rows for ttl; ttl <= 0 keeps them until invalidated.
func NewMemory(ttl time.Duration, now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{ttl: ttl, now: now, entries: map[string]entry{}}
}

func (m *Memory) Get(_ context.Context, key string) ([]gradebook.StudentGradeRow, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, false
	}
	return e.rows, true
}

func (m *Memory) Set(_ context.Context, key string, rows []gradebook.StudentGradeRow) {
	e := entry{rows: rows}
	if m.ttl > 0 {
		e.expires = m.now().Add(m.ttl)
	}
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
}

func (m *Memory) Invalidate(_ context.Context, key string) {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
}
