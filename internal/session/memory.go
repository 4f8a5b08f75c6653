package session

import (
	"context"
	"sync"
	"time"

	"github.com/joseph-ayodele/guard-registry/internal/identity"
)

type entry struct {
	rec     identity.Record
	expires time.Time
}

// Memory is a process-local Store. Expired entries are dropped on access, and
// Put sweeps the whole map at most once per TTL so abandoned senders do not accumulate.
type Memory struct {
	mu        sync.Mutex
	ttl       time.Duration
	now       func() time.Time
	nextSweep time.Time
	entries   map[string]entry
}

func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{ttl: ttl, now: time.Now, entries: make(map[string]entry)}
}

// WithClock swaps the time source, for tests.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) Put(_ context.Context, sender string, rec identity.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if !now.Before(m.nextSweep) {
		m.sweep(now)
		m.nextSweep = now.Add(m.ttl)
	}
	m.entries[sender] = entry{rec: rec, expires: now.Add(m.ttl)}
	return nil
}

func (m *Memory) Get(_ context.Context, sender string) (identity.Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(sender)
	return e.rec, ok, nil
}

func (m *Memory) Take(_ context.Context, sender string) (identity.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(sender)
	if !ok {
		return identity.Record{}, ErrNoPending
	}
	delete(m.entries, sender)
	return e.rec, nil
}

func (m *Memory) Delete(_ context.Context, sender string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, sender)
	return nil
}

// live must be called with mu held.
func (m *Memory) live(sender string) (entry, bool) {
	e, ok := m.entries[sender]
	if !ok {
		return entry{}, false
	}
	if !m.now().Before(e.expires) {
		delete(m.entries, sender)
		return entry{}, false
	}
	return e, true
}

// sweep must be called with mu held.
func (m *Memory) sweep(now time.Time) {
	for sender, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, sender)
		}
	}
}
