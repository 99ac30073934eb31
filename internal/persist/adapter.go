package persist

import (
	"context"
	"errors"
	"sync"

	"fieldsync/internal/entry"
)

// ErrLocked reports that another process holds the state lock.
var ErrLocked = errors.New("state directory locked by another fieldsync process")

// Adapter loads and saves the full entry collection.
type Adapter interface {
	Load(ctx context.Context) ([]entry.Entry, error)
	Save(ctx context.Context, entries []entry.Entry) error
	Close() error
}

// Memory is an in-process Adapter. LoadErr and SaveErr, when set, are returned
// instead of touching the snapshot.
type Memory struct {
	mu       sync.Mutex
	snapshot []entry.Entry
	saves    int

	LoadErr error
	SaveErr error
}

// NewMemory returns a Memory adapter seeded with entries.
func NewMemory(seed ...entry.Entry) *Memory {
	return &Memory{snapshot: cloneEntries(seed)}
}

func (m *Memory) Load(context.Context) ([]entry.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	return cloneEntries(m.snapshot), nil
}

func (m *Memory) Save(_ context.Context, entries []entry.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.snapshot = cloneEntries(entries)
	m.saves++
	return nil
}

func (m *Memory) Close() error { return nil }

// Snapshot returns a copy of the last saved collection.
func (m *Memory) Snapshot() []entry.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneEntries(m.snapshot)
}

// Saves reports how many successful saves happened.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func cloneEntries(entries []entry.Entry) []entry.Entry {
	if entries == nil {
		return nil
	}
	out := make([]entry.Entry, len(entries))
	for i, e := range entries {
		out[i] = e.Clone()
	}
	return out
}
