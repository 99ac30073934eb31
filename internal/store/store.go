package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fieldsync/internal/entry"
	"fieldsync/internal/logging"
	"fieldsync/internal/persist"
	"fieldsync/internal/services"
)

var (
	// ErrNotFound reports an update against an unknown id.
	ErrNotFound = fmt.Errorf("entry %w", services.ErrNotFound)
	// ErrDuplicateID reports a path change whose derived id belongs to another entry.
	ErrDuplicateID = errors.New("entry id already exists")
)

// Observer receives store-level signals, typically a metrics.Recorder.
type Observer interface {
	EntriesChanged(count int)
	PersistFailed()
}

// Option customizes a Store.
type Option func(*Store)

// WithObserver attaches an Observer.
func WithObserver(o Observer) Option {
	return func(s *Store) { s.observer = o }
}

// WithClock overrides the time source used for UpdatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is the single owner of sync entries.
type Store struct {
	mu       sync.Mutex
	entries  []entry.Entry
	adapter  persist.Adapter
	logger   *slog.Logger
	observer Observer
	now      func() time.Time
}

// Open loads the persisted snapshot through adapter. A load failure is logged
// and the store starts empty.
func Open(ctx context.Context, adapter persist.Adapter, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		adapter: adapter,
		logger:  logging.NewComponentLogger(logger, "store"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if adapter == nil {
		s.adapter = persist.NewMemory()
	}

	loaded, err := s.adapter.Load(ctx)
	if err != nil {
		logging.WarnWithContext(s.logger, "entry snapshot unreadable; starting empty", "store_load_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the state directory or run 'fieldsync entries clear'"),
			logging.String(logging.FieldImpact, "previous sync progress is ignored for this run"),
		)
		loaded = nil
	}

	recovered := 0
	s.entries = make([]entry.Entry, 0, len(loaded))
	for _, e := range loaded {
		fixed, changed := entry.Recover(e)
		if changed {
			recovered++
		}
		s.entries = append(s.entries, fixed)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if recovered > 0 {
		s.logger.Info("recovered interrupted entries", logging.Int("count", recovered))
		s.persistLocked(ctx)
	} else if s.observer != nil {
		s.observer.EntriesChanged(len(s.entries))
	}
	return s
}

// Add creates an entry for mediaPath unless one with the derived id exists.
// The second result reports whether an entry was created.
func (s *Store) Add(ctx context.Context, mediaPath string, params entry.Params) (entry.Entry, bool, []entry.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := entry.New(mediaPath, params)
	if created.ID == "" || s.indexLocked(created.ID) >= 0 {
		return entry.Entry{}, false, s.snapshotLocked()
	}
	created.UpdatedAt = s.now().UTC()
	s.entries = append(s.entries, created)
	s.persistLocked(ctx)
	return created.Clone(), true, s.snapshotLocked()
}

// Update merges patch into the entry matching id. The bool result reports
// whether a reset-triggering change happened.
func (s *Store) Update(ctx context.Context, id string, patch entry.Patch) (entry.Entry, bool, []entry.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return entry.Entry{}, false, s.snapshotLocked(), fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	updated, changed := entry.Apply(s.entries[idx], patch)
	if !changed {
		return updated, false, s.snapshotLocked(), nil
	}
	if updated.ID != id {
		if other := s.indexLocked(updated.ID); other >= 0 && other != idx {
			return s.entries[idx].Clone(), false, s.snapshotLocked(), fmt.Errorf("%w: %s", ErrDuplicateID, updated.ID)
		}
	}
	updated.UpdatedAt = s.now().UTC()
	s.entries[idx] = updated
	s.persistLocked(ctx)
	return updated.Clone(), true, s.snapshotLocked(), nil
}

// Modify replaces the entry matching id with fn applied to a fresh copy of it.
// It is the write-back path for coordinators; fn must not change the id.
func (s *Store) Modify(ctx context.Context, id string, fn func(entry.Entry) entry.Entry) (entry.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return entry.Entry{}, false
	}
	next := fn(s.entries[idx].Clone())
	next.ID = id
	next.UpdatedAt = s.now().UTC()
	s.entries[idx] = next
	s.persistLocked(ctx)
	return next.Clone(), true
}

// Remove deletes the entry matching id; absent ids are a no-op.
func (s *Store) Remove(ctx context.Context, id string) []entry.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return s.snapshotLocked()
	}
	s.entries = append(s.entries[:idx], s.entries[idx+1:]...)
	s.persistLocked(ctx)
	return s.snapshotLocked()
}

// PruneToKnownPaths removes every entry whose media path is not in paths and
// returns the remaining collection plus the removed ids.
func (s *Store) PruneToKnownPaths(ctx context.Context, paths []string) ([]entry.Entry, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	known := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		known[p] = struct{}{}
	}
	kept := s.entries[:0]
	var removed []string
	for _, e := range s.entries {
		if _, ok := known[e.MediaPath]; ok {
			kept = append(kept, e)
			continue
		}
		removed = append(removed, e.ID)
	}
	s.entries = kept
	if len(removed) > 0 {
		s.persistLocked(ctx)
	}
	return s.snapshotLocked(), removed
}

// ClearAll empties the store.
func (s *Store) ClearAll(ctx context.Context) []entry.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.persistLocked(ctx)
	return s.snapshotLocked()
}

// Get returns a copy of the entry matching id.
func (s *Store) Get(id string) (entry.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return entry.Entry{}, false
	}
	return s.entries[idx].Clone(), true
}

// Entries returns a copy of the full collection in insertion order.
func (s *Store) Entries() []entry.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Len returns the number of tracked entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close releases the adapter.
func (s *Store) Close() error {
	if s == nil || s.adapter == nil {
		return nil
	}
	return s.adapter.Close()
}

func (s *Store) indexLocked(id string) int {
	if id == "" {
		return -1
	}
	for i, e := range s.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) snapshotLocked() []entry.Entry {
	out := make([]entry.Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Clone()
	}
	return out
}

func (s *Store) persistLocked(ctx context.Context) {
	if s.observer != nil {
		s.observer.EntriesChanged(len(s.entries))
	}
	if err := s.adapter.Save(context.WithoutCancel(ctx), s.snapshotLocked()); err != nil {
		if s.observer != nil {
			s.observer.PersistFailed()
		}
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "entry snapshot save failed", "store_save_failed",
			logging.Error(err),
			logging.Alert("persist_failed"),
			logging.String(logging.FieldErrorHint, "check disk space and permissions on the state directory"),
			logging.String(logging.FieldImpact, "progress since the last successful save is lost if the process exits"),
		)
	}
}
