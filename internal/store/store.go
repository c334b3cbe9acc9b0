// Package store is the client-side task cache.
//
// Entries are keyed by logical identity (TasksKey is "the task list"). Every
// read hands out a deep copy, and every mutation notifies subscribers so the
// board can re-render. A single mutex serializes mutations, which gives the
// single-writer discipline the move coordinator relies on.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nibzard/taskboard-go/internal/task"
)

// Key identifies a cache entry.
type Key string

// TasksKey is the entry holding the full task list.
const TasksKey Key = "tasks"

// Loader fetches the authoritative value for a key.
type Loader func(ctx context.Context) ([]task.Task, error)

// EventKind describes what happened to an entry.
type EventKind string

const (
	EventWritten     EventKind = "written"
	EventRestored    EventKind = "restored"
	EventInvalidated EventKind = "invalidated"
	EventFetched     EventKind = "fetched"
	EventFetchFailed EventKind = "fetch_failed"
)

// Event is delivered to subscribers after an entry changes. Delivery is
// best-effort: a slow subscriber sees only the latest pending event, and
// should re-read the store rather than rely on every event.
type Event struct {
	Key     Key
	Kind    EventKind
	Version uint64
	Err     error
}

// Snapshot is an immutable copy of an entry taken at a point in time.
type Snapshot struct {
	key     Key
	tasks   []task.Task
	present bool
}

// Key returns the key the snapshot was taken from.
func (s Snapshot) Key() Key { return s.key }

// Present reports whether the entry existed when the snapshot was taken.
func (s Snapshot) Present() bool { return s.present }

// Tasks returns a deep copy of the captured tasks.
func (s Snapshot) Tasks() []task.Task { return task.CloneAll(s.tasks) }

type entry struct {
	tasks     []task.Task
	stale     bool
	version   uint64
	fetchedAt time.Time
}

// Store is a concurrency-safe keyed cache of task lists.
type Store struct {
	mu      sync.RWMutex
	entries map[Key]*entry
	loaders map[Key]Loader
	version uint64

	subMu sync.Mutex
	subs  map[chan Event]struct{}

	now func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		entries: make(map[Key]*entry),
		loaders: make(map[Key]Loader),
		subs:    make(map[chan Event]struct{}),
		now:     time.Now,
	}
}

// Register sets the loader used by Fetch and Refresh for key.
func (s *Store) Register(key Key, loader Loader) {
	s.mu.Lock()
	s.loaders[key] = loader
	s.mu.Unlock()
}

// Read returns a copy of the current value. ok is false when the key has
// never been written.
func (s *Store) Read(key Key) ([]task.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	return task.CloneAll(e.tasks), true
}

// Write replaces the value for key and clears its stale flag.
func (s *Store) Write(key Key, tasks []task.Task) {
	s.mu.Lock()
	v := s.putLocked(key, tasks)
	s.mu.Unlock()
	s.publish(Event{Key: key, Kind: EventWritten, Version: v})
}

// Update applies fn to the current value under the store lock, writes the
// result and returns the new version. fn receives a copy, or nil when the key
// is absent.
func (s *Store) Update(key Key, fn func([]task.Task) []task.Task) uint64 {
	s.mu.Lock()
	var current []task.Task
	if e, ok := s.entries[key]; ok {
		current = task.CloneAll(e.tasks)
	}
	v := s.putLocked(key, fn(current))
	s.mu.Unlock()
	s.publish(Event{Key: key, Kind: EventWritten, Version: v})
	return v
}

// Snapshot captures the value for key, including its absence.
func (s *Store) Snapshot(key Key) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return Snapshot{key: key}
	}
	return Snapshot{key: key, tasks: task.CloneAll(e.tasks), present: true}
}

// Restore overwrites key with a previously taken snapshot. Restoring a
// snapshot of an absent entry removes the entry.
func (s *Store) Restore(key Key, snap Snapshot) {
	s.mu.Lock()
	var v uint64
	if snap.present {
		v = s.putLocked(key, snap.tasks)
	} else {
		s.version++
		v = s.version
		delete(s.entries, key)
	}
	s.mu.Unlock()
	s.publish(Event{Key: key, Kind: EventRestored, Version: v})
}

// CompareAndRestore restores snap only if key is still at version, i.e. no
// other mutation has landed since the caller's own write. It reports whether
// the restore happened.
func (s *Store) CompareAndRestore(key Key, snap Snapshot, version uint64) bool {
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok || e.version != version {
		s.mu.Unlock()
		return false
	}
	var v uint64
	if snap.present {
		v = s.putLocked(key, snap.tasks)
	} else {
		s.version++
		v = s.version
		delete(s.entries, key)
	}
	s.mu.Unlock()
	s.publish(Event{Key: key, Kind: EventRestored, Version: v})
	return true
}

// Invalidate marks key stale so the next Fetch reloads it.
func (s *Store) Invalidate(key Key) {
	s.mu.Lock()
	v := s.version
	if e, ok := s.entries[key]; ok {
		e.stale = true
		v = e.version
	}
	s.mu.Unlock()
	s.publish(Event{Key: key, Kind: EventInvalidated, Version: v})
}

// Stale reports whether key is absent or has been invalidated.
func (s *Store) Stale(key Key) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	return !ok || e.stale
}

// Version returns the version of key's last local mutation, or 0.
func (s *Store) Version(key Key) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.entries[key]; ok {
		return e.version
	}
	return 0
}

// FetchedAt returns when key was last loaded from its loader.
func (s *Store) FetchedAt(key Key) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.entries[key]; ok {
		return e.fetchedAt
	}
	return time.Time{}
}

// Fetch returns the cached value when it is fresh and loads it otherwise.
func (s *Store) Fetch(ctx context.Context, key Key) ([]task.Task, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	if ok && !e.stale {
		tasks := task.CloneAll(e.tasks)
		s.mu.RUnlock()
		return tasks, nil
	}
	s.mu.RUnlock()
	return s.Refresh(ctx, key)
}

// Refresh loads key from its loader regardless of freshness.
//
// If a local mutation lands while the load is in flight, the loaded value is
// discarded and the entry is left stale: the mutation's owner is responsible
// for the follow-up refresh, and overwriting it here would briefly undo an
// optimistic update.
func (s *Store) Refresh(ctx context.Context, key Key) ([]task.Task, error) {
	s.mu.RLock()
	loader, ok := s.loaders[key]
	var startVersion uint64
	if e, exists := s.entries[key]; exists {
		startVersion = e.version
	}
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no loader registered for %q", key)
	}

	tasks, err := loader(ctx)
	if err != nil {
		s.publish(Event{Key: key, Kind: EventFetchFailed, Err: err})
		return nil, fmt.Errorf("load %s: %w", key, err)
	}

	s.mu.Lock()
	var current uint64
	if e, exists := s.entries[key]; exists {
		current = e.version
	}
	if current != startVersion {
		if e, exists := s.entries[key]; exists {
			e.stale = true
		}
		s.mu.Unlock()
		return task.CloneAll(tasks), nil
	}
	v := s.putLocked(key, tasks)
	s.entries[key].fetchedAt = s.now()
	s.mu.Unlock()

	s.publish(Event{Key: key, Kind: EventFetched, Version: v})
	return task.CloneAll(tasks), nil
}

// putLocked stores a copy of tasks. s.mu must be held.
func (s *Store) putLocked(key Key, tasks []task.Task) uint64 {
	s.version++
	e, ok := s.entries[key]
	if !ok {
		e = &entry{}
		s.entries[key] = e
	}
	e.tasks = task.CloneAll(tasks)
	if e.tasks == nil {
		e.tasks = []task.Task{}
	}
	e.stale = false
	e.version = s.version
	return e.version
}

// Subscribe returns a channel of change events and a function that
// unsubscribes and closes it.
func (s *Store) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 1)
	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, ch)
			close(ch)
			s.subMu.Unlock()
		})
	}
	return ch, cancel
}

func (s *Store) publish(ev Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- ev:
			continue
		default:
		}
		// Drop the stale pending event and keep the newest one.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ev:
		default:
		}
	}
}
