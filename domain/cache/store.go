package cache

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"admincore/pkg/errors"
	"admincore/pkg/observability"
	"admincore/pkg/sched"
)

// EventType classifies a cache notification
type EventType string

const (
	EventUpdated     EventType = "UPDATED"
	EventInvalidated EventType = "INVALIDATED"
	EventCleared     EventType = "CLEARED"
)

// Event describes a change to a cached entry
type Event struct {
	Type    EventType `json:"type"`
	Key     Key       `json:"key"`
	Version int64     `json:"version"`
}

// Subscriber receives cache events for a key it registered interest in
type Subscriber func(Event)

// Store is the keyed cache of server-derived data. Reads never block other
// reads; writes are atomic with respect to reads so a reader never observes
// a half-written entry. Subscribers are notified after the write lock is
// released.
type Store struct {
	mu         sync.RWMutex
	entries    map[string]*Entry
	subs       map[string]map[int]Subscriber
	allSubs    map[int]Subscriber
	nextSubID  int
	staleAfter time.Duration
	scheduler  sched.Scheduler
	metrics    *observability.Collector
	logger     *zap.Logger
}

// NewStore creates a cache store. staleAfter is the default freshness window
// applied to new entries.
func NewStore(staleAfter time.Duration, scheduler sched.Scheduler, metrics *observability.Collector, logger *zap.Logger) *Store {
	return &Store{
		entries:    make(map[string]*Entry),
		subs:       make(map[string]map[int]Subscriber),
		allSubs:    make(map[int]Subscriber),
		staleAfter: staleAfter,
		scheduler:  scheduler,
		metrics:    metrics,
		logger:     logger,
	}
}

// Get retrieves a deep copy of the entry for key, if present
func (s *Store) Get(key Key) (Entry, bool) {
	s.mu.RLock()
	entry, exists := s.entries[key.String()]
	var result Entry
	if exists {
		result = entry.clone()
	}
	s.mu.RUnlock()

	if !exists {
		if s.metrics != nil {
			s.metrics.CacheMisses.Inc()
		}
		return Entry{}, false
	}

	if s.metrics != nil {
		s.metrics.CacheHits.Inc()
	}
	return result, true
}

// Version returns the current version counter for key
func (s *Store) Version(key Key) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.entries[key.String()]
	if !exists {
		return 0, false
	}
	return entry.Version, true
}

// Set overwrites the entry's data and bumps its version. A new entry starts
// at version 1. The entry's invalidation mark is cleared: fresh data is by
// definition not stale.
func (s *Store) Set(key Key, data []Record) Entry {
	s.mu.Lock()

	id := key.String()
	entry, exists := s.entries[id]
	if !exists {
		entry = &Entry{Key: key, StaleAfter: s.staleAfter}
		s.entries[id] = entry
		if s.metrics != nil {
			s.metrics.CacheEntries.Inc()
		}
	}

	entry.Data = CloneRecords(data)
	entry.Version++
	entry.LastUpdated = s.scheduler.Now()
	entry.Invalidated = false

	event := Event{Type: EventUpdated, Key: key, Version: entry.Version}
	result := entry.clone()
	subscribers := s.subscribersLocked(id)
	s.mu.Unlock()

	s.notify(subscribers, event)
	return result
}

// Mutate atomically transforms the entry's data under the write lock and
// bumps the version. fn reports whether it actually changed anything; a
// transform that touched nothing leaves the entry and its version alone
// and emits no event. Mutate returns deep copies of the entry before and
// after the transform. If no entry exists for key there is nothing to
// mutate and ok is false; absent entries are rebuilt from the network,
// not speculated into existence.
func (s *Store) Mutate(key Key, fn func(data []Record) ([]Record, bool)) (before Entry, after Entry, ok bool) {
	s.mu.Lock()

	id := key.String()
	entry, exists := s.entries[id]
	if !exists {
		s.mu.Unlock()
		return Entry{}, Entry{}, false
	}

	before = entry.clone()
	next, changed := fn(CloneRecords(entry.Data))
	if !changed {
		s.mu.Unlock()
		return before, before, false
	}

	entry.Data = next
	entry.Version++
	entry.LastUpdated = s.scheduler.Now()

	event := Event{Type: EventUpdated, Key: key, Version: entry.Version}
	after = entry.clone()
	subscribers := s.subscribersLocked(id)
	s.mu.Unlock()

	s.notify(subscribers, event)
	return before, after, true
}

// SetIfVersion overwrites the entry's data only if its current version
// equals requiredVersion, bumping the version on success. This is the
// conflict-aware write that rollback depends on: if another mutation has
// advanced the entry since the snapshot, the write is discarded and a
// conflict diagnostic is returned instead of clobbering newer state.
func (s *Store) SetIfVersion(key Key, data []Record, requiredVersion int64) (Entry, error) {
	s.mu.Lock()

	id := key.String()
	entry, exists := s.entries[id]
	if !exists {
		s.mu.Unlock()
		return Entry{}, errors.NewNotFoundError("cache entry " + id)
	}

	if entry.Version != requiredVersion {
		current := entry.Version
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.ConflictsDiscarded.Inc()
		}
		return Entry{}, errors.NewConflictDiscardedError(id, requiredVersion, current)
	}

	entry.Data = CloneRecords(data)
	entry.Version++
	entry.LastUpdated = s.scheduler.Now()
	entry.Invalidated = false

	event := Event{Type: EventUpdated, Key: key, Version: entry.Version}
	result := entry.clone()
	subscribers := s.subscribersLocked(id)
	s.mu.Unlock()

	s.notify(subscribers, event)
	return result, nil
}

// Invalidate marks entries stale without deleting them; the next read is
// expected to trigger a refetch by the consumer. Invalidating an already
// stale entry is a no-op, so the operation is idempotent.
func (s *Store) Invalidate(keys ...Key) {
	type pending struct {
		subscribers []Subscriber
		event       Event
	}
	var notifications []pending

	s.mu.Lock()
	for _, key := range keys {
		id := key.String()
		entry, exists := s.entries[id]
		if !exists || entry.Invalidated {
			continue
		}
		entry.Invalidated = true
		notifications = append(notifications, pending{
			subscribers: s.subscribersLocked(id),
			event:       Event{Type: EventInvalidated, Key: key, Version: entry.Version},
		})
	}
	s.mu.Unlock()

	for _, n := range notifications {
		s.notify(n.subscribers, n.event)
	}
}

// Clear wipes every entry. Used on logout so no cached data survives the
// session that loaded it.
func (s *Store) Clear() {
	type pending struct {
		subscribers []Subscriber
		event       Event
	}
	var notifications []pending

	s.mu.Lock()
	for id, entry := range s.entries {
		notifications = append(notifications, pending{
			subscribers: s.subscribersLocked(id),
			event:       Event{Type: EventCleared, Key: entry.Key, Version: entry.Version},
		})
	}
	count := len(s.entries)
	s.entries = make(map[string]*Entry)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.CacheEntries.Sub(float64(count))
	}
	if s.logger != nil {
		s.logger.Info("Cache cleared", zap.Int("entries", count))
	}

	for _, n := range notifications {
		s.notify(n.subscribers, n.event)
	}
}

// Len reports the number of cached entries
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Entries returns deep copies of all cached entries, for inspection surfaces
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		entries = append(entries, entry.clone())
	}
	return entries
}

// Subscribe registers a callback for events on key and returns the
// unsubscribe handle. Callbacks fire synchronously on the mutating
// goroutine, after the store lock is released.
func (s *Store) Subscribe(key Key, fn Subscriber) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := key.String()
	if s.subs[id] == nil {
		s.subs[id] = make(map[int]Subscriber)
	}
	s.nextSubID++
	subID := s.nextSubID
	s.subs[id][subID] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if subscribers, exists := s.subs[id]; exists {
			delete(subscribers, subID)
			if len(subscribers) == 0 {
				delete(s.subs, id)
			}
		}
	}
}

// SubscribeAll registers a callback for events on every key. Used by
// inspection surfaces that mirror the whole cache.
func (s *Store) SubscribeAll(fn Subscriber) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSubID++
	subID := s.nextSubID
	s.allSubs[subID] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.allSubs, subID)
	}
}

// subscribersLocked snapshots the subscriber list for a key, including
// store-wide subscribers; callers must hold at least the read lock
func (s *Store) subscribersLocked(id string) []Subscriber {
	subscribers := s.subs[id]
	if len(subscribers) == 0 && len(s.allSubs) == 0 {
		return nil
	}
	snapshot := make([]Subscriber, 0, len(subscribers)+len(s.allSubs))
	for _, fn := range subscribers {
		snapshot = append(snapshot, fn)
	}
	for _, fn := range s.allSubs {
		snapshot = append(snapshot, fn)
	}
	return snapshot
}

func (s *Store) notify(subscribers []Subscriber, event Event) {
	for _, fn := range subscribers {
		fn(event)
	}
}
