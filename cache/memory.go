package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value []byte
	// deadline zero means no expiry
	deadline time.Time
}

// MemoryStore implements [Store] with an in-process map. It exists for tests
// and single-node tooling; expired entries are dropped on access, so memory is
// reclaimed lazily.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore returns an empty store on the wall clock.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// SetClock replaces the store's clock. Tests use this to simulate expiry
// without sleeping. A nil now is ignored.
func (s *MemoryStore) SetClock(now func() time.Time) {
	if now == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// live must be called with s.mu held.
func (s *MemoryStore) live(key string) (memoryEntry, bool) {
	entry, ok := s.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !entry.deadline.IsZero() && !s.now().Before(entry.deadline) {
		delete(s.entries, key)
		return memoryEntry{}, false
	}

	return entry, true
}

func (s *MemoryStore) deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(ttl)
}

// SetIfAbsent writes only when key has no live value.
func (s *MemoryStore) SetIfAbsent(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.live(key); ok {
		return false, nil
	}

	s.entries[key] = memoryEntry{value: cloneValue(value), deadline: s.deadline(ttl)}
	return true, nil
}

// Get returns the live value under key, or ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.live(key)
	if !ok {
		return nil, ErrNotFound
	}

	return cloneValue(entry.value), nil
}

// Set writes value under key, replacing any existing value.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = memoryEntry{value: cloneValue(value), deadline: s.deadline(ttl)}
	return nil
}

// Delete removes key. Absent keys are not an error.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// Len reports the number of entries still held, counting expired entries not
// yet dropped. Tests use it to watch cleanup behavior.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}

func cloneValue(value []byte) []byte {
	if value == nil {
		return nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out
}
