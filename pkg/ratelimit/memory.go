package ratelimit

import (
	"strings"
	"sync"
	"time"
)

// entry is one in-process counter window. The counter and its reset time are
// only ever read or written together under the store mutex.
type entry struct {
	count     int
	first     time.Time
	resetTime time.Time
}

// memoryStore is the process-local fallback backend. State is not shared
// across instances; it must not be the sole limiting mechanism in a
// multi-instance deployment.
type memoryStore struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: make(map[string]*entry)}
}

func (s *memoryStore) check(now time.Time, key string, policy Policy) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || now.Sub(e.first) > policy.Window {
		// Fresh window. Stale state is never incremented.
		reset := now.Add(policy.Window)
		s.entries[key] = &entry{count: 1, first: now, resetTime: reset}
		return Result{
			Allowed:   true,
			Limit:     policy.Limit,
			Remaining: policy.Limit - 1,
			ResetTime: reset,
			Source:    SourceMemory,
		}
	}

	if e.count >= policy.Limit {
		retry := policy.Window - now.Sub(e.first)
		if retry < 0 {
			retry = 0
		}
		return Result{
			Allowed:    false,
			Limit:      policy.Limit,
			Remaining:  0,
			RetryAfter: retry,
			ResetTime:  e.resetTime,
			Source:     SourceMemory,
		}
	}

	e.count++
	remaining := policy.Limit - e.count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   true,
		Limit:     policy.Limit,
		Remaining: remaining,
		ResetTime: e.resetTime,
		Source:    SourceMemory,
	}
}

func (s *memoryStore) isLimited(now time.Time, key string, policy Policy) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || now.Sub(e.first) > policy.Window {
		return false
	}
	return e.count >= policy.Limit
}

func (s *memoryStore) remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

func (s *memoryStore) resetPrefix(prefix string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			delete(s.entries, key)
		}
	}
}

func (s *memoryStore) sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	swept := 0
	for key, e := range s.entries {
		if now.After(e.resetTime) {
			delete(s.entries, key)
			swept++
		}
	}
	return swept
}

func (s *memoryStore) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*entry)
}
