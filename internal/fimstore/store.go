package fimstore

import (
	"slices"
	"strings"
	"sync"
)

// Store is the ordered set of monitored entries keyed by path.
//
// Keys, Range and Get do not lock: callers hold the store lock via
// Lock/Unlock so that an enumeration and the reads that follow it see the
// same generation of the store. Put, Delete, Load, Len and Paths lock
// internally and must not be called while holding the lock.
type Store struct {
	mu      sync.Mutex
	keys    []string
	entries map[string]*Entry
}

func NewStore() *Store {
	return &Store{
		entries: make(map[string]*Entry),
	}
}

func (s *Store) Lock() {
	s.mu.Lock()
}

func (s *Store) Unlock() {
	s.mu.Unlock()
}

// Keys returns all keys in ascending order. Caller must hold the lock.
func (s *Store) Keys() []string {
	return slices.Clone(s.keys)
}

// Range returns the keys k with begin <= k <= end in ascending order.
// Caller must hold the lock.
func (s *Store) Range(begin, end string) []string {
	if strings.Compare(begin, end) > 0 {
		return nil
	}
	lo, _ := slices.BinarySearch(s.keys, begin)
	hi, found := slices.BinarySearch(s.keys, end)
	if found {
		hi++
	}
	if lo >= hi {
		return nil
	}
	return slices.Clone(s.keys[lo:hi])
}

// Get returns the entry stored under key. Caller must hold the lock.
func (s *Store) Get(key string) (*Entry, bool) {
	e, ok := s.entries[key]
	return e, ok
}

// Put inserts or replaces an entry and reports whether its checksum changed
func (s *Store) Put(e *Entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putLocked(e.Clone())
}

func (s *Store) putLocked(e *Entry) bool {
	prev, exists := s.entries[e.Path]
	s.entries[e.Path] = e
	if exists {
		return prev.Checksum != e.Checksum
	}
	pos, _ := slices.BinarySearch(s.keys, e.Path)
	s.keys = slices.Insert(s.keys, pos, e.Path)
	return true
}

// Delete removes key and reports whether it was present
func (s *Store) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; !ok {
		return false
	}
	delete(s.entries, key)
	if pos, found := slices.BinarySearch(s.keys, key); found {
		s.keys = slices.Delete(s.keys, pos, pos+1)
	}
	return true
}

// Load replaces the store contents
func (s *Store) Load(entries []*Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.keys = make([]string, 0, len(entries))
	s.entries = make(map[string]*Entry, len(entries))
	for _, e := range entries {
		s.putLocked(e.Clone())
	}
}

// Len returns the number of entries
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

// Paths returns a snapshot of all keys
func (s *Store) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.keys)
}

// Lookup returns a copy of the entry stored under key
func (s *Store) Lookup(key string) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}
