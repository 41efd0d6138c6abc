// Package library holds the locally known saved content entries. Only the
// sync coordinator writes to it, and only with server-confirmed data.
package library

import (
	"sync"

	"github.com/contentforge/studio/internal/models"
)

// Store is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	entries []models.SavedContent
	loaded  bool
	version uint64
}

func NewStore() *Store {
	return &Store{}
}

// Replace installs a freshly fetched library list, keeping backend order.
func (s *Store) Replace(list []models.SavedContent) {
	entries := make([]models.SavedContent, len(list))
	copy(entries, list)

	s.mu.Lock()
	s.entries = entries
	s.loaded = true
	s.version++
	s.mu.Unlock()
}

// Snapshot returns a copy of the entries in backend order.
func (s *Store) Snapshot() []models.SavedContent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.SavedContent, len(s.entries))
	copy(out, s.entries)
	return out
}

// Get returns the entry with the given storage id.
func (s *Store) Get(id string) (models.SavedContent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.ID == id {
			return e, true
		}
	}
	return models.SavedContent{}, false
}

// Loaded reports whether the store has ever been filled from the backend.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Version increases on every Replace.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Reset forgets every entry and the loaded flag, for a signed-out session.
func (s *Store) Reset() {
	s.mu.Lock()
	s.entries = nil
	s.loaded = false
	s.version++
	s.mu.Unlock()
}
