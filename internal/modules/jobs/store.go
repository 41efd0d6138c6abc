// Package jobs holds the locally known generation jobs. The store is the only
// authority for job status on the client; it is written by fetch-all (Replace),
// push completions (ApplyCompletion) and local deletion (Remove).
package jobs

import (
	"sync"

	"github.com/contentforge/studio/internal/models"
)

type entry struct {
	job *models.GenerationJob
	// pushed is set when a completion event patched the job and the last
	// fetched record for it was not yet terminal.
	pushed bool
}

// Store is safe for concurrent use. Jobs handed out by Snapshot and Get are
// shared, immutable values: every write installs a new *GenerationJob, so a
// job that was not written keeps its pointer identity.
type Store struct {
	mu      sync.RWMutex
	order   []string
	byID    map[string]*entry
	version uint64
}

func NewStore() *Store {
	return &Store{byID: make(map[string]*entry)}
}

// Replace installs a freshly fetched job list, keeping fetch order. A job the
// store already holds in a pushed terminal state keeps its patched fields when
// the fetched record is still non-terminal, so a slow fetch cannot roll back a
// completion that arrived while it was in flight.
func (s *Store) Replace(list []models.GenerationJob) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order := make([]string, 0, len(list))
	byID := make(map[string]*entry, len(list))
	for i := range list {
		fetched := list[i].Clone()
		if fetched.JobID == "" {
			continue
		}
		if _, dup := byID[fetched.JobID]; dup {
			continue
		}

		e := &entry{job: &fetched}
		if prev, ok := s.byID[fetched.JobID]; ok && prev.pushed && !fetched.Status.Terminal() {
			overlayCompletion(&fetched, prev.job)
			e.pushed = true
		}
		order = append(order, fetched.JobID)
		byID[fetched.JobID] = e
	}

	s.order = order
	s.byID = byID
	s.version++
}

// ApplyCompletion patches status, generated content, error and completion time
// of the job with the event's id. Other jobs are untouched. It returns false
// when the job is not known locally; the event is then dropped.
func (s *Store) ApplyCompletion(ev models.JobCompletedEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byID[ev.JobID]
	if !ok {
		return false
	}

	patched := e.job.Clone()
	patched.Status = ev.Status
	patched.GeneratedContent = clonePtr(ev.GeneratedContent)
	patched.Error = clonePtr(ev.Error)
	if ev.CompletedAt.IsZero() {
		patched.CompletedAt = nil
	} else {
		at := ev.CompletedAt
		patched.CompletedAt = &at
	}

	if sameCompletion(e.job, &patched) {
		e.pushed = true
		return true
	}
	s.byID[ev.JobID] = &entry{job: &patched, pushed: true}
	s.version++
	return true
}

// Remove drops a job from the local store. It reports whether the job existed.
func (s *Store) Remove(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[jobID]; !ok {
		return false
	}
	delete(s.byID, jobID)
	order := make([]string, 0, len(s.order))
	for _, id := range s.order {
		if id != jobID {
			order = append(order, id)
		}
	}
	s.order = order
	s.version++
	return true
}

// Get returns the job with the given id.
func (s *Store) Get(jobID string) (*models.GenerationJob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[jobID]
	if !ok {
		return nil, false
	}
	return e.job, true
}

// Snapshot returns the jobs in fetch order. Callers must not mutate them.
func (s *Store) Snapshot() []*models.GenerationJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.GenerationJob, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id].job)
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Version increases on every change to the store.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func overlayCompletion(dst, src *models.GenerationJob) {
	dst.Status = src.Status
	dst.GeneratedContent = clonePtr(src.GeneratedContent)
	dst.Error = clonePtr(src.Error)
	if src.CompletedAt != nil {
		at := *src.CompletedAt
		dst.CompletedAt = &at
	} else {
		dst.CompletedAt = nil
	}
}

func sameCompletion(a, b *models.GenerationJob) bool {
	if a.Status != b.Status || !equalPtr(a.GeneratedContent, b.GeneratedContent) || !equalPtr(a.Error, b.Error) {
		return false
	}
	switch {
	case a.CompletedAt == nil && b.CompletedAt == nil:
		return true
	case a.CompletedAt == nil || b.CompletedAt == nil:
		return false
	default:
		return a.CompletedAt.Equal(*b.CompletedAt)
	}
}

func clonePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
