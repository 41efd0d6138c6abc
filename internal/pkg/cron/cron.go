// Package cron runs named background jobs on fixed intervals.
package cron

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var ErrJobNotFound = errors.New("cron job not found")

// JobStatus represents the last known state of a job.
type JobStatus string

const (
	StatusIdle    JobStatus = "idle"
	StatusRunning JobStatus = "running"
	StatusSkipped JobStatus = "skipped"
	StatusFulfill JobStatus = "fulfill"
	StatusReject  JobStatus = "reject"
)

// Job defines a scheduled background task. When Enabled is set and returns
// false, the tick is skipped.
type Job struct {
	Name        string
	Description string
	Interval    time.Duration
	Enabled     func() bool
	Fn          func(ctx context.Context) error
}

type jobState struct {
	Job
	mu        sync.Mutex
	status    JobStatus
	message   string
	lastRunAt *time.Time
	nextRunAt time.Time
}

// ListItem is the serializable representation of a job for the API.
type ListItem struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Status      JobStatus  `json:"status"`
	Message     string     `json:"message,omitempty"`
	NextDate    *time.Time `json:"nextDate"`
	LastRunAt   *time.Time `json:"lastRunAt,omitempty"`
}

// Scheduler manages a collection of named jobs.
type Scheduler struct {
	mu   sync.RWMutex
	jobs map[string]*jobState
	now  func() time.Time
}

func New() *Scheduler {
	return &Scheduler{jobs: make(map[string]*jobState), now: time.Now}
}

// Register adds a job. Jobs with a non-positive interval only run on demand.
// Must be called before Start.
func (s *Scheduler) Register(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.Name] = &jobState{
		Job:       job,
		status:    StatusIdle,
		nextRunAt: s.now().Add(job.Interval),
	}
}

// Start launches every interval job in its own goroutine until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, js := range s.jobs {
		if js.Interval > 0 {
			go s.runLoop(ctx, js)
		}
	}
}

func (s *Scheduler) runLoop(ctx context.Context, js *jobState) {
	timer := time.NewTimer(js.Interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.execute(ctx, js)
			js.mu.Lock()
			js.nextRunAt = s.now().Add(js.Interval)
			js.mu.Unlock()
			timer.Reset(js.Interval)
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, js *jobState) {
	js.mu.Lock()
	if js.status == StatusRunning {
		js.mu.Unlock()
		return
	}
	if js.Enabled != nil && !js.Enabled() {
		js.status = StatusSkipped
		js.mu.Unlock()
		return
	}
	js.status = StatusRunning
	js.mu.Unlock()

	now := s.now()
	err := js.Fn(ctx)

	js.mu.Lock()
	js.lastRunAt = &now
	if err != nil {
		js.status = StatusReject
		js.message = err.Error()
	} else {
		js.status = StatusFulfill
		js.message = ""
	}
	js.mu.Unlock()
}

// Run triggers a job by name and waits for it to finish.
func (s *Scheduler) Run(ctx context.Context, name string) error {
	s.mu.RLock()
	js, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return ErrJobNotFound
	}
	s.execute(ctx, js)
	return nil
}

// List returns a summary of all registered jobs ordered by name.
func (s *Scheduler) List() []ListItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]ListItem, 0, len(s.jobs))
	for _, js := range s.jobs {
		js.mu.Lock()
		item := ListItem{
			Name:        js.Name,
			Description: js.Description,
			Status:      js.status,
			Message:     js.message,
			LastRunAt:   js.lastRunAt,
		}
		if js.Interval > 0 {
			next := js.nextRunAt
			item.NextDate = &next
		}
		items = append(items, item)
		js.mu.Unlock()
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items
}
