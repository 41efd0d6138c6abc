package syncer

import (
	"context"
	"time"

	"github.com/contentforge/studio/internal/models"
	"github.com/contentforge/studio/internal/modules/reconcile"
	"go.uber.org/zap"
)

// Snapshot is the display state handed to UIs.
type Snapshot struct {
	State        LoadState        `json:"state"`
	Error        string           `json:"error,omitempty"`
	LibraryError string           `json:"libraryError,omitempty"`
	LibraryStale bool             `json:"libraryStale"`
	Jobs         []reconcile.View `json:"jobs"`
	Unsaved      int              `json:"unsaved"`
	LastSync     *time.Time       `json:"lastSync,omitempty"`
}

// View derives the Merge View from the current stores. The saved-id cache is
// consulted only while no library data could be fetched.
func (c *Coordinator) View(ctx context.Context) Snapshot {
	jobList := c.jobs.Snapshot()
	entries := c.library.Snapshot()

	c.mu.RLock()
	snap := Snapshot{State: c.state}
	if c.jobsErr != nil {
		snap.Error = c.jobsErr.Error()
	}
	if c.libErr != nil {
		snap.LibraryError = c.libErr.Error()
		snap.LibraryStale = true
	}
	if !c.lastSync.IsZero() {
		at := c.lastSync
		snap.LastSync = &at
	}
	c.mu.RUnlock()

	snap.Jobs = reconcile.Merge(jobList, entries)
	snap.Unsaved = len(reconcile.Unsaved(jobList, entries))

	if c.hints != nil && !c.library.Loaded() && len(snap.Jobs) > 0 {
		hinted, err := c.hints.All(ctx, c.userID())
		if err != nil {
			c.logger.Warn("saved hint read failed", zap.Error(err))
		} else {
			reconcile.ApplyHints(snap.Jobs, hinted)
		}
	}
	return snap
}

// JobView returns the merged row for one job.
func (c *Coordinator) JobView(jobID string) (reconcile.View, bool) {
	job, ok := c.jobs.Get(jobID)
	if !ok {
		return reconcile.View{}, false
	}
	views := reconcile.Merge([]*models.GenerationJob{job}, c.library.Snapshot())
	return views[0], true
}
