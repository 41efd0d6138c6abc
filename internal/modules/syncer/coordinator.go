// Package syncer owns every backend round-trip for jobs and library entries.
// Stores are only written with server-confirmed data: each mutation is
// followed by a re-fetch instead of an optimistic local update.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/contentforge/studio/internal/models"
	"github.com/contentforge/studio/internal/modules/jobs"
	"github.com/contentforge/studio/internal/modules/library"
	"github.com/contentforge/studio/internal/modules/reconcile"
	"github.com/contentforge/studio/internal/modules/savedhint"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

var (
	ErrNotFound           = errors.New("job not found")
	ErrNotCompleted       = errors.New("job has no completed content to save")
	ErrInvalidContentType = errors.New("invalid content type")
	ErrEmptyPrompt        = errors.New("prompt is required")
	ErrNotConfirmed       = errors.New("deleting a saved job removes its library entry and needs confirmation")
	ErrEmptyPatch         = errors.New("nothing to update")
)

// CascadeWarning is shown before a delete that also removes a library entry.
const CascadeWarning = "This job has been saved to your library. Deleting it permanently removes the library entry as well and cannot be undone."

// Backend is the subset of the backend client the coordinator uses.
type Backend interface {
	ListJobs(ctx context.Context) ([]models.GenerationJob, error)
	CreateJob(ctx context.Context, prompt string, contentType models.ContentType) (*models.CreateJobResult, error)
	SaveJobToLibrary(ctx context.Context, jobID, title string) (*models.SavedContent, error)
	ListLibrary(ctx context.Context, search string) ([]models.SavedContent, error)
	UpdateLibraryEntry(ctx context.Context, id string, patch models.ContentPatch) (*models.SavedContent, error)
	DeleteLibraryEntry(ctx context.Context, id string) (*models.DeleteResult, error)
}

// Notifier is told about changes so connected UIs can re-render.
type Notifier interface {
	ViewChanged(reason string)
	JobCompleted(ev models.JobCompletedEvent)
}

// LoadState describes the outcome of the fetch pair.
type LoadState string

const (
	StateIdle    LoadState = "idle"
	StateLoading LoadState = "loading"
	StateReady   LoadState = "ready"
	StateFailed  LoadState = "failed"
)

// Options wires a Coordinator. Hints, Notifier and UserID are optional.
type Options struct {
	Backend  Backend
	Jobs     *jobs.Store
	Library  *library.Store
	Hints    savedhint.Cache
	Notifier Notifier
	UserID   func() string
	Logger   *zap.Logger
	// BaseContext bounds refreshes started in the background.
	BaseContext context.Context
}

// Coordinator is safe for concurrent use.
type Coordinator struct {
	backend  Backend
	jobs     *jobs.Store
	library  *library.Store
	hints    savedhint.Cache
	notifier Notifier
	userID   func() string
	logger   *zap.Logger
	bg       context.Context

	flight singleflight.Group

	mu        sync.RWMutex
	state     LoadState
	jobsErr   error
	libErr    error
	lastSync  time.Time
	dismissed map[string]bool
}

func New(opts Options) *Coordinator {
	c := &Coordinator{
		backend:   opts.Backend,
		jobs:      opts.Jobs,
		library:   opts.Library,
		hints:     opts.Hints,
		notifier:  opts.Notifier,
		userID:    opts.UserID,
		logger:    opts.Logger,
		bg:        opts.BaseContext,
		state:     StateIdle,
		dismissed: make(map[string]bool),
	}
	if c.jobs == nil {
		c.jobs = jobs.NewStore()
	}
	if c.library == nil {
		c.library = library.NewStore()
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.bg == nil {
		c.bg = context.Background()
	}
	if c.userID == nil {
		c.userID = func() string { return "" }
	}
	return c
}

// SetNotifier replaces the change listener.
func (c *Coordinator) SetNotifier(n Notifier) {
	c.mu.Lock()
	c.notifier = n
	c.mu.Unlock()
}

// Jobs exposes the Job Store for the push listener.
func (c *Coordinator) Jobs() *jobs.Store { return c.jobs }

// State returns the current load state.
func (c *Coordinator) State() LoadState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Load performs the initial fetch pair. On any failure both stores stay empty
// and the state becomes failed; there is no retry.
func (c *Coordinator) Load(ctx context.Context) error {
	c.mu.Lock()
	c.state = StateLoading
	c.mu.Unlock()

	jobList, entries, jobsErr, libErr := c.fetchPair(ctx)

	c.mu.Lock()
	c.jobsErr, c.libErr = jobsErr, libErr
	if jobsErr != nil || libErr != nil {
		c.state = StateFailed
		c.lastSync = time.Time{}
		c.jobs.Replace(nil)
		c.library.Reset()
		c.mu.Unlock()
		err := errors.Join(jobsErr, libErr)
		c.logger.Warn("initial load failed", zap.Error(err))
		c.notify("load")
		return fmt.Errorf("initial load: %w", err)
	}
	jobList = c.withoutDismissedLocked(jobList)
	c.jobs.Replace(jobList)
	c.library.Replace(entries)
	c.state = StateReady
	c.lastSync = time.Now()
	c.mu.Unlock()

	c.logger.Info("initial load complete",
		zap.Int("jobs", len(jobList)), zap.Int("library", len(entries)))
	c.notify("load")
	return nil
}

// Refresh re-runs the fetch pair. Concurrent calls share one round-trip.
// A store whose fetch fails keeps its previous contents.
func (c *Coordinator) Refresh(ctx context.Context, reason string) error {
	_, err, shared := c.flight.Do("refresh", func() (interface{}, error) {
		return nil, c.refresh(ctx, reason)
	})
	if shared {
		c.logger.Debug("refresh coalesced", zap.String("reason", reason))
	}
	return err
}

func (c *Coordinator) refresh(ctx context.Context, reason string) error {
	jobList, entries, jobsErr, libErr := c.fetchPair(ctx)

	// The dismissed set is applied and the store replaced under one lock so a
	// concurrent Delete cannot be undone by a fetch that predates it.
	c.mu.Lock()
	c.jobsErr, c.libErr = jobsErr, libErr
	if jobsErr == nil {
		jobList = c.withoutDismissedLocked(jobList)
		c.jobs.Replace(jobList)
	}
	if libErr == nil {
		c.library.Replace(entries)
	}
	if jobsErr == nil && (libErr == nil || c.library.Loaded()) {
		c.state = StateReady
	}
	if jobsErr == nil && libErr == nil {
		c.lastSync = time.Now()
	}
	c.mu.Unlock()

	err := errors.Join(jobsErr, libErr)
	if err != nil {
		c.logger.Warn("refresh failed", zap.String("reason", reason), zap.Error(err))
	} else {
		c.logger.Debug("refresh complete", zap.String("reason", reason), zap.Int("jobs", len(jobList)))
	}
	c.notify(reason)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	return nil
}

func (c *Coordinator) fetchPair(ctx context.Context) (jobList []models.GenerationJob, entries []models.SavedContent, jobsErr, libErr error) {
	var g errgroup.Group
	g.Go(func() error {
		jobList, jobsErr = c.backend.ListJobs(ctx)
		return jobsErr
	})
	g.Go(func() error {
		entries, libErr = c.backend.ListLibrary(ctx, "")
		return libErr
	})
	_ = g.Wait()
	return
}

func (c *Coordinator) refreshLibrary(ctx context.Context) error {
	entries, err := c.backend.ListLibrary(ctx, "")
	c.mu.Lock()
	c.libErr = err
	c.mu.Unlock()
	if err != nil {
		c.logger.Warn("library refresh failed", zap.Error(err))
		return err
	}
	c.library.Replace(entries)
	return nil
}

func (c *Coordinator) withoutDismissedLocked(list []models.GenerationJob) []models.GenerationJob {
	if len(c.dismissed) == 0 {
		return list
	}
	out := make([]models.GenerationJob, 0, len(list))
	for _, j := range list {
		if !c.dismissed[j.JobID] {
			out = append(out, j)
		}
	}
	return out
}

// Reset clears all local state, for a signed-out session.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	c.state = StateIdle
	c.jobsErr, c.libErr = nil, nil
	c.lastSync = time.Time{}
	c.dismissed = make(map[string]bool)
	c.jobs.Replace(nil)
	c.library.Reset()
	c.mu.Unlock()

	c.notify("reset")
}

// Submit validates and sends a generation request, then refreshes so the new
// job appears with its server-assigned identity and status.
func (c *Coordinator) Submit(ctx context.Context, prompt string, contentType models.ContentType) (*models.CreateJobResult, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	if !contentType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidContentType, contentType)
	}

	res, err := c.backend.CreateJob(ctx, prompt, contentType)
	if err != nil {
		return nil, fmt.Errorf("submit job: %w", err)
	}
	c.logger.Info("job submitted", zap.String("job", res.JobID), zap.String("type", string(contentType)))
	if err := c.Refresh(ctx, "submit"); err != nil {
		c.logger.Warn("refresh after submit failed", zap.Error(err))
	}
	return res, nil
}

// SaveRequest saves or updates the library counterpart of a job. Body, when
// set, replaces the persisted body.
type SaveRequest struct {
	JobID string  `json:"jobId"`
	Title string  `json:"title"`
	Body  *string `json:"body,omitempty"`
}

// Save updates the correlated library entry when one exists and creates one
// otherwise. Both stores are refreshed afterwards.
func (c *Coordinator) Save(ctx context.Context, req SaveRequest) (*models.SavedContent, error) {
	job, ok := c.jobs.Get(req.JobID)
	if !ok {
		return nil, ErrNotFound
	}
	title := strings.TrimSpace(req.Title)

	var saved *models.SavedContent
	if match, ok := reconcile.Correlate(job, c.library.Snapshot()); ok {
		if title == "" {
			title = match.Title
		}
		body := match.Body
		if req.Body != nil {
			body = *req.Body
		}
		// Keep a type edited in the library; fall back to the job's own.
		contentType := match.Type
		if contentType == "" {
			contentType = string(job.ContentType)
		}
		updated, err := c.backend.UpdateLibraryEntry(ctx, match.ID, models.ContentPatch{
			Title: &title,
			Type:  &contentType,
			Body:  &body,
		})
		if err != nil {
			return nil, fmt.Errorf("update library entry %s: %w", match.ID, err)
		}
		c.logger.Info("library entry updated", zap.String("job", job.JobID), zap.String("entry", match.ID))
		saved = updated
	} else {
		if job.Status != models.JobCompleted || !job.HasContent() {
			return nil, ErrNotCompleted
		}
		created, err := c.backend.SaveJobToLibrary(ctx, job.JobID, title)
		if err != nil {
			return nil, fmt.Errorf("save job %s: %w", job.JobID, err)
		}
		c.logger.Info("job saved to library", zap.String("job", job.JobID), zap.String("entry", created.ID))
		saved = created
		c.markSaved(ctx, job.JobID)

		if req.Body != nil && *req.Body != created.Body {
			updated, err := c.backend.UpdateLibraryEntry(ctx, created.ID, models.ContentPatch{Body: req.Body})
			if err != nil {
				c.refreshAfterMutation(ctx, "save")
				return saved, fmt.Errorf("apply edited body to %s: %w", created.ID, err)
			}
			saved = updated
		}
	}

	c.refreshAfterMutation(ctx, "save")
	return saved, nil
}

// DeletePlan describes what deleting a job will do.
type DeletePlan struct {
	JobID     string `json:"jobId"`
	Cascade   bool   `json:"cascade"`
	LibraryID string `json:"libraryId,omitempty"`
	Warning   string `json:"warning,omitempty"`
}

// PlanDelete correlates the job so the caller can warn before a cascading delete.
func (c *Coordinator) PlanDelete(jobID string) (DeletePlan, error) {
	job, ok := c.jobs.Get(jobID)
	if !ok {
		return DeletePlan{}, ErrNotFound
	}
	plan := DeletePlan{JobID: jobID}
	if match, ok := reconcile.Correlate(job, c.library.Snapshot()); ok {
		plan.Cascade = true
		plan.LibraryID = match.ID
		plan.Warning = CascadeWarning
	}
	return plan, nil
}

// Delete removes a job from the local view. A job with a library counterpart
// first has that entry deleted on the backend, which requires confirmed.
// A job without one is removed locally only.
func (c *Coordinator) Delete(ctx context.Context, jobID string, confirmed bool) (DeletePlan, error) {
	plan, err := c.PlanDelete(jobID)
	if err != nil {
		return plan, err
	}
	if plan.Cascade {
		if !confirmed {
			return plan, ErrNotConfirmed
		}
		if _, err := c.backend.DeleteLibraryEntry(ctx, plan.LibraryID); err != nil {
			return plan, fmt.Errorf("delete library entry %s: %w", plan.LibraryID, err)
		}
		c.logger.Info("library entry deleted", zap.String("job", jobID), zap.String("entry", plan.LibraryID))
	}

	c.mu.Lock()
	c.dismissed[jobID] = true
	c.jobs.Remove(jobID)
	c.mu.Unlock()

	if plan.Cascade {
		_ = c.refreshLibrary(ctx)
	}
	c.notify("delete")
	return plan, nil
}

// BatchFailure is one job the batch could not save.
type BatchFailure struct {
	JobID string `json:"jobId"`
	Error string `json:"error"`
}

// BatchResult summarises SaveAll.
type BatchResult struct {
	Attempted int            `json:"attempted"`
	Saved     int            `json:"saved"`
	Failures  []BatchFailure `json:"failures,omitempty"`
}

// SaveAll saves every completed, unsaved job one at a time. A failed item does
// not stop the batch. The library is re-fetched once at the end, also when ctx
// is cancelled part way, in which case the partial result is returned with
// ctx's error.
func (c *Coordinator) SaveAll(ctx context.Context) (BatchResult, error) {
	candidates := reconcile.Unsaved(c.jobs.Snapshot(), c.library.Snapshot())
	res := BatchResult{Attempted: len(candidates)}
	if len(candidates) == 0 {
		return res, nil
	}

	var savedIDs []string
	var stopErr error
	for _, job := range candidates {
		if stopErr = ctx.Err(); stopErr != nil {
			break
		}
		if _, err := c.backend.SaveJobToLibrary(ctx, job.JobID, ""); err != nil {
			c.logger.Warn("batch save item failed", zap.String("job", job.JobID), zap.Error(err))
			res.Failures = append(res.Failures, BatchFailure{JobID: job.JobID, Error: err.Error()})
			continue
		}
		res.Saved++
		savedIDs = append(savedIDs, job.JobID)
	}
	// Items already saved on the backend are recorded even after cancellation.
	tail := context.WithoutCancel(ctx)
	c.markSaved(tail, savedIDs...)
	c.logger.Info("batch save finished",
		zap.Int("attempted", res.Attempted), zap.Int("saved", res.Saved), zap.Bool("cancelled", stopErr != nil))

	_ = c.refreshLibrary(tail)
	c.notify("save-all")
	return res, stopErr
}

// SearchLibrary lists library entries. An empty query re-fetches and replaces
// the Library Store; a non-empty one is answered by the backend without
// touching the store.
func (c *Coordinator) SearchLibrary(ctx context.Context, query string) ([]models.SavedContent, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		if err := c.refreshLibrary(ctx); err != nil {
			return nil, fmt.Errorf("list library: %w", err)
		}
		return c.library.Snapshot(), nil
	}
	entries, err := c.backend.ListLibrary(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search library: %w", err)
	}
	return entries, nil
}

// UpdateLibraryEntry edits a library entry directly.
func (c *Coordinator) UpdateLibraryEntry(ctx context.Context, id string, patch models.ContentPatch) (*models.SavedContent, error) {
	if patch.Empty() {
		return nil, ErrEmptyPatch
	}
	updated, err := c.backend.UpdateLibraryEntry(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("update library entry %s: %w", id, err)
	}
	_ = c.refreshLibrary(ctx)
	c.notify("library-update")
	return updated, nil
}

// DeleteLibraryEntry removes a library entry. Its job, if any, becomes unsaved.
func (c *Coordinator) DeleteLibraryEntry(ctx context.Context, id string) error {
	if _, err := c.backend.DeleteLibraryEntry(ctx, id); err != nil {
		return fmt.Errorf("delete library entry %s: %w", id, err)
	}
	_ = c.refreshLibrary(ctx)
	c.notify("library-delete")
	return nil
}

// LibraryEntry returns a library entry from the store.
func (c *Coordinator) LibraryEntry(id string) (models.SavedContent, bool) {
	return c.library.Get(id)
}

// HandlePush is subscribed to every push event. The store has already been
// patched; an event for an unknown job triggers a background refresh.
func (c *Coordinator) HandlePush(ev models.JobCompletedEvent, applied bool) {
	c.mu.RLock()
	n := c.notifier
	c.mu.RUnlock()
	if n != nil {
		n.JobCompleted(ev)
	}
	if applied {
		c.notify("push")
		return
	}
	go func() {
		if err := c.Refresh(c.bg, "push-miss"); err != nil {
			c.logger.Warn("refresh after unknown push failed", zap.String("job", ev.JobID), zap.Error(err))
		}
	}()
}

func (c *Coordinator) refreshAfterMutation(ctx context.Context, reason string) {
	if err := c.Refresh(ctx, reason); err != nil {
		c.logger.Warn("refresh after mutation failed", zap.String("reason", reason), zap.Error(err))
	}
}

func (c *Coordinator) markSaved(ctx context.Context, jobIDs ...string) {
	if c.hints == nil || len(jobIDs) == 0 {
		return
	}
	if err := c.hints.Mark(ctx, c.userID(), jobIDs...); err != nil {
		c.logger.Warn("saved hint write failed", zap.Error(err))
	}
}

func (c *Coordinator) notify(reason string) {
	c.mu.RLock()
	n := c.notifier
	c.mu.RUnlock()
	if n != nil {
		n.ViewChanged(reason)
	}
}
