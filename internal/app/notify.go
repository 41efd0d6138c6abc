package app

import (
	"context"
	"time"

	"github.com/contentforge/studio/internal/models"
	"github.com/contentforge/studio/internal/modules/preview"
	"go.uber.org/zap"
)

const notifyTimeout = 15 * time.Second

// notifyCompletion forwards a finished job to the phone. At most one
// notification goes out per job.
func (a *App) notifyCompletion(ev models.JobCompletedEvent, _ bool) {
	title := "Content ready"
	body := ""
	if view, ok := a.coord.JobView(ev.JobID); ok {
		body = view.Prompt
	}
	if ev.Status == models.JobFailed {
		title = "Generation failed"
		if ev.Error != nil && *ev.Error != "" {
			body = *ev.Error
		}
	} else if ev.GeneratedContent != nil {
		if excerpt := preview.Excerpt(*ev.GeneratedContent, 120); excerpt != "" {
			body = excerpt
		}
	}

	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, notifyTimeout)
		defer cancel()
		if _, err := a.bark.PushOnce(ctx, ev.JobID, title, body); err != nil {
			a.logger.Warn("completion notification failed", zap.String("job", ev.JobID), zap.Error(err))
		}
	}()
}
