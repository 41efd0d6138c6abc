package jobs

import (
	"sync"
	"testing"
	"time"

	"github.com/contentforge/studio/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func job(id string, status models.JobStatus) models.GenerationJob {
	return models.GenerationJob{
		RecordID:    "rec-" + id,
		JobID:       id,
		UserID:      "u1",
		Prompt:      "prompt " + id,
		ContentType: models.ContentBlogPostOutline,
		Status:      status,
		CreatedAt:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func completion(id string, status models.JobStatus) models.JobCompletedEvent {
	return models.JobCompletedEvent{
		UserID:      "u1",
		JobID:       id,
		Status:      status,
		CompletedAt: time.Date(2025, 1, 1, 0, 5, 0, 0, time.UTC),
	}
}

func TestReplaceKeepsFetchOrder(t *testing.T) {
	s := NewStore()
	s.Replace([]models.GenerationJob{job("J3", models.JobQueued), job("J1", models.JobQueued), job("J2", models.JobQueued)})

	snap := s.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "J3", snap[0].JobID)
	assert.Equal(t, "J1", snap[1].JobID)
	assert.Equal(t, "J2", snap[2].JobID)
}

func TestReplaceSkipsDuplicatesAndBlankIDs(t *testing.T) {
	s := NewStore()
	s.Replace([]models.GenerationJob{job("J1", models.JobQueued), job("", models.JobQueued), job("J1", models.JobFailed)})

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, models.JobQueued, snap[0].Status)
}

func TestApplyCompletionPatchesOnlyThatJob(t *testing.T) {
	s := NewStore()
	s.Replace([]models.GenerationJob{job("J1", models.JobProcessing), job("J2", models.JobProcessing), job("J3", models.JobQueued)})
	before := s.Snapshot()

	ev := completion("J2", models.JobFailed)
	ev.Error = models.StringPtr("rate limited")
	require.True(t, s.ApplyCompletion(ev))

	after := s.Snapshot()
	require.Len(t, after, 3)
	assert.Same(t, before[0], after[0])
	assert.Same(t, before[2], after[2])
	assert.NotSame(t, before[1], after[1])

	j2 := after[1]
	assert.Equal(t, models.JobFailed, j2.Status)
	require.NotNil(t, j2.Error)
	assert.Equal(t, "rate limited", *j2.Error)
	assert.Nil(t, j2.GeneratedContent)
	require.NotNil(t, j2.CompletedAt)
	assert.Equal(t, "prompt J2", j2.Prompt)
	assert.Equal(t, "rec-J2", j2.RecordID)

	// the previous snapshot is not mutated
	assert.Equal(t, models.JobProcessing, before[1].Status)
}

func TestApplyCompletionUnknownJobIsDropped(t *testing.T) {
	s := NewStore()
	s.Replace([]models.GenerationJob{job("J1", models.JobProcessing)})
	before := s.Snapshot()
	version := s.Version()

	assert.False(t, s.ApplyCompletion(completion("ghost", models.JobCompleted)))

	after := s.Snapshot()
	require.Len(t, after, 1)
	assert.Same(t, before[0], after[0])
	assert.Equal(t, version, s.Version())
}

func TestApplyCompletionIsIdempotent(t *testing.T) {
	s := NewStore()
	s.Replace([]models.GenerationJob{job("J1", models.JobProcessing)})

	ev := completion("J1", models.JobCompleted)
	ev.GeneratedContent = models.StringPtr("Hello world")
	require.True(t, s.ApplyCompletion(ev))
	first, _ := s.Get("J1")
	version := s.Version()

	require.True(t, s.ApplyCompletion(ev))
	second, _ := s.Get("J1")
	assert.Same(t, first, second)
	assert.Equal(t, version, s.Version())
}

func TestApplyCompletionLastWriteWins(t *testing.T) {
	s := NewStore()
	s.Replace([]models.GenerationJob{job("J1", models.JobProcessing)})

	s.ApplyCompletion(completion("J1", models.JobFailed))
	ev := completion("J1", models.JobCompleted)
	ev.GeneratedContent = models.StringPtr("done")
	s.ApplyCompletion(ev)

	got, ok := s.Get("J1")
	require.True(t, ok)
	assert.Equal(t, models.JobCompleted, got.Status)
	assert.Equal(t, "done", got.Content())
}

func TestStaleFetchDoesNotRollBackPushedCompletion(t *testing.T) {
	s := NewStore()
	s.Replace([]models.GenerationJob{job("J1", models.JobProcessing)})

	ev := completion("J1", models.JobCompleted)
	ev.GeneratedContent = models.StringPtr("Hello world")
	s.ApplyCompletion(ev)

	// a fetch that started before the push lands afterwards
	s.Replace([]models.GenerationJob{job("J1", models.JobProcessing)})
	got, _ := s.Get("J1")
	assert.Equal(t, models.JobCompleted, got.Status)
	assert.Equal(t, "Hello world", got.Content())

	// once the server reports the terminal state, the fetched record wins
	final := job("J1", models.JobCompleted)
	final.GeneratedContent = models.StringPtr("server body")
	s.Replace([]models.GenerationJob{final})
	got, _ = s.Get("J1")
	assert.Equal(t, "server body", got.Content())

	s.Replace([]models.GenerationJob{job("J1", models.JobProcessing)})
	got, _ = s.Get("J1")
	assert.Equal(t, models.JobProcessing, got.Status)
}

func TestRemove(t *testing.T) {
	s := NewStore()
	s.Replace([]models.GenerationJob{job("J1", models.JobCompleted), job("J2", models.JobQueued)})

	assert.True(t, s.Remove("J1"))
	assert.False(t, s.Remove("J1"))
	_, ok := s.Get("J1")
	assert.False(t, ok)
	require.Equal(t, 1, s.Len())
	assert.Equal(t, "J2", s.Snapshot()[0].JobID)
}

func TestConcurrentWriters(t *testing.T) {
	s := NewStore()
	list := make([]models.GenerationJob, 0, 50)
	for i := 0; i < 50; i++ {
		list = append(list, job(string(rune('A'+i)), models.JobProcessing))
	}
	s.Replace(list)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(id string) {
			defer wg.Done()
			s.ApplyCompletion(completion(id, models.JobCompleted))
		}(list[i].JobID)
		go func() {
			defer wg.Done()
			s.Replace(list)
		}()
	}
	wg.Wait()

	for _, j := range s.Snapshot() {
		assert.Equal(t, models.JobCompleted, j.Status, j.JobID)
	}
}
