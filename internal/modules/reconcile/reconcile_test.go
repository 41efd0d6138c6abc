package reconcile

import (
	"strings"
	"testing"
	"time"

	"github.com/contentforge/studio/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var created = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func completedJob(id, prompt, body string) *models.GenerationJob {
	j := &models.GenerationJob{
		JobID:       id,
		Prompt:      prompt,
		ContentType: models.ContentBlogPostOutline,
		Status:      models.JobCompleted,
		CreatedAt:   created,
	}
	if body != "" {
		j.GeneratedContent = models.StringPtr(body)
	}
	return j
}

func TestCorrelateNoContentNeverMatches(t *testing.T) {
	entries := []models.SavedContent{{ID: "c1", Title: "anything", Body: ""}}

	j := completedJob("J1", "anything", "")
	_, ok := Correlate(j, entries)
	assert.False(t, ok)

	j.GeneratedContent = models.StringPtr("")
	_, ok = Correlate(j, entries)
	assert.False(t, ok)

	_, ok = Correlate(nil, entries)
	assert.False(t, ok)
}

func TestCorrelateByBodyEquality(t *testing.T) {
	entries := []models.SavedContent{
		{ID: "c0", Title: "other", Body: "Something else"},
		{ID: "c1", Title: "unrelated title", Body: "Hello world"},
	}
	got, ok := Correlate(completedJob("J1", "greeting", "Hello world"), entries)
	require.True(t, ok)
	assert.Equal(t, "c1", got.ID)
}

func TestCorrelateByTitlePrefixAfterBodyEdit(t *testing.T) {
	prompt := strings.Repeat("x", 20) + " benefits of AI in healthcare and the long tail of this prompt"
	entries := []models.SavedContent{
		{ID: "c1", Title: "Saved: " + prompt[:PromptPrefixLen] + "...", Body: "edited body"},
	}
	got, ok := Correlate(completedJob("J1", prompt, "original body"), entries)
	require.True(t, ok)
	assert.Equal(t, "c1", got.ID)
}

func TestCorrelatePrefixCountsCharactersNotBytes(t *testing.T) {
	prompt := strings.Repeat("é", 60)
	title := strings.Repeat("é", 50)
	_, ok := Correlate(completedJob("J1", prompt, "body"), []models.SavedContent{{ID: "c1", Title: title, Body: "x"}})
	assert.True(t, ok)
}

func TestCorrelateBlankPromptDoesNotMatchEveryTitle(t *testing.T) {
	_, ok := Correlate(completedJob("J1", "   ", "body"), []models.SavedContent{{ID: "c1", Title: "t", Body: "x"}})
	assert.False(t, ok)
}

func TestCorrelateFirstMatchWins(t *testing.T) {
	entries := []models.SavedContent{
		{ID: "first", Title: "shared prompt", Body: "a"},
		{ID: "second", Title: "x", Body: "Hello world"},
	}
	for i := 0; i < 3; i++ {
		got, ok := Correlate(completedJob("J1", "shared prompt", "Hello world"), entries)
		require.True(t, ok)
		assert.Equal(t, "first", got.ID)
	}
}

func TestMergeUnmatchedPassesThrough(t *testing.T) {
	j := completedJob("J1", "prompt", "body")
	j.RecordID = "r1"
	j.UserID = "u1"
	views := Merge([]*models.GenerationJob{j}, nil)

	require.Len(t, views, 1)
	assert.Equal(t, *j, views[0].GenerationJob)
	assert.False(t, views[0].Saved)
	assert.Empty(t, views[0].LibraryID)
}

func TestMergeMatchedOverlaysLibraryFields(t *testing.T) {
	done := created.Add(time.Minute)
	j := completedJob("J1", "write about cats", "Hello world")
	j.CompletedAt = &done
	entries := []models.SavedContent{{ID: "c1", Title: "Cats, revised", Type: "Product Description", Body: "Hello world"}}

	views := Merge([]*models.GenerationJob{j}, entries)
	require.Len(t, views, 1)
	v := views[0]
	assert.True(t, v.Saved)
	assert.Equal(t, "c1", v.LibraryID)
	assert.Equal(t, "Cats, revised", v.Prompt)
	assert.Equal(t, "Hello world", v.Content())
	assert.Equal(t, models.ContentProductDescription, v.ContentType)

	assert.Equal(t, "J1", v.JobID)
	assert.Equal(t, models.JobCompleted, v.Status)
	assert.Equal(t, created, v.CreatedAt)
	assert.Equal(t, &done, v.CompletedAt)

	// the source job is not modified
	assert.Equal(t, "write about cats", j.Prompt)
	assert.Equal(t, models.ContentBlogPostOutline, j.ContentType)
}

func TestMergeShowsEditedBodyThroughTitleMatch(t *testing.T) {
	j := completedJob("J1", "Hello prompt", "original")
	entries := []models.SavedContent{{ID: "c1", Title: "Hello prompt", Type: string(models.ContentBlogPostOutline), Body: "edited later"}}

	views := Merge([]*models.GenerationJob{j}, entries)
	assert.Equal(t, "edited later", views[0].Content())
}

func TestMergePreservesJobOrder(t *testing.T) {
	jobs := []*models.GenerationJob{
		completedJob("J3", "c", "3"),
		completedJob("J1", "a", "1"),
		completedJob("J2", "b", "2"),
	}
	entries := []models.SavedContent{{ID: "c2", Title: "zzz", Body: "2"}}

	views := Merge(jobs, entries)
	require.Len(t, views, 3)
	assert.Equal(t, []string{"J3", "J1", "J2"}, []string{views[0].JobID, views[1].JobID, views[2].JobID})
	assert.Equal(t, []bool{false, false, true}, []bool{views[0].Saved, views[1].Saved, views[2].Saved})
}

func TestUnsavedSelectsCompletedUnmatchedWithContent(t *testing.T) {
	queued := completedJob("Q", "q", "")
	queued.Status = models.JobQueued
	failed := completedJob("F", "f", "")
	failed.Status = models.JobFailed
	empty := completedJob("E", "e", "")
	saved := completedJob("S", "s", "saved body")
	open := completedJob("O", "o", "open body")

	entries := []models.SavedContent{{ID: "c1", Title: "t", Body: "saved body"}}
	got := Unsaved([]*models.GenerationJob{queued, failed, empty, saved, open}, entries)
	require.Len(t, got, 1)
	assert.Equal(t, "O", got[0].JobID)
}

func TestApplyHintsOnlyTouchesUnmatchedRows(t *testing.T) {
	views := []View{
		{GenerationJob: models.GenerationJob{JobID: "J1"}},
		{GenerationJob: models.GenerationJob{JobID: "J2"}, Saved: true},
		{GenerationJob: models.GenerationJob{JobID: "J3"}},
	}
	ApplyHints(views, map[string]bool{"J1": true, "J2": true})
	assert.True(t, views[0].SavedHint)
	assert.False(t, views[1].SavedHint)
	assert.False(t, views[2].SavedHint)
}
