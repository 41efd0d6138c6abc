// Package reconcile correlates generation jobs with library entries and
// derives the display list. There is no foreign key from a library entry back
// to the job it was saved from, so correlation is a content heuristic:
//
//   - an entry whose body equals the job's generated content, or
//   - an entry whose title contains the first 50 characters of the job's prompt
//     (covers entries whose body was edited after saving).
//
// The first qualifying entry in library order wins. Two prompts sharing a
// 50-character prefix can therefore be matched to the same entry.
package reconcile

import (
	"strings"

	"github.com/contentforge/studio/internal/models"
)

// PromptPrefixLen is the number of prompt characters searched for in titles.
const PromptPrefixLen = 50

// Correlate returns the library entry considered the persisted counterpart of
// job. Jobs without generated content never match. Pure and deterministic.
func Correlate(job *models.GenerationJob, entries []models.SavedContent) (models.SavedContent, bool) {
	if i := correlateIndex(job, entries); i >= 0 {
		return entries[i], true
	}
	return models.SavedContent{}, false
}

func correlateIndex(job *models.GenerationJob, entries []models.SavedContent) int {
	if job == nil || !job.HasContent() {
		return -1
	}
	body := *job.GeneratedContent
	prefix := promptPrefix(job.Prompt)
	for i := range entries {
		if entries[i].Body == body {
			return i
		}
		if prefix != "" && strings.Contains(entries[i].Title, prefix) {
			return i
		}
	}
	return -1
}

// promptPrefix returns the first PromptPrefixLen characters of the prompt, or
// "" when they are blank (a blank prefix would match every title).
func promptPrefix(prompt string) string {
	runes := []rune(prompt)
	if len(runes) > PromptPrefixLen {
		runes = runes[:PromptPrefixLen]
	}
	prefix := string(runes)
	if strings.TrimSpace(prefix) == "" {
		return ""
	}
	return prefix
}

// Unsaved returns the completed jobs with content that have no library match,
// in job order.
func Unsaved(jobs []*models.GenerationJob, entries []models.SavedContent) []*models.GenerationJob {
	var out []*models.GenerationJob
	for _, j := range jobs {
		if j.Status != models.JobCompleted || !j.HasContent() {
			continue
		}
		if correlateIndex(j, entries) < 0 {
			out = append(out, j)
		}
	}
	return out
}
