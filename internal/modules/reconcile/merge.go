package reconcile

import "github.com/contentforge/studio/internal/models"

// View is one display row: the job with any matched library data overlaid.
type View struct {
	models.GenerationJob
	Saved     bool   `json:"saved"`
	LibraryID string `json:"libraryId,omitempty"`
	// SavedHint is advisory, set only from the local saved-id cache while
	// library data is unavailable.
	SavedHint bool `json:"savedHint,omitempty"`
}

// Merge derives the display list in job order. A matched job shows the
// library entry's title, body and type in place of its prompt, generated
// content and content type; everything else comes from the job. An unmatched
// job passes through unchanged.
func Merge(jobs []*models.GenerationJob, entries []models.SavedContent) []View {
	out := make([]View, 0, len(jobs))
	for _, j := range jobs {
		v := View{GenerationJob: j.Clone()}
		if i := correlateIndex(j, entries); i >= 0 {
			e := entries[i]
			body := e.Body
			v.Prompt = e.Title
			v.GeneratedContent = &body
			v.ContentType = models.ContentType(e.Type)
			v.Saved = true
			v.LibraryID = e.ID
		}
		out = append(out, v)
	}
	return out
}

// ApplyHints marks rows whose job id is in hinted as SavedHint. Rows already
// correlated are left alone.
func ApplyHints(views []View, hinted map[string]bool) {
	for i := range views {
		if !views[i].Saved && hinted[views[i].JobID] {
			views[i].SavedHint = true
		}
	}
}
