package models

import "time"

// SavedContent is a persisted library entry. Its ID is assigned by storage and
// carries no reference to the job it was saved from.
type SavedContent struct {
	ID        string    `json:"_id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Type      string    `json:"type"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ContentPatch is a partial library entry update. Nil fields are left as-is.
type ContentPatch struct {
	Title *string `json:"title,omitempty"`
	Type  *string `json:"type,omitempty"`
	Body  *string `json:"body,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p ContentPatch) Empty() bool {
	return p.Title == nil && p.Type == nil && p.Body == nil
}

// SaveJobResult is returned by the backend when a job is saved to the library.
type SaveJobResult struct {
	Message string       `json:"message"`
	Content SavedContent `json:"content"`
}

// DeleteResult is returned by the backend when a library entry is deleted.
type DeleteResult struct {
	ID string `json:"id"`
}
