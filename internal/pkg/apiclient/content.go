package apiclient

import (
	"context"
	"net/http"
	neturl "net/url"
	"strings"

	"github.com/contentforge/studio/internal/models"
)

// ListJobs returns the user's generation jobs, newest first as ordered by the backend.
func (c *Client) ListJobs(ctx context.Context) ([]models.GenerationJob, error) {
	var jobs []models.GenerationJob
	if err := c.do(ctx, http.MethodGet, "/generate-content", nil, nil, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// CreateJob submits a generation request. Only an acknowledgement is returned.
func (c *Client) CreateJob(ctx context.Context, prompt string, contentType models.ContentType) (*models.CreateJobResult, error) {
	body := struct {
		Prompt      string             `json:"prompt"`
		ContentType models.ContentType `json:"contentType"`
	}{Prompt: prompt, ContentType: contentType}

	var res models.CreateJobResult
	if err := c.do(ctx, http.MethodPost, "/generate-content", nil, body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SaveJobToLibrary creates a library entry from a completed job. An empty title
// lets the backend derive one from the prompt.
func (c *Client) SaveJobToLibrary(ctx context.Context, jobID, title string) (*models.SavedContent, error) {
	body := struct {
		Title string `json:"title,omitempty"`
	}{Title: strings.TrimSpace(title)}

	var res models.SaveJobResult
	path := "/generate-content/" + neturl.PathEscape(jobID) + "/save"
	if err := c.do(ctx, http.MethodPost, path, nil, body, &res); err != nil {
		return nil, err
	}
	return &res.Content, nil
}

// ListLibrary returns the user's saved content, optionally filtered by a search term.
func (c *Client) ListLibrary(ctx context.Context, search string) ([]models.SavedContent, error) {
	var query neturl.Values
	if s := strings.TrimSpace(search); s != "" {
		query = neturl.Values{"search": []string{s}}
	}
	var entries []models.SavedContent
	if err := c.do(ctx, http.MethodGet, "/content", query, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// UpdateLibraryEntry applies a partial update to a library entry.
func (c *Client) UpdateLibraryEntry(ctx context.Context, id string, patch models.ContentPatch) (*models.SavedContent, error) {
	var entry models.SavedContent
	if err := c.do(ctx, http.MethodPut, "/content/"+neturl.PathEscape(id), nil, patch, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// DeleteLibraryEntry removes a library entry.
func (c *Client) DeleteLibraryEntry(ctx context.Context, id string) (*models.DeleteResult, error) {
	var res models.DeleteResult
	if err := c.do(ctx, http.MethodDelete, "/content/"+neturl.PathEscape(id), nil, nil, &res); err != nil {
		return nil, err
	}
	if res.ID == "" {
		res.ID = id
	}
	return &res, nil
}
