package models

import (
	"strings"
	"time"
)

// ContentType is the kind of content a generation job produces.
type ContentType string

const (
	ContentBlogPostOutline    ContentType = "Blog Post Outline"
	ContentProductDescription ContentType = "Product Description"
	ContentSocialMediaCaption ContentType = "Social Media Caption"
)

// ContentTypes lists the accepted content types in display order.
var ContentTypes = []ContentType{
	ContentBlogPostOutline,
	ContentProductDescription,
	ContentSocialMediaCaption,
}

func (t ContentType) Valid() bool {
	for _, ct := range ContentTypes {
		if t == ct {
			return true
		}
	}
	return false
}

// JobStatus represents the lifecycle state of a generation job.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether no further status transition is expected.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// GenerationJob is one asynchronous generation request as reported by the backend.
// RecordID is the storage id; JobID is the durable identifier used everywhere else.
type GenerationJob struct {
	RecordID         string      `json:"_id"`
	JobID            string      `json:"jobId"`
	UserID           string      `json:"userId"`
	Prompt           string      `json:"prompt"`
	ContentType      ContentType `json:"contentType"`
	Status           JobStatus   `json:"status"`
	GeneratedContent *string     `json:"generatedContent,omitempty"`
	Error            *string     `json:"error,omitempty"`
	ScheduledFor     *time.Time  `json:"scheduledFor,omitempty"`
	CreatedAt        time.Time   `json:"createdAt"`
	CompletedAt      *time.Time  `json:"completedAt,omitempty"`
}

// HasContent reports whether the job carries a non-empty generated body.
func (j *GenerationJob) HasContent() bool {
	return j.GeneratedContent != nil && *j.GeneratedContent != ""
}

// Content returns the generated body or "".
func (j *GenerationJob) Content() string {
	if j.GeneratedContent == nil {
		return ""
	}
	return *j.GeneratedContent
}

// Clone returns a deep copy; pointer fields are duplicated.
func (j GenerationJob) Clone() GenerationJob {
	out := j
	out.GeneratedContent = cloneString(j.GeneratedContent)
	out.Error = cloneString(j.Error)
	out.ScheduledFor = cloneTime(j.ScheduledFor)
	out.CompletedAt = cloneTime(j.CompletedAt)
	return out
}

// CreateJobResult is the acknowledgement returned when a job is submitted.
type CreateJobResult struct {
	JobID        string    `json:"jobId"`
	Status       JobStatus `json:"status"`
	DelaySeconds int       `json:"delaySeconds"`
}

// JobCompletedEvent is the push payload delivered once per job on completion or failure.
type JobCompletedEvent struct {
	UserID           string    `json:"userId"`
	JobID            string    `json:"jobId"`
	Status           JobStatus `json:"status"`
	GeneratedContent *string   `json:"generatedContent,omitempty"`
	Error            *string   `json:"error,omitempty"`
	CompletedAt      time.Time `json:"completedAt"`
}

// Valid reports whether the event names a job and a terminal status.
func (e JobCompletedEvent) Valid() bool {
	return strings.TrimSpace(e.JobID) != "" && e.Status.Terminal()
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
