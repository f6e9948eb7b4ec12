package model

import "time"

type JobKind string

const (
	JobKindChatResponse   JobKind = "chat_response"
	JobKindToolGeneration JobKind = "tool_generation"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusStreaming  JobStatus = "streaming"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job is a background generation job owned exclusively by the pipeline.
// Transitions are one-directional; completed and failed are terminal and
// safe to re-observe (the external queue may redeliver callbacks).
type Job struct {
	ID              string
	UserID          string
	Kind            JobKind
	RelatedEntityID string
	Status          JobStatus
	Buffer          string
	LastError       string
	QueueMessageID  string
	ClientConnected bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func NewJob(id, userID string, kind JobKind, relatedEntityID string) *Job {
	now := time.Now()
	return &Job{
		ID:              id,
		UserID:          userID,
		Kind:            kind,
		RelatedEntityID: relatedEntityID,
		Status:          JobStatusPending,
		ClientConnected: true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Terminal reports whether the job has reached completed or failed.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// AppendBuffer accumulates partial streamed output for resumable polling.
func (j *Job) AppendBuffer(chunk string) {
	j.Buffer += chunk
	j.UpdatedAt = time.Now()
}
