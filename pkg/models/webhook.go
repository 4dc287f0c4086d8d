package models

import (
	"encoding/json"
	"time"
)

// Webhook events posted by the transcoding service.
const (
	EventInputTransferred = "input.transferred"
	EventOutputCompleted  = "output.completed"
	EventOutputFailed     = "output.failed"
	EventJobCompleted     = "job.completed"
	EventJobFailed        = "job.failed"
)

// Payload is a webhook notification body. Data is event-specific and
// decoded by the receiving controller before being handed to the jobs
// service.
type Payload struct {
	JobID    string          `json:"job_id"`
	Event    string          `json:"event"`
	Metadata Metadata        `json:"metadata,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// InputData is the event payload for input.* events.
type InputData struct {
	Status   string     `json:"status,omitempty"`
	Progress string     `json:"progress,omitempty"`
	Metadata Metadata   `json:"metadata,omitempty"`
	Expires  *time.Time `json:"expires,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// OutputData is the event payload for output.* events. Key correlates
// back to an output of the job.
type OutputData struct {
	Key      string   `json:"key"`
	Status   string   `json:"status,omitempty"`
	Progress string   `json:"progress,omitempty"`
	URL      string   `json:"url,omitempty"`
	URLs     []string `json:"urls,omitempty"`
	Metadata Metadata `json:"metadata,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// JobData is the event payload for job.* events.
type JobData struct {
	ID        string   `json:"id"`
	Status    string   `json:"status,omitempty"`
	Progress  string   `json:"progress,omitempty"`
	ErrorCode string   `json:"error_code,omitempty"`
	Message   string   `json:"message,omitempty"`
	Metadata  Metadata `json:"metadata,omitempty"`
}
