// Package coconut talks to the remote transcoding API. The rest of the
// system treats it as an opaque RPC boundary behind the Client
// interface.
package coconut

import (
	"context"

	"github.com/mediapress/transcoder/pkg/models"
)

// Remote job statuses as reported by the service.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// JobInfo is the remote service's view of a job.
type JobInfo struct {
	ID         string              `json:"id"`
	Status     string              `json:"status"`
	Progress   string              `json:"progress,omitempty"`
	ErrorCode  string              `json:"error_code,omitempty"`
	Message    string              `json:"message,omitempty"`
	Errors     map[string]string   `json:"errors,omitempty"`
	OutputURLs map[string][]string `json:"output_urls,omitempty"`
	Outputs    []models.OutputData `json:"outputs,omitempty"`
	Metadata   models.Metadata     `json:"metadata,omitempty"`
}

// Client is the RPC surface the job lifecycle depends on.
type Client interface {
	// CreateJob submits a new transcoding job.
	CreateJob(ctx context.Context, params map[string]interface{}) (*JobInfo, error)

	// GetJob fetches the current remote state of a job.
	GetJob(ctx context.Context, id string) (*JobInfo, error)

	// GetMetadata fetches probed metadata for every output of a
	// completed job, keyed by output format key.
	GetMetadata(ctx context.Context, id string) (map[string]models.Metadata, error)
}
