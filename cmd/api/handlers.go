package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mediapress/transcoder/internal/coconut"
	"github.com/mediapress/transcoder/internal/config"
	"github.com/mediapress/transcoder/internal/database"
	"github.com/mediapress/transcoder/internal/logging"
	"github.com/mediapress/transcoder/internal/metrics"
	"github.com/mediapress/transcoder/internal/storages"
	"github.com/mediapress/transcoder/pkg/models"
)

// jobService is the slice of the jobs service the handlers use.
type jobService interface {
	GetJob(ctx context.Context, id int64) (*models.Job, error)
	GetJobByCoconutID(ctx context.Context, coconutID string) (*models.Job, error)
	UpdateJob(ctx context.Context, job *models.Job, info *coconut.JobInfo, applyOutputs bool) ([]*models.Output, error)
	UpdateJobInput(ctx context.Context, job *models.Job, data models.InputData) error
	UpdateJobOutput(ctx context.Context, job *models.Job, data models.OutputData) (*models.Output, error)
}

// jobStore persists new jobs before they are queued.
type jobStore interface {
	CreateJob(ctx context.Context, job *models.Job) error
}

// outputLister lists the persisted outputs of a job.
type outputLister interface {
	GetOutputsByJobID(ctx context.Context, jobID int64) ([]*models.Output, error)
}

// storageResolver resolves named and volume-bound storages.
type storageResolver interface {
	GetNamedStorage(handle string) *models.Storage
	GetVolumeStorage(ctx context.Context, vol storages.Volume) (*models.Storage, error)
}

// objectWriter is the upload endpoint's write-or-replace backend.
type objectWriter interface {
	Put(ctx context.Context, path string, reader io.Reader, size int64) error
}

// submitter hands accepted jobs to the worker queue and exposes the
// operational surface of the queue: depth inspection and dead-letter
// redrive.
type submitter interface {
	PublishSubmission(ctx context.Context, jobID int64) error
	RedriveDLQ(ctx context.Context, limit int) (int, error)
	GetQueueDepth() (int, error)
	GetDLQDepth() (int, error)
}

type API struct {
	cfg      *config.Config
	db       *database.DB
	jobs     jobService
	store    jobStore
	outputs  outputLister
	storages storageResolver
	uploader objectWriter
	queue    submitter
	logger   *logging.Logger
}

// Health check endpoint
func (api *API) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := api.db.Health(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}

type createJobRequest struct {
	Input struct {
		AssetID int64  `json:"asset_id"`
		URL     string `json:"url"`
	} `json:"input"`

	// Storage selects a named storage by handle; Volume resolves one
	// through the volume extension points. At most one of the two.
	Storage string `json:"storage"`
	Volume  *struct {
		ID     int64  `json:"id"`
		Handle string `json:"handle"`
	} `json:"volume"`

	Outputs []struct {
		Format string `json:"format" binding:"required"`
		Key    string `json:"key"`
		Path   string `json:"path"`
	} `json:"outputs" binding:"required"`

	Notification     *models.Notification `json:"notification"`
	OutputPathFormat string               `json:"output_path_format"`
}

// Create job endpoint: persists the job and queues it for submission.
func (api *API) createJob(c *gin.Context) {
	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var input *models.Input
	switch {
	case req.Input.URL != "" && req.Input.AssetID > 0:
		input = models.NewAssetInput(req.Input.AssetID, req.Input.URL)
	case req.Input.URL != "":
		input = models.NewURLInput(req.Input.URL)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "input requires a url"})
		return
	}

	storage, err := api.resolveStorage(c.Request.Context(), &req)
	if err != nil {
		status := http.StatusBadRequest
		if !errors.Is(err, models.ErrInvalidConfig) {
			status = http.StatusInternalServerError
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	job := models.NewJob(input)
	job.Storage = storage
	job.Notification = req.Notification

	job.OutputPathFormat = req.OutputPathFormat
	if job.OutputPathFormat == "" {
		job.OutputPathFormat = api.cfg.Jobs.OutputPathFormat
	}
	if job.Notification == nil && api.cfg.Jobs.NotificationURL != "" {
		job.Notification = &models.Notification{
			Type:     models.NotificationTypeHTTP,
			URL:      api.cfg.Jobs.NotificationURL,
			Metadata: true,
			Events:   true,
		}
	}

	for _, out := range req.Outputs {
		o := models.NewOutput(out.Format)
		o.Key = out.Key
		o.Path = out.Path
		job.AddOutput(o)
	}

	if err := job.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := api.store.CreateJob(c.Request.Context(), job); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to create job: %v", err)})
		return
	}

	if err := api.queue.PublishSubmission(c.Request.Context(), job.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to queue job: %v", err)})
		return
	}

	c.JSON(http.StatusAccepted, job)
}

func (api *API) resolveStorage(ctx context.Context, req *createJobRequest) (*models.Storage, error) {
	if req.Storage != "" && req.Volume != nil {
		return nil, models.ConfigError("storage and volume are mutually exclusive")
	}

	if req.Volume != nil {
		return api.storages.GetVolumeStorage(ctx, storages.Volume{
			ID:     req.Volume.ID,
			Handle: req.Volume.Handle,
		})
	}

	handle := req.Storage
	if handle == "" {
		handle = api.cfg.Jobs.DefaultStorage
	}
	if handle == "" {
		return nil, models.ConfigError("job requires a storage or a volume")
	}

	storage := api.storages.GetNamedStorage(handle)
	if storage == nil {
		return nil, models.ConfigError("unknown storage %q", handle)
	}
	return storage, nil
}

// Get job endpoint
func (api *API) getJob(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job id"})
		return
	}

	job, err := api.jobs.GetJob(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}

	c.JSON(http.StatusOK, job)
}

// Get job outputs endpoint
func (api *API) getJobOutputs(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job id"})
		return
	}

	outputs, err := api.outputs.GetOutputsByJobID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"outputs": outputs})
}

// Webhook endpoint: decodes the notification payload and forwards the
// event-specific data into the jobs service. Dispatch on event lives
// here; staleness is the service's concern and never an error.
func (api *API) webhook(c *gin.Context) {
	var payload models.Payload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	metrics.WebhookEventsTotal.WithLabelValues(payload.Event).Inc()

	job, err := api.jobs.GetJobByCoconutID(c.Request.Context(), payload.JobID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	api.logger.LogWebhookEvent(payload.JobID, payload.Event, false)

	switch {
	case strings.HasPrefix(payload.Event, "input."):
		api.webhookInput(c, job, payload)
	case strings.HasPrefix(payload.Event, "output."):
		api.webhookOutput(c, job, payload)
	case strings.HasPrefix(payload.Event, "job."):
		api.webhookJob(c, job, payload)
	default:
		// Unrecognized events are acknowledged so the remote service
		// does not redeliver them.
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "event": payload.Event})
	}
}

func (api *API) webhookInput(c *gin.Context, job *models.Job, payload models.Payload) {
	var data models.InputData
	if len(payload.Data) > 0 {
		if err := json.Unmarshal(payload.Data, &data); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if data.Metadata == nil {
		data.Metadata = payload.Metadata
	}
	if data.Status == "" && payload.Event == models.EventInputTransferred {
		data.Status = models.InputStatusTransferred
	}

	if err := api.jobs.UpdateJobInput(c.Request.Context(), job, data); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (api *API) webhookOutput(c *gin.Context, job *models.Job, payload models.Payload) {
	var data models.OutputData
	if err := json.Unmarshal(payload.Data, &data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := api.jobs.UpdateJobOutput(c.Request.Context(), job, data); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (api *API) webhookJob(c *gin.Context, job *models.Job, payload models.Payload) {
	var data models.JobData
	if len(payload.Data) > 0 {
		if err := json.Unmarshal(payload.Data, &data); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	info := &coconut.JobInfo{
		ID:        payload.JobID,
		Progress:  data.Progress,
		ErrorCode: data.ErrorCode,
		Message:   data.Message,
		Metadata:  data.Metadata,
	}
	switch payload.Event {
	case models.EventJobCompleted:
		info.Status = coconut.StatusCompleted
	case models.EventJobFailed:
		info.Status = coconut.StatusError
	default:
		info.Status = data.Status
	}

	if _, err := api.jobs.UpdateJob(c.Request.Context(), job, info, true); err != nil {
		// A remote-reported failure is the processed outcome of this
		// notification, not a delivery problem.
		if models.IsJobFailed(err) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Queue stats endpoint: live and dead-lettered submission counts.
func (api *API) queueStats(c *gin.Context) {
	depth, err := api.queue.GetQueueDepth()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	dlqDepth, err := api.queue.GetDLQDepth()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"depth": depth, "dlq_depth": dlqDepth})
}

// Queue redrive endpoint: moves dead-lettered submissions back onto
// the live queue, up to an optional limit.
func (api *API) redriveQueue(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = n
	}

	redriven, err := api.queue.RedriveDLQ(c.Request.Context(), limit)
	if err != nil {
		api.logger.ErrorWithErr("DLQ redrive failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "redriven": redriven})
		return
	}

	c.JSON(http.StatusOK, gin.H{"redriven": redriven})
}

// Upload endpoint: write-or-replace the file at the volume-scoped path.
func (api *API) upload(c *gin.Context) {
	volume := c.Param("volume")
	path := strings.TrimPrefix(c.Param("path"), "/")
	if volume == "" || path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Upload path required"})
		return
	}

	target := volume + "/" + path
	if err := api.uploader.Put(c.Request.Context(), target, c.Request.Body, c.Request.ContentLength); err != nil {
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to store file: %v", err)})
		return
	}

	metrics.UploadsTotal.WithLabelValues("success").Inc()
	if c.Request.ContentLength > 0 {
		metrics.UploadSizeBytes.Observe(float64(c.Request.ContentLength))
	}
	c.JSON(http.StatusCreated, gin.H{"path": target})
}
