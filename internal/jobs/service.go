// Package jobs drives the lifecycle of transcoding jobs: submission
// to the remote service, the synchronous poll loop, and the status
// transitions fed by polls and webhooks. Each job is owned by exactly
// one runner at a time; the cross-process webhook/poll race is
// resolved by treating terminal re-delivery as a no-op and guarding
// the terminal transition with a compare-and-set in the repository.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/mediapress/transcoder/internal/coconut"
	"github.com/mediapress/transcoder/internal/logging"
	"github.com/mediapress/transcoder/internal/metrics"
	"github.com/mediapress/transcoder/internal/tracing"
	"github.com/mediapress/transcoder/pkg/models"
)

// Repository is the persistence surface the service needs.
type Repository interface {
	CreateJob(ctx context.Context, job *models.Job) error
	UpdateJob(ctx context.Context, job *models.Job) error
	UpdateJobStatus(ctx context.Context, jobID int64, from, to string) (bool, error)
	GetJob(ctx context.Context, id int64) (*models.Job, error)
	GetJobByCoconutID(ctx context.Context, coconutID string) (*models.Job, error)
}

// OutputStore persists output records on behalf of the lifecycle.
type OutputStore interface {
	SaveOutput(ctx context.Context, output *models.Output, validate bool) (bool, error)
	ClearOutputs(ctx context.Context, job *models.Job) bool
}

// Hook kinds. Veto hooks run before submission and may cancel it;
// observe hooks are notified unconditionally.
type (
	VetoHook     func(*models.Job) bool
	ObserveHook  func(*models.Job)
	ErrorHook    func(*models.Job, error)
	CompleteHook func(*models.Job, []*models.Output)
)

// Service runs the job lifecycle against the remote transcoding API.
type Service struct {
	client       coconut.Client
	repo         Repository
	store        OutputStore
	logger       *logging.Logger
	pollInterval time.Duration

	beforeCreate []VetoHook
	afterCreate  []ObserveHook
	onError      []ErrorHook
	onComplete   []CompleteHook
}

// NewService creates a jobs service.
func NewService(client coconut.Client, repo Repository, store OutputStore, logger *logging.Logger, pollInterval time.Duration) *Service {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &Service{
		client:       client,
		repo:         repo,
		store:        store,
		logger:       logger,
		pollInterval: pollInterval,
	}
}

// OnBeforeCreate registers a veto hook. Returning false cancels the
// submission; nothing is created remotely.
func (s *Service) OnBeforeCreate(h VetoHook) {
	s.beforeCreate = append(s.beforeCreate, h)
}

// OnAfterCreate registers a hook fired after submission,
// unconditionally.
func (s *Service) OnAfterCreate(h ObserveHook) {
	s.afterCreate = append(s.afterCreate, h)
}

// OnError registers a hook fired when a job terminally fails.
func (s *Service) OnError(h ErrorHook) {
	s.onError = append(s.onError, h)
}

// OnComplete registers a hook fired when a job completes, with its
// final outputs.
func (s *Service) OnComplete(h CompleteHook) {
	s.onComplete = append(s.onComplete, h)
}

// CreateJob validates and submits the job to the remote service, then
// persists the job and the initial state of its outputs. It reports
// whether the job was submitted: a veto hook cancelling the submission
// is a false with no error and no remote side effects.
func (s *Service) CreateJob(ctx context.Context, job *models.Job) (bool, error) {
	span, ctx := tracing.StartSpan(ctx, "jobs.CreateJob")
	defer tracing.FinishSpan(span)

	if err := job.Validate(); err != nil {
		tracing.LogError(span, err)
		return false, err
	}

	for _, h := range s.beforeCreate {
		if !h(job) {
			s.logger.WithJobID(job.ID).Info("job submission vetoed")
			return false, nil
		}
	}

	if job.ID == 0 {
		if err := s.repo.CreateJob(ctx, job); err != nil {
			tracing.LogError(span, err)
			return false, err
		}
	}
	tracing.SetTag(span, "job.id", job.ID)

	info, err := s.client.CreateJob(ctx, job.Params())
	if err != nil {
		tracing.LogError(span, err)
		return false, fmt.Errorf("failed to submit job %d: %w", job.ID, err)
	}

	job.CoconutID = info.ID
	job.Progress = info.Progress
	tracing.SetTag(span, "job.coconut_id", job.CoconutID)

	s.applyOutputData(job, info.Outputs)
	for _, o := range job.Outputs() {
		if _, err := s.store.SaveOutput(ctx, o, false); err != nil {
			tracing.LogError(span, err)
			return false, err
		}
	}

	if err := s.repo.UpdateJob(ctx, job); err != nil {
		tracing.LogError(span, err)
		return false, err
	}

	metrics.JobsSubmittedTotal.Inc()
	metrics.JobsInProgress.Inc()
	s.logger.LogJobEvent(job.ID, job.CoconutID, "created", job.Status)

	for _, h := range s.afterCreate {
		h(job)
	}

	return true, nil
}

// RunJob is the synchronous path: it submits the job when it has not
// been submitted yet, then polls the remote service at the configured
// interval while the remote status is "processing". It returns the
// final outputs, or the job failure.
func (s *Service) RunJob(ctx context.Context, job *models.Job) ([]*models.Output, error) {
	span, ctx := tracing.StartJobSpan(ctx, "jobs.RunJob", job.ID, job.CoconutID)
	defer tracing.FinishSpan(span)

	if job.CoconutID == "" {
		created, err := s.CreateJob(ctx, job)
		if err != nil {
			return nil, err
		}
		if !created {
			return nil, nil
		}
	}

	for {
		info, err := s.client.GetJob(ctx, job.CoconutID)
		if err != nil {
			tracing.LogError(span, err)
			return nil, fmt.Errorf("failed to poll job %d: %w", job.ID, err)
		}

		metrics.PollCyclesTotal.WithLabelValues(info.Status).Inc()
		s.logger.LogPollCycle(job.ID, job.CoconutID, info.Status, info.Progress)

		outputs, err := s.UpdateJob(ctx, job, info, true)
		if err != nil {
			return nil, err
		}
		if outputs != nil {
			return outputs, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.pollInterval):
		}
	}
}

// UpdateJob is the central status-transition handler, fed by polls and
// by job.* webhooks. Remote "error" fails the job, deletes in-flight
// outputs and surfaces the failure; remote "completed" merges probed
// metadata into the outputs, finalizes them and returns them; any
// other status returns nil and the caller re-polls. A job already in a
// terminal local status treats any re-delivery as a successful no-op.
func (s *Service) UpdateJob(ctx context.Context, job *models.Job, info *coconut.JobInfo, applyOutputs bool) ([]*models.Output, error) {
	if job.IsFinal() {
		s.logger.LogJobEvent(job.ID, job.CoconutID, "stale update ignored", job.Status)
		return job.Outputs(), nil
	}

	if applyOutputs {
		s.applyOutputData(job, info.Outputs)
	}

	switch info.Status {
	case coconut.StatusError:
		return nil, s.failJob(ctx, job, info)

	case coconut.StatusCompleted:
		return s.completeJob(ctx, job, info)

	default:
		if info.Progress != "" && info.Progress != job.Progress {
			job.Progress = info.Progress
			if err := s.repo.UpdateJob(ctx, job); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}
}

// failJob performs the error transition: the terminal status is
// claimed behind a compare-and-set first, and only the winner deletes
// the partial outputs and surfaces the failure. Losing the race means
// another process already finalized the job, whose outputs must
// survive untouched.
func (s *Service) failJob(ctx context.Context, job *models.Job, info *coconut.JobInfo) error {
	moved, err := s.repo.UpdateJobStatus(ctx, job.ID, models.JobStatusStarting, models.JobStatusFailed)
	if err != nil {
		return err
	}
	if !moved {
		// Another process already finalized the job. Adopt the row's
		// terminal status so a poll loop holding this snapshot stops.
		s.logger.LogJobEvent(job.ID, job.CoconutID, "terminal race lost", job.Status)
		if fresh, err := s.repo.GetJob(ctx, job.ID); err == nil {
			job.Status = fresh.Status
		}
		return nil
	}

	s.store.ClearOutputs(ctx, job)
	job.MarkFailed(info.ErrorCode, info.Message)
	if err := s.repo.UpdateJob(ctx, job); err != nil {
		return err
	}

	metrics.JobsInProgress.Dec()
	metrics.JobsFailedTotal.WithLabelValues(job.ErrorCode).Inc()
	s.logger.LogJobEvent(job.ID, job.CoconutID, "failed", job.Status)

	failure := &models.JobFailedError{
		JobID:     job.ID,
		CoconutID: job.CoconutID,
		Code:      job.ErrorCode,
		Message:   job.Message,
	}
	for _, h := range s.onError {
		h(job, failure)
	}
	return failure
}

// completeJob performs the success transition: probed metadata is
// merged into each output, outputs still in progress are finalized,
// everything is persisted and the completion hooks fire.
func (s *Service) completeJob(ctx context.Context, job *models.Job, info *coconut.JobInfo) ([]*models.Output, error) {
	moved, err := s.repo.UpdateJobStatus(ctx, job.ID, models.JobStatusStarting, models.JobStatusCompleted)
	if err != nil {
		return nil, err
	}
	if !moved {
		// Another process already finalized the job.
		s.logger.LogJobEvent(job.ID, job.CoconutID, "terminal race lost", job.Status)
		return job.Outputs(), nil
	}

	probed, err := s.client.GetMetadata(ctx, job.CoconutID)
	if err != nil {
		// Completion must not be lost to a metadata fetch hiccup.
		s.logger.WithError(err).WithJobID(job.ID).Warn("failed to fetch output metadata")
	}

	for key, urls := range info.OutputURLs {
		if o := job.FindOutput(key); o != nil && o.URL == "" && len(o.URLs) == 0 {
			if len(urls) == 1 {
				o.URL = urls[0]
			} else {
				o.URLs = urls
			}
		}
	}

	for _, o := range job.Outputs() {
		if meta, ok := probed[o.FullKey()]; ok {
			o.Metadata = meta
		}
		if !o.IsFinal() {
			o.Apply(models.OutputData{Status: successStatus(o.Type())})
		}
		if _, err := s.store.SaveOutput(ctx, o, false); err != nil {
			return nil, err
		}
		metrics.OutputsCompletedTotal.WithLabelValues(o.Type(), o.Status).Inc()
	}

	now := time.Now()
	job.MarkCompleted(now)
	if info.Progress != "" {
		job.Progress = info.Progress
	}
	if err := s.repo.UpdateJob(ctx, job); err != nil {
		return nil, err
	}

	metrics.JobsInProgress.Dec()
	metrics.JobsCompletedTotal.Inc()
	metrics.JobDuration.Observe(now.Sub(job.CreatedAt).Seconds())
	s.logger.LogJobEvent(job.ID, job.CoconutID, "completed", job.Status)

	outputs := job.Outputs()
	for _, h := range s.onComplete {
		h(job, outputs)
	}
	return outputs, nil
}

// UpdateJobInput merges input.* webhook data into the job's input
// state. Re-delivery after the job is final is a successful no-op.
func (s *Service) UpdateJobInput(ctx context.Context, job *models.Job, data models.InputData) error {
	if job.IsFinal() {
		s.logger.LogJobEvent(job.ID, job.CoconutID, "stale input update ignored", job.Status)
		return nil
	}

	job.Input.Apply(data)
	return s.repo.UpdateJob(ctx, job)
}

// UpdateJobOutput merges output.* webhook data into the matching
// output. An unknown key surfaces as not-found; an update for an
// already-final output is a successful no-op.
func (s *Service) UpdateJobOutput(ctx context.Context, job *models.Job, data models.OutputData) (*models.Output, error) {
	output := job.FindOutput(data.Key)
	if output == nil {
		return nil, fmt.Errorf("output %q of job %d: %w", data.Key, job.ID, models.ErrNotFound)
	}

	if !output.Apply(data) {
		metrics.WebhookStaleTotal.Inc()
		s.logger.LogOutputEvent(job.ID, output.FullKey(), output.Status, "stale update ignored")
		return output, nil
	}

	if _, err := s.store.SaveOutput(ctx, output, false); err != nil {
		return nil, err
	}
	if output.IsFinal() {
		metrics.OutputsCompletedTotal.WithLabelValues(output.Type(), output.Status).Inc()
	}
	return output, nil
}

// GetJob loads a job by local ID.
func (s *Service) GetJob(ctx context.Context, id int64) (*models.Job, error) {
	return s.repo.GetJob(ctx, id)
}

// GetJobByCoconutID loads a job by the remote reference carried in
// webhooks.
func (s *Service) GetJobByCoconutID(ctx context.Context, coconutID string) (*models.Job, error) {
	return s.repo.GetJobByCoconutID(ctx, coconutID)
}

// applyOutputData merges remote per-output state into the matching
// outputs, correlated by key.
func (s *Service) applyOutputData(job *models.Job, data []models.OutputData) {
	for _, d := range data {
		if o := job.FindOutput(d.Key); o != nil {
			o.Apply(d)
		}
	}
}

// successStatus is the terminal success status for an output type:
// images are created, encoded otherwise.
func successStatus(outputType string) string {
	if outputType == "image" {
		return outputType + "." + models.StatusCreated
	}
	return outputType + "." + models.StatusEncoded
}
