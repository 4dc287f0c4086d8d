package outputs

import (
	"context"
	"sync"
	"time"

	"github.com/mediapress/transcoder/internal/cache"
	"github.com/mediapress/transcoder/internal/logging"
	"github.com/mediapress/transcoder/pkg/models"
)

// cacheTTL bounds how long memoized outputs live in Redis.
const cacheTTL = 10 * time.Minute

// Repository is the persistence surface the service needs.
type Repository interface {
	CreateOutput(ctx context.Context, output *models.Output) error
	UpdateOutput(ctx context.Context, output *models.Output) error
	DeleteOutput(ctx context.Context, id int64) error
	DeleteOutputsByJobID(ctx context.Context, jobID int64) error
	GetOutputsByJobID(ctx context.Context, jobID int64) ([]*models.Output, error)
}

// Hook observes an output around a save.
type Hook func(*models.Output)

// Service persists and queries outputs. Query results are memoized
// per source identity and shared through Redis; every write drops the
// cached listings for the touched job so the next read reflects it.
type Service struct {
	repo   Repository
	cache  *cache.Cache
	logger *logging.Logger

	mu   sync.Mutex
	memo map[string][]*models.Output

	beforeSave []Hook
	afterSave  []Hook
}

// NewService creates an output service. The cache may be nil, in which
// case only the process-local memo applies.
func NewService(repo Repository, c *cache.Cache, logger *logging.Logger) *Service {
	return &Service{
		repo:   repo,
		cache:  c,
		logger: logger,
		memo:   make(map[string][]*models.Output),
	}
}

// OnBeforeSave registers a hook fired before an output is persisted.
func (s *Service) OnBeforeSave(h Hook) {
	s.beforeSave = append(s.beforeSave, h)
}

// OnAfterSave registers a hook fired after an output is persisted.
func (s *Service) OnAfterSave(h Hook) {
	s.afterSave = append(s.afterSave, h)
}

// SaveOutput persists the output, inserting when it has no identity
// yet. It reports whether the save happened: a validation failure is a
// recoverable false, not an error. Server-assigned identity and
// timestamps are back-filled onto the model.
func (s *Service) SaveOutput(ctx context.Context, output *models.Output, validate bool) (bool, error) {
	if validate {
		if err := output.Validate(); err != nil {
			s.logger.WithError(err).WithOutputKey(output.FullKey()).Warn("output failed validation, not saved")
			return false, nil
		}
	}

	for _, h := range s.beforeSave {
		h(output)
	}

	var err error
	if output.ID == 0 {
		err = s.repo.CreateOutput(ctx, output)
	} else {
		err = s.repo.UpdateOutput(ctx, output)
	}
	if err != nil {
		return false, err
	}

	for _, h := range s.afterSave {
		h(output)
	}

	s.invalidate(ctx, output.JobID, output.Job())
	s.logger.LogOutputEvent(output.JobID, output.FullKey(), output.Status, output.Progress)
	return true, nil
}

// DeleteOutput removes the output record. A missing record counts as
// deleted.
func (s *Service) DeleteOutput(ctx context.Context, output *models.Output) (bool, error) {
	if output.ID == 0 {
		return true, nil
	}

	err := s.repo.DeleteOutput(ctx, output.ID)
	if err == models.ErrNotFound {
		return true, nil
	}
	if err != nil {
		return false, err
	}

	s.invalidate(ctx, output.JobID, output.Job())
	output.ID = 0
	return true, nil
}

// ClearOutputs deletes every output of the job in one statement and
// drops the cached listings for the job and its source identity.
func (s *Service) ClearOutputs(ctx context.Context, job *models.Job) bool {
	if err := s.repo.DeleteOutputsByJobID(ctx, job.ID); err != nil {
		s.logger.WithError(err).WithJobID(job.ID).Error("failed to clear outputs")
		return false
	}
	s.invalidate(ctx, job.ID, job)
	return true
}

// GetOutputsByJobID returns the job's outputs, memoized under the
// job's identity.
func (s *Service) GetOutputsByJobID(ctx context.Context, jobID int64) ([]*models.Output, error) {
	return s.getMemoized(ctx, cache.JobKey(jobID), jobID)
}

// GetJobOutputs returns the outputs of the job's source, memoized
// under the source identity (asset reference or URL hash) so repeated
// lookups within one request resolve without store round-trips.
func (s *Service) GetJobOutputs(ctx context.Context, job *models.Job) ([]*models.Output, error) {
	key := cache.SourceKey(job.Input)
	if key == "" {
		key = cache.JobKey(job.ID)
	}
	return s.getMemoized(ctx, key, job.ID)
}

func (s *Service) getMemoized(ctx context.Context, key string, jobID int64) ([]*models.Output, error) {
	s.mu.Lock()
	if outputs, ok := s.memo[key]; ok {
		s.mu.Unlock()
		return outputs, nil
	}
	s.mu.Unlock()

	if s.cache != nil {
		outputs, err := s.cache.GetOutputs(ctx, key)
		if err != nil {
			s.logger.WithError(err).Warn("output cache read failed")
		}
		if outputs != nil {
			s.remember(key, outputs)
			return outputs, nil
		}
	}

	outputs, err := s.repo.GetOutputsByJobID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	s.remember(key, outputs)

	if s.cache != nil {
		if err := s.cache.SetOutputs(ctx, key, outputs, cacheTTL); err != nil {
			s.logger.WithError(err).Warn("output cache write failed")
		}
	}

	return outputs, nil
}

func (s *Service) remember(key string, outputs []*models.Output) {
	s.mu.Lock()
	s.memo[key] = outputs
	s.mu.Unlock()
}

// invalidate drops the memoized and Redis-cached listings touched by a
// write: the job identity, and the source identity when the owning job
// is attached.
func (s *Service) invalidate(ctx context.Context, jobID int64, job *models.Job) {
	keys := []string{cache.JobKey(jobID)}
	if job != nil {
		if key := cache.SourceKey(job.Input); key != "" {
			keys = append(keys, key)
		}
	}

	s.mu.Lock()
	for _, key := range keys {
		delete(s.memo, key)
	}
	s.mu.Unlock()

	if s.cache == nil {
		return
	}
	for _, key := range keys {
		if err := s.cache.DeleteOutputs(ctx, key); err != nil {
			s.logger.WithError(err).Warn("output cache invalidation failed")
		}
	}
}
