package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mediapress/transcoder/internal/cache"
	"github.com/mediapress/transcoder/internal/coconut"
	"github.com/mediapress/transcoder/internal/config"
	"github.com/mediapress/transcoder/internal/database"
	"github.com/mediapress/transcoder/internal/jobs"
	"github.com/mediapress/transcoder/internal/logging"
	"github.com/mediapress/transcoder/internal/metrics"
	"github.com/mediapress/transcoder/internal/notify"
	"github.com/mediapress/transcoder/internal/outputs"
	"github.com/mediapress/transcoder/internal/queue"
	"github.com/mediapress/transcoder/internal/tracing"
	"github.com/mediapress/transcoder/pkg/models"
)

// resumeBatch caps how many orphaned jobs one worker resubmits at
// startup.
const resumeBatch = 100

// jobLister and submitter are the narrow surfaces the resume pass
// needs.
type jobLister interface {
	ListJobsByStatus(ctx context.Context, status string, limit int) ([]*models.Job, error)
}

type submitter interface {
	PublishSubmission(ctx context.Context, jobID int64) error
}

// resumeInFlight republishes a submission for every job still marked
// starting, so work orphaned by a crash or a dead-lettered message
// gets picked up again. Duplicate submissions are harmless: the
// handler skips final jobs and the run lock keeps concurrent workers
// off the same job.
func resumeInFlight(ctx context.Context, repo jobLister, q submitter, logger *logging.Logger) int {
	orphaned, err := repo.ListJobsByStatus(ctx, models.JobStatusStarting, resumeBatch)
	if err != nil {
		logger.Errorf("Failed to list in-flight jobs: %v", err)
		return 0
	}

	resumed := 0
	for _, job := range orphaned {
		if err := q.PublishSubmission(ctx, job.ID); err != nil {
			logger.Errorf("Failed to resubmit job %d: %v", job.ID, err)
			continue
		}
		logger.Infof("Resubmitted in-flight job %d", job.ID)
		resumed++
	}
	return resumed
}

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	if cfg.Tracing.Enabled {
		_, closer, err := tracing.InitTracer(cfg.Tracing.ServiceName+"-worker", cfg.Tracing.JaegerEndpoint)
		if err != nil {
			logger.Fatalf("Failed to initialize tracer: %v", err)
		}
		defer closer.Close()
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	repo := database.NewRepository(db)

	redisCache, err := cache.NewCache(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Warnf("Redis unavailable, continuing without cache: %v", err)
		redisCache = nil
	}

	q, err := queue.New(cfg.Queue)
	if err != nil {
		logger.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()

	client := coconut.NewHTTPClient(cfg.Coconut)
	outputService := outputs.NewService(repo, redisCache, logger)
	jobService := jobs.NewService(client, repo, outputService, logger, cfg.Jobs.PollInterval)

	if cfg.Notify.URL != "" {
		notifier := notify.New(cfg.Notify.URL, cfg.Notify.Secret, logger)
		jobService.OnComplete(notifier.JobCompleted)
		jobService.OnError(notifier.JobFailed)
	}

	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(cfg.Metrics.Port)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.ErrorWithErr("Metrics server failed", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutting down worker gracefully...")
		cancel()
	}()

	resumeInFlight(ctx, repo, q, logger)

	// A remote-reported job failure is a processed outcome: the failure
	// is recorded on the job row, so the submission is acked rather than
	// dead-lettered. Transcoding jobs are never retried from here.
	handler := func(ctx context.Context, sub queue.Submission) error {
		if redisCache != nil {
			resource := fmt.Sprintf("job:run:%d", sub.JobID)
			acquired, err := redisCache.AcquireLock(ctx, resource, cfg.Queue.TTR)
			if err != nil {
				logger.Warnf("Lock acquisition for job %d failed: %v", sub.JobID, err)
			} else if !acquired {
				logger.Infof("Job %d is being run by another worker, skipping", sub.JobID)
				return nil
			} else {
				defer redisCache.ReleaseLock(context.Background(), resource)
			}
		}

		job, err := repo.GetJob(ctx, sub.JobID)
		if err != nil {
			logger.Errorf("Failed to load job %d: %v", sub.JobID, err)
			return err
		}
		if job.IsFinal() {
			logger.Infof("Job %d already final (%s), skipping", job.ID, job.Status)
			return nil
		}

		logger.Infof("Processing job %d", job.ID)
		if _, err := jobService.RunJob(ctx, job); err != nil {
			if models.IsJobFailed(err) {
				logger.Warnf("Job %d failed remotely: %v", job.ID, err)
				return nil
			}
			logger.Errorf("Failed to run job %d: %v", job.ID, err)
			return err
		}

		logger.Infof("Successfully processed job %d", job.ID)
		return nil
	}

	logger.Info("Worker started, waiting for submissions...")
	if err := q.ConsumeSubmissions(ctx, handler); err != nil {
		logger.Fatalf("Failed to consume submissions: %v", err)
	}

	<-ctx.Done()
	logger.Info("Worker stopped")
}
