package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/mediapress/transcoder/pkg/models"
)

// Repository provides database operations
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Jobs

// CreateJob creates a new job record. The job's input, storage and
// notification travel as JSON blobs on the row; outputs live in their
// own table.
func (r *Repository) CreateJob(ctx context.Context, job *models.Job) error {
	input, storage, notification, err := marshalJobParts(job)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO jobs (coconut_id, status, progress, error_code, message,
		                  output_path_format, metadata, input, storage, notification, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at
	`

	err = r.db.Pool.QueryRow(ctx, query,
		job.CoconutID, job.Status, job.Progress, job.ErrorCode, job.Message,
		job.OutputPathFormat, job.Metadata, input, storage, notification, job.CompletedAt,
	).Scan(&job.ID, &job.CreatedAt, &job.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	if job.Input != nil {
		job.Input.JobID = job.ID
	}
	for _, o := range job.Outputs() {
		o.JobID = job.ID
	}
	return nil
}

// GetJob retrieves a job by ID, outputs included.
func (r *Repository) GetJob(ctx context.Context, id int64) (*models.Job, error) {
	return r.getJob(ctx, "id = $1", id)
}

// GetJobByCoconutID retrieves a job by the remote service's job
// reference, which is what webhooks carry.
func (r *Repository) GetJobByCoconutID(ctx context.Context, coconutID string) (*models.Job, error) {
	return r.getJob(ctx, "coconut_id = $1", coconutID)
}

func (r *Repository) getJob(ctx context.Context, where string, arg interface{}) (*models.Job, error) {
	var (
		job          models.Job
		input        []byte
		storage      []byte
		notification []byte
	)

	query := `
		SELECT id, coconut_id, status, progress, error_code, message,
		       output_path_format, metadata, input, storage, notification,
		       created_at, updated_at, completed_at
		FROM jobs
		WHERE ` + where

	err := r.db.Pool.QueryRow(ctx, query, arg).Scan(
		&job.ID, &job.CoconutID, &job.Status, &job.Progress, &job.ErrorCode,
		&job.Message, &job.OutputPathFormat, &job.Metadata, &input, &storage,
		&notification, &job.CreatedAt, &job.UpdatedAt, &job.CompletedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	if err := unmarshalJobParts(&job, input, storage, notification); err != nil {
		return nil, err
	}

	outputs, err := r.GetOutputsByJobID(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	job.SetOutputs(outputs)

	return &job, nil
}

// UpdateJob updates a job record
func (r *Repository) UpdateJob(ctx context.Context, job *models.Job) error {
	input, storage, notification, err := marshalJobParts(job)
	if err != nil {
		return err
	}

	query := `
		UPDATE jobs
		SET coconut_id = $2, status = $3, progress = $4, error_code = $5, message = $6,
		    output_path_format = $7, metadata = $8, input = $9, storage = $10,
		    notification = $11, completed_at = $12, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err = r.db.Pool.QueryRow(ctx, query,
		job.ID, job.CoconutID, job.Status, job.Progress, job.ErrorCode, job.Message,
		job.OutputPathFormat, job.Metadata, input, storage, notification, job.CompletedAt,
	).Scan(&job.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	return nil
}

// UpdateJobStatus transitions a job's status only when the row still
// holds the expected one. It reports whether the transition happened,
// letting callers detect a concurrent update instead of clobbering a
// terminal state.
func (r *Repository) UpdateJobStatus(ctx context.Context, jobID int64, from, to string) (bool, error) {
	query := `
		UPDATE jobs
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`

	tag, err := r.db.Pool.Exec(ctx, query, jobID, from, to)
	if err != nil {
		return false, fmt.Errorf("failed to update job status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListJobsByStatus retrieves jobs in a given status, oldest first, for
// the worker to resume after a restart.
func (r *Repository) ListJobsByStatus(ctx context.Context, status string, limit int) ([]*models.Job, error) {
	query := `
		SELECT id
		FROM jobs
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan job id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	var jobs []*models.Job
	for _, id := range ids {
		job, err := r.GetJob(ctx, id)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	return jobs, nil
}

// Outputs

// CreateOutput creates a new output record. The request-side settings
// of the output travel as one JSON blob, with the lifecycle columns
// kept relational for querying.
func (r *Repository) CreateOutput(ctx context.Context, output *models.Output) error {
	data, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}

	query := `
		INSERT INTO outputs (job_id, full_key, status, data)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`

	err = r.db.Pool.QueryRow(ctx, query,
		output.JobID, output.FullKey(), output.Status, data,
	).Scan(&output.ID, &output.CreatedAt, &output.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}

	return nil
}

// UpdateOutput updates an output record
func (r *Repository) UpdateOutput(ctx context.Context, output *models.Output) error {
	data, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}

	query := `
		UPDATE outputs
		SET full_key = $2, status = $3, data = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err = r.db.Pool.QueryRow(ctx, query,
		output.ID, output.FullKey(), output.Status, data,
	).Scan(&output.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update output: %w", err)
	}

	return nil
}

// GetOutputsByJobID retrieves all outputs for a job in creation order.
func (r *Repository) GetOutputsByJobID(ctx context.Context, jobID int64) ([]*models.Output, error) {
	query := `
		SELECT id, job_id, data, created_at, updated_at
		FROM outputs
		WHERE job_id = $1
		ORDER BY id ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get outputs: %w", err)
	}
	defer rows.Close()

	var outputs []*models.Output
	for rows.Next() {
		var (
			output models.Output
			data   []byte
		)
		if err := rows.Scan(&output.ID, &output.JobID, &data, &output.CreatedAt, &output.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan output: %w", err)
		}

		id, jobID, created, updated := output.ID, output.JobID, output.CreatedAt, output.UpdatedAt
		if err := json.Unmarshal(data, &output); err != nil {
			return nil, fmt.Errorf("failed to decode output: %w", err)
		}
		output.ID, output.JobID, output.CreatedAt, output.UpdatedAt = id, jobID, created, updated

		outputs = append(outputs, &output)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get outputs: %w", err)
	}

	return outputs, nil
}

// DeleteOutput deletes an output record
func (r *Repository) DeleteOutput(ctx context.Context, id int64) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM outputs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete output: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// DeleteOutputsByJobID deletes all outputs of a job
func (r *Repository) DeleteOutputsByJobID(ctx context.Context, jobID int64) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM outputs WHERE job_id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("failed to delete outputs: %w", err)
	}
	return nil
}

func marshalJobParts(job *models.Job) (input, storage, notification []byte, err error) {
	if job.Input != nil {
		if input, err = json.Marshal(job.Input); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to encode job input: %w", err)
		}
	}
	if job.Storage != nil {
		if storage, err = json.Marshal(job.Storage); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to encode job storage: %w", err)
		}
	}
	if job.Notification != nil {
		if notification, err = json.Marshal(job.Notification); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to encode job notification: %w", err)
		}
	}
	return input, storage, notification, nil
}

func unmarshalJobParts(job *models.Job, input, storage, notification []byte) error {
	if len(input) > 0 {
		job.Input = &models.Input{}
		if err := json.Unmarshal(input, job.Input); err != nil {
			return fmt.Errorf("failed to decode job input: %w", err)
		}
		job.Input.JobID = job.ID
	}
	if len(storage) > 0 {
		job.Storage = &models.Storage{}
		if err := json.Unmarshal(storage, job.Storage); err != nil {
			return fmt.Errorf("failed to decode job storage: %w", err)
		}
	}
	if len(notification) > 0 {
		job.Notification = &models.Notification{}
		if err := json.Unmarshal(notification, job.Notification); err != nil {
			return fmt.Errorf("failed to decode job notification: %w", err)
		}
	}
	return nil
}
