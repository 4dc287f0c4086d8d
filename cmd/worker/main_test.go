package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mediapress/transcoder/internal/logging"
	"github.com/mediapress/transcoder/pkg/models"
)

type fakeLister struct {
	jobs    []*models.Job
	listErr error
	status  string
}

func (f *fakeLister) ListJobsByStatus(ctx context.Context, status string, limit int) ([]*models.Job, error) {
	f.status = status
	return f.jobs, f.listErr
}

type fakeSubmitter struct {
	published []int64
	failIDs   map[int64]bool
}

func (f *fakeSubmitter) PublishSubmission(ctx context.Context, jobID int64) error {
	if f.failIDs[jobID] {
		return errors.New("broker unavailable")
	}
	f.published = append(f.published, jobID)
	return nil
}

func TestResumeInFlight(t *testing.T) {
	lister := &fakeLister{jobs: []*models.Job{{ID: 3}, {ID: 8}}}
	sub := &fakeSubmitter{}

	resumed := resumeInFlight(context.Background(), lister, sub, logging.NewNopLogger())
	assert.Equal(t, 2, resumed)
	assert.Equal(t, []int64{3, 8}, sub.published)
	assert.Equal(t, models.JobStatusStarting, lister.status, "only in-flight jobs are resumable")
}

func TestResumeInFlightPartialFailure(t *testing.T) {
	lister := &fakeLister{jobs: []*models.Job{{ID: 3}, {ID: 8}}}
	sub := &fakeSubmitter{failIDs: map[int64]bool{3: true}}

	resumed := resumeInFlight(context.Background(), lister, sub, logging.NewNopLogger())
	assert.Equal(t, 1, resumed)
	assert.Equal(t, []int64{8}, sub.published)
}

func TestResumeInFlightListFailure(t *testing.T) {
	lister := &fakeLister{listErr: errors.New("db down")}
	sub := &fakeSubmitter{}

	resumed := resumeInFlight(context.Background(), lister, sub, logging.NewNopLogger())
	assert.Zero(t, resumed)
	assert.Empty(t, sub.published)
}
