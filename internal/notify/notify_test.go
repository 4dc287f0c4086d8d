package notify

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediapress/transcoder/internal/logging"
	"github.com/mediapress/transcoder/pkg/models"
)

func testJob() *models.Job {
	job := models.NewJob(models.NewURLInput("https://cdn.example.com/library/clip.mov"))
	job.ID = 42
	job.CoconutID = "co-abc"
	return job
}

type received struct {
	event     Event
	signature string
	header    string
}

func TestJobCompletedDelivery(t *testing.T) {
	got := make(chan received, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var event Event
		_ = json.Unmarshal(body, &event)
		got <- received{
			event:     event,
			signature: r.Header.Get("X-Callback-Signature"),
			header:    r.Header.Get("X-Callback-Event"),
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	notifier := New(srv.URL, "hunter2", logging.NewNopLogger())

	job := testJob()
	out := models.NewOutput("mp4:1080p")
	out.Key = "hd"
	notifier.JobCompleted(job, []*models.Output{out})

	select {
	case r := <-got:
		assert.Equal(t, EventJobCompleted, r.event.Event)
		assert.Equal(t, EventJobCompleted, r.header)
		assert.Equal(t, int64(42), r.event.Job.ID)
		require.Len(t, r.event.Outputs, 1)
		assert.Equal(t, "hd", r.event.Outputs[0].Key)
		assert.NotEmpty(t, r.signature)
	case <-time.After(5 * time.Second):
		t.Fatal("callback was not delivered")
	}
}

func TestJobFailedDelivery(t *testing.T) {
	got := make(chan Event, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var event Event
		_ = json.Unmarshal(body, &event)
		got <- event
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	notifier := New(srv.URL, "", logging.NewNopLogger())
	notifier.JobFailed(testJob(), errors.New("input download failed"))

	select {
	case event := <-got:
		assert.Equal(t, EventJobFailed, event.Event)
		assert.Equal(t, "input download failed", event.Error)
	case <-time.After(5 * time.Second):
		t.Fatal("callback was not delivered")
	}
}

func TestDeliveryRetriesOnServerError(t *testing.T) {
	orig := retryDelays
	retryDelays = []time.Duration{time.Millisecond, time.Millisecond}
	defer func() { retryDelays = orig }()

	var attempts atomic.Int32
	done := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		done <- struct{}{}
	}))
	defer srv.Close()

	notifier := New(srv.URL, "", logging.NewNopLogger())
	notifier.JobCompleted(testJob(), nil)

	select {
	case <-done:
		assert.Equal(t, int32(2), attempts.Load())
	case <-time.After(5 * time.Second):
		t.Fatal("callback was not redelivered")
	}
}

func TestSignature(t *testing.T) {
	payload := []byte(`{"event":"job.completed"}`)
	sig := Signature(payload, "hunter2")

	assert.Equal(t, sig, Signature(payload, "hunter2"))
	assert.NotEqual(t, sig, Signature(payload, "other"))
	assert.Contains(t, sig, "sha256=")
}
