// Package notify posts job lifecycle callbacks to the host CMS so it
// can react to finished transcodes without polling.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mediapress/transcoder/internal/logging"
	"github.com/mediapress/transcoder/pkg/models"
)

// Callback events.
const (
	EventJobCompleted = "job.completed"
	EventJobFailed    = "job.failed"
)

// retryDelays spaces redelivery attempts after a failed callback.
var retryDelays = []time.Duration{time.Second, 5 * time.Second, 15 * time.Second}

// Event is the callback body posted to the CMS.
type Event struct {
	ID        string           `json:"id"`
	Event     string           `json:"event"`
	Timestamp time.Time        `json:"timestamp"`
	Job       *models.Job      `json:"job"`
	Outputs   []*models.Output `json:"outputs,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// Notifier delivers callbacks over HTTP, signing them when a shared
// secret is configured.
type Notifier struct {
	client *http.Client
	url    string
	secret string
	logger *logging.Logger
}

// New creates a notifier posting to url. Deliveries are signed with
// secret when it is non-empty.
func New(url, secret string, logger *logging.Logger) *Notifier {
	return &Notifier{
		client: &http.Client{Timeout: 30 * time.Second},
		url:    url,
		secret: secret,
		logger: logger,
	}
}

// JobCompleted posts a completion callback. Delivery happens in the
// background so the job run loop is never blocked on the CMS.
func (n *Notifier) JobCompleted(job *models.Job, outputs []*models.Output) {
	event := Event{
		ID:        uuid.New().String(),
		Event:     EventJobCompleted,
		Timestamp: time.Now(),
		Job:       job,
		Outputs:   outputs,
	}
	go n.deliver(event)
}

// JobFailed posts a failure callback.
func (n *Notifier) JobFailed(job *models.Job, err error) {
	event := Event{
		ID:        uuid.New().String(),
		Event:     EventJobFailed,
		Timestamp: time.Now(),
		Job:       job,
		Error:     err.Error(),
	}
	go n.deliver(event)
}

func (n *Notifier) deliver(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		n.logger.ErrorWithErr("Failed to marshal callback payload", err)
		return
	}

	for attempt := 0; ; attempt++ {
		if n.post(payload, event) {
			return
		}
		if attempt >= len(retryDelays) {
			n.logger.Errorf("Callback %s for job %d undeliverable, giving up", event.Event, event.Job.ID)
			return
		}
		time.Sleep(retryDelays[attempt])
	}
}

func (n *Notifier) post(payload []byte, event Event) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "POST", n.url, bytes.NewReader(payload))
	if err != nil {
		n.logger.ErrorWithErr("Failed to build callback request", err)
		return false
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Transcoder-Callback/1.0")
	req.Header.Set("X-Callback-Event", event.Event)
	req.Header.Set("X-Callback-Delivery", event.ID)
	if n.secret != "" {
		req.Header.Set("X-Callback-Signature", Signature(payload, n.secret))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warnf("Callback delivery failed: %v", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return true
	}
	n.logger.Warnf("Callback rejected with status %d", resp.StatusCode)
	return false
}

// Signature computes the HMAC-SHA256 signature header value for a
// callback payload.
func Signature(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}
