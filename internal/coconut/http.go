package coconut

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mediapress/transcoder/internal/config"
	"github.com/mediapress/transcoder/internal/tracing"
	"github.com/mediapress/transcoder/pkg/models"
)

// HTTPClient implements Client against the hosted API.
type HTTPClient struct {
	endpoint string
	apiKey   string
	region   string
	client   *http.Client
}

// NewHTTPClient creates a client for the configured API endpoint.
func NewHTTPClient(cfg config.CoconutConfig) *HTTPClient {
	return &HTTPClient{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		region:   cfg.Region,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CreateJob submits a new transcoding job.
func (c *HTTPClient) CreateJob(ctx context.Context, params map[string]interface{}) (*JobInfo, error) {
	span, ctx := tracing.StartSpan(ctx, "coconut.create_job")
	defer tracing.FinishSpan(span)

	var info JobInfo
	if err := c.do(ctx, http.MethodPost, "/jobs", params, &info); err != nil {
		tracing.LogError(span, err)
		return nil, err
	}
	return &info, nil
}

// GetJob fetches the current remote state of a job.
func (c *HTTPClient) GetJob(ctx context.Context, id string) (*JobInfo, error) {
	span, ctx := tracing.StartSpan(ctx, "coconut.get_job")
	defer tracing.FinishSpan(span)
	tracing.SetTag(span, "coconut.job_id", id)

	var info JobInfo
	if err := c.do(ctx, http.MethodGet, "/jobs/"+id, nil, &info); err != nil {
		tracing.LogError(span, err)
		return nil, err
	}
	return &info, nil
}

// GetMetadata fetches probed metadata for every output of a job.
func (c *HTTPClient) GetMetadata(ctx context.Context, id string) (map[string]models.Metadata, error) {
	span, ctx := tracing.StartSpan(ctx, "coconut.get_metadata")
	defer tracing.FinishSpan(span)
	tracing.SetTag(span, "coconut.job_id", id)

	var body struct {
		Metadata map[string]models.Metadata `json:"metadata"`
	}
	if err := c.do(ctx, http.MethodGet, "/metadata/jobs/"+id, nil, &body); err != nil {
		tracing.LogError(span, err)
		return nil, err
	}
	return body.Metadata, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, payload interface{}, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.SetBasicAuth(c.apiKey, "")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.region != "" {
		req.Header.Set("X-Coconut-Region", c.region)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", path, models.ErrNotFound)

	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		var apiErr struct {
			ErrorCode string `json:"error_code"`
			Message   string `json:"message"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("api error %s: %s", apiErr.ErrorCode, apiErr.Message)
		}
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
