package models

import (
	"time"

	"github.com/mediapress/transcoder/internal/format"
)

// Job statuses.
const (
	JobStatusStarting  = "job.starting"
	JobStatusCompleted = "job.completed"
	JobStatusFailed    = "job.failed"
)

// Job is one transcoding request: a source input, a destination
// storage, a notification config and a set of requested outputs. The
// job exclusively owns all of them.
type Job struct {
	ID        int64  `json:"id" db:"id"`
	CoconutID string `json:"coconut_id,omitempty" db:"coconut_id"`

	Status    string `json:"status" db:"status"`
	Progress  string `json:"progress,omitempty" db:"progress"`
	ErrorCode string `json:"error_code,omitempty" db:"error_code"`
	Message   string `json:"message,omitempty" db:"message"`

	Input            *Input        `json:"input"`
	Storage          *Storage      `json:"storage"`
	Notification     *Notification `json:"notification,omitempty"`
	OutputPathFormat string        `json:"output_path_format,omitempty" db:"output_path_format"`
	Metadata         Metadata      `json:"metadata,omitempty" db:"metadata"`

	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`

	// Outputs keyed by base key, insertion-ordered. Map keys are the
	// stable identities correlating webhook data back to outputs.
	outputKeys []string
	outputs    map[string][]*Output
}

// NewJob builds a job in the not-yet-submitted state.
func NewJob(input *Input) *Job {
	return &Job{
		Status:  JobStatusStarting,
		Input:   input,
		outputs: make(map[string][]*Output),
	}
}

// baseKey is the output's identity without the format-index suffix.
func baseKey(o *Output) string {
	if o.Key != "" {
		return o.Key
	}
	return format.Encode(o.Format)
}

// AddOutput attaches an output to the job. When several outputs share
// one base key they are assigned 1-based format indexes. Once the job
// has been submitted (CoconutID set), adding reconciles against
// existing outputs by key instead of appending a duplicate.
func (j *Job) AddOutput(o *Output) *Output {
	if j.outputs == nil {
		j.outputs = make(map[string][]*Output)
	}

	base := baseKey(o)
	list := j.outputs[base]

	if j.CoconutID != "" {
		for _, existing := range list {
			if existing.FullKey() == o.FullKey() {
				if o.Path != "" {
					existing.Path = o.Path
				}
				return existing
			}
		}
	}

	if len(list) == 1 && list[0].FormatIndex == 0 {
		list[0].FormatIndex = 1
	}
	if len(list) > 0 {
		o.FormatIndex = len(list) + 1
	}

	if len(list) == 0 {
		j.outputKeys = append(j.outputKeys, base)
	}
	j.outputs[base] = append(list, o)

	o.job = j
	o.JobID = j.ID
	return o
}

// SetOutputs replaces the output collection, e.g. when rehydrating a
// job from the store.
func (j *Job) SetOutputs(outputs []*Output) {
	j.outputKeys = nil
	j.outputs = make(map[string][]*Output)
	for _, o := range outputs {
		base := baseKey(o)
		if _, seen := j.outputs[base]; !seen {
			j.outputKeys = append(j.outputKeys, base)
		}
		j.outputs[base] = append(j.outputs[base], o)
		o.job = j
		o.JobID = j.ID
	}
}

// Outputs returns all outputs in insertion order.
func (j *Job) Outputs() []*Output {
	var all []*Output
	for _, key := range j.outputKeys {
		all = append(all, j.outputs[key]...)
	}
	return all
}

// FindOutput returns the output whose full key matches, or nil.
func (j *Job) FindOutput(fullKey string) *Output {
	for _, o := range j.Outputs() {
		if o.FullKey() == fullKey {
			return o
		}
	}
	return nil
}

// InProgress returns the outputs that have not reached a final status.
func (j *Job) InProgress() []*Output {
	var pending []*Output
	for _, o := range j.Outputs() {
		if !o.IsFinal() {
			pending = append(pending, o)
		}
	}
	return pending
}

// IsFinal reports whether the job reached a terminal status.
func (j *Job) IsFinal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// MarkCompleted transitions the job to its terminal success state.
// A no-op when already final.
func (j *Job) MarkCompleted(at time.Time) {
	if j.IsFinal() {
		return
	}
	j.Status = JobStatusCompleted
	j.CompletedAt = &at
}

// MarkFailed transitions the job to its terminal failure state.
func (j *Job) MarkFailed(code, message string) {
	if j.IsFinal() {
		return
	}
	j.Status = JobStatusFailed
	j.ErrorCode = code
	j.Message = message
}

// Validate checks the job is submittable: input, storage and at least
// one valid output.
func (j *Job) Validate() error {
	if j.Input == nil {
		return ConfigError("job requires an input")
	}
	if err := j.Input.Validate(); err != nil {
		return err
	}

	if j.Storage == nil {
		return ConfigError("job requires a storage")
	}
	if err := j.Storage.Validate(); err != nil {
		return err
	}

	if j.Notification != nil {
		if err := j.Notification.Validate(); err != nil {
			return err
		}
	}

	outputs := j.Outputs()
	if len(outputs) == 0 {
		return ConfigError("job requires at least one output")
	}
	for _, o := range outputs {
		if err := o.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Params serializes the job into the remote create-job payload.
// Outputs are keyed by their full key so webhook data correlates back
// without translation.
func (j *Job) Params() map[string]interface{} {
	outputs := map[string]interface{}{}
	for _, o := range j.Outputs() {
		outputs[o.FullKey()] = o.Params()
	}

	params := map[string]interface{}{
		"input":   j.Input.Params(),
		"storage": j.Storage.Params(),
		"outputs": outputs,
	}
	if j.Notification != nil {
		params["notification"] = j.Notification.Params()
	}
	return params
}
