package models

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mediapress/transcoder/internal/format"
	"github.com/mediapress/transcoder/internal/paths"
)

// Output statuses are prefixed with the media type of the output, e.g.
// "video.encoding" or "image.created". The suffix vocabulary below is
// shared across types.
const (
	StatusWaiting    = "waiting"
	StatusQueued     = "queued"
	StatusEncoding   = "encoding"
	StatusProcessing = "processing"
	StatusEncoded    = "encoded"
	StatusCreated    = "created"
	StatusPackaged   = "packaged"
	StatusSkipped    = "skipped"
	StatusAborted    = "aborted"
	StatusFailed     = "failed"
)

// finalStatuses end an output's lifecycle; updates arriving after one
// of these are ignored.
var finalStatuses = []string{
	StatusEncoded, StatusCreated, StatusPackaged,
	StatusSkipped, StatusAborted, StatusFailed,
}

// failedStatuses are final states with no produced file.
var failedStatuses = []string{StatusSkipped, StatusAborted, StatusFailed}

// Output is one requested transcoding artifact of a job.
type Output struct {
	ID          int64       `json:"id" db:"id"`
	JobID       int64       `json:"job_id" db:"job_id"`
	Key         string      `json:"key" db:"key"`
	Format      format.Spec `json:"format" db:"format"`
	FormatIndex int         `json:"format_index,omitempty" db:"format_index"`
	Path        string      `json:"path,omitempty" db:"path"`

	// Transform flags.
	Fit         string `json:"fit,omitempty" db:"fit"`
	Transpose   int    `json:"transpose,omitempty" db:"transpose"`
	Deinterlace bool   `json:"deinterlace,omitempty" db:"deinterlace"`
	Blur        int    `json:"blur,omitempty" db:"blur"`
	Square      bool   `json:"square,omitempty" db:"square"`
	FlipH       bool   `json:"flip_h,omitempty" db:"flip_h"`
	FlipV       bool   `json:"flip_v,omitempty" db:"flip_v"`

	// Timing.
	Offset   float64 `json:"offset,omitempty" db:"offset"`
	Duration float64 `json:"duration,omitempty" db:"duration"`

	// Image sequence parameters, or the GIF scene count.
	Number   int    `json:"number,omitempty" db:"number"`
	Interval int    `json:"interval,omitempty" db:"interval"`
	Offsets  string `json:"offsets,omitempty" db:"offsets"`
	Sprite   bool   `json:"sprite,omitempty" db:"sprite"`
	VTT      bool   `json:"vtt,omitempty" db:"vtt"`
	Scene    int    `json:"scene,omitempty" db:"scene"`

	Watermark Metadata `json:"watermark,omitempty" db:"watermark"`

	Status   string   `json:"status,omitempty" db:"status"`
	Progress string   `json:"progress,omitempty" db:"progress"`
	Error    string   `json:"error,omitempty" db:"error"`
	URL      string   `json:"url,omitempty" db:"url"`
	URLs     []string `json:"urls,omitempty" db:"urls"`
	Metadata Metadata `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	// Weak back-reference to the owning job, for shared path context.
	job *Job
}

// NewOutput builds an output for a decoded format string.
func NewOutput(formatString string) *Output {
	return &Output{Format: format.Decode(formatString)}
}

// Job returns the owning job, if attached.
func (o *Output) Job() *Job {
	return o.job
}

// Type returns the media type derived from the output container.
func (o *Output) Type() string {
	return o.Format.Type()
}

// FullKey is the output's identity within its job and the correlation
// key for webhook data: the explicit key or the encoded format string,
// suffixed with the format index when several outputs share one format.
func (o *Output) FullKey() string {
	key := o.Key
	if key == "" {
		key = format.Encode(o.Format)
	}
	if o.FormatIndex > 0 {
		key = fmt.Sprintf("%s:%d", key, o.FormatIndex)
	}
	return key
}

// IsFinal reports whether the output reached a terminal status.
func (o *Output) IsFinal() bool {
	return statusIn(o.Status, finalStatuses)
}

// IsFailed reports whether the output terminally failed with no file.
func (o *Output) IsFailed() bool {
	return statusIn(o.Status, failedStatuses)
}

// IsSequence reports whether the output produces a numbered image
// sequence.
func (o *Output) IsSequence() bool {
	return o.Type() == format.TypeImage && (o.Number > 0 || o.Interval > 0 || o.Offsets != "")
}

func statusIn(status string, set []string) bool {
	_, suffix, found := strings.Cut(status, ".")
	if !found {
		return false
	}
	return contains(set, suffix)
}

// Validate checks the output can be submitted.
func (o *Output) Validate() error {
	if o.Format.IsZero() {
		return ConfigError("output requires a format with a container")
	}
	if o.Status != "" && !strings.HasPrefix(o.Status, o.Type()+".") {
		return ConfigError("status %q does not match output type %q", o.Status, o.Type())
	}
	return nil
}

// Apply merges webhook/poll data into the output. It reports whether
// the data was applied: updates for an already-final output are
// ignored, which is what makes stale webhook redelivery harmless.
func (o *Output) Apply(data OutputData) bool {
	if o.IsFinal() {
		return false
	}

	if data.Status != "" {
		o.Status = data.Status
	}
	if data.Progress != "" {
		o.Progress = data.Progress
	}
	if data.URL != "" {
		o.URL = data.URL
	}
	if len(data.URLs) > 0 {
		o.URLs = data.URLs
	}
	if data.Metadata != nil {
		o.Metadata = data.Metadata
	}
	if data.Error != "" {
		o.Error = data.Error
		if !o.IsFinal() {
			o.Status = o.Type() + "." + StatusFailed
		}
	}
	return true
}

// Dimensions returns the output's pixel size: probed metadata when
// available, otherwise the requested resolution with a zero dimension
// completed from the input aspect ratio.
func (o *Output) Dimensions() (width, height int) {
	if w, h := o.Metadata.Int("width"), o.Metadata.Int("height"); w > 0 && h > 0 {
		return w, h
	}

	width, height = format.ParseResolution(o.Format.Resolution)

	var inW, inH int
	if o.job != nil && o.job.Input != nil {
		inW = o.job.Input.Metadata.Int("width")
		inH = o.job.Input.Metadata.Int("height")
	}

	if width == 0 && height > 0 && inH > 0 {
		width = int(math.Round(float64(height) * float64(inW) / float64(inH)))
	}
	if height == 0 && width > 0 && inW > 0 {
		height = int(math.Round(float64(width) * float64(inH) / float64(inW)))
	}
	return width, height
}

// Ratio returns the aspect ratio of the output, or 0 when unknown.
func (o *Output) Ratio() float64 {
	width, height := o.Dimensions()
	if width == 0 || height == 0 {
		return 0
	}
	return float64(width) / float64(height)
}

// ResolvePath renders the output's delivery path. An explicit path is
// used as the template verbatim; otherwise the job's output path format
// applies. Pattern variables come from the owning job's input.
func (o *Output) ResolvePath() string {
	template := o.Path
	if template == "" && o.job != nil {
		template = o.job.OutputPathFormat
	}
	if template == "" {
		return ""
	}

	return paths.Resolve(template, o.pathVars(), paths.Options{
		Sequence:    o.IsSequence(),
		FormatIndex: o.FormatIndex,
	})
}

func (o *Output) pathVars() map[string]string {
	vars := map[string]string{
		"key": strings.ReplaceAll(o.FullKey(), ":", "-"),
		"ext": format.Extension(o.Format.Container),
	}

	if o.job != nil && o.job.Input != nil {
		input := o.job.Input
		vars["hash"] = input.URLHash()

		dir, filename := splitInputPath(input.URL)
		vars["path"] = dir
		vars["filename"] = filename
	}
	return vars
}

// splitInputPath extracts the directory and extension-less filename
// from a source URL path.
func splitInputPath(rawURL string) (dir, filename string) {
	p := rawURL
	if i := strings.Index(p, "://"); i >= 0 {
		p = p[i+3:]
	}
	if i := strings.Index(p, "/"); i >= 0 {
		p = p[i+1:]
	} else {
		p = ""
	}
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}

	if dot := strings.LastIndex(p, "."); dot > strings.LastIndex(p, "/") {
		p = p[:dot]
	}
	if slash := strings.LastIndex(p, "/"); slash >= 0 {
		return p[:slash], p[slash+1:]
	}
	return "", p
}

// Params serializes the output for the remote create-job payload.
func (o *Output) Params() map[string]interface{} {
	params := map[string]interface{}{}

	if path := o.ResolvePath(); path != "" {
		params["path"] = path
	}
	if o.Fit != "" {
		params["fit"] = o.Fit
	}
	if o.Transpose != 0 {
		params["transpose"] = o.Transpose
	}
	if o.Deinterlace {
		params["deinterlace"] = true
	}
	if o.Blur > 0 {
		params["blur"] = o.Blur
	}
	if o.Square {
		params["square"] = true
	}
	if o.FlipH {
		params["hflip"] = true
	}
	if o.FlipV {
		params["vflip"] = true
	}
	if o.Offset > 0 {
		params["offset"] = o.Offset
	}
	if o.Duration > 0 {
		params["duration"] = o.Duration
	}
	if o.Number > 0 {
		params["number"] = o.Number
	}
	if o.Interval > 0 {
		params["interval"] = o.Interval
	}
	if o.Offsets != "" {
		params["offsets"] = o.Offsets
	}
	if o.Sprite {
		params["sprite"] = true
	}
	if o.VTT {
		params["vtt"] = true
	}
	if o.Scene > 0 {
		params["scene"] = o.Scene
	}
	if len(o.Watermark) > 0 {
		params["watermark"] = o.Watermark
	}
	return params
}
