package models

import (
	"crypto/md5"
	"encoding/hex"
	"time"
)

// Input statuses reported by the transcoding service while it fetches
// the source media.
const (
	InputStatusStarting     = "input.starting"
	InputStatusTransferring = "input.transferring"
	InputStatusTransferred  = "input.transferred"
	InputStatusFailed       = "input.failed"
)

// Input is the source media of a job: either a CMS asset reference or
// an external URL, never both.
type Input struct {
	ID       int64      `json:"id" db:"id"`
	JobID    int64      `json:"job_id" db:"job_id"`
	AssetID  int64      `json:"asset_id,omitempty" db:"asset_id"`
	URL      string     `json:"url,omitempty" db:"url"`
	Status   string     `json:"status,omitempty" db:"status"`
	Progress string     `json:"progress,omitempty" db:"progress"`
	Metadata Metadata   `json:"metadata,omitempty" db:"metadata"`
	Expires  *time.Time `json:"expires,omitempty" db:"expires"`
	Error    string     `json:"error,omitempty" db:"error"`

	urlHash string
}

// NewAssetInput builds an input bound to a CMS asset and its resolved
// public URL.
func NewAssetInput(assetID int64, url string) *Input {
	return &Input{AssetID: assetID, URL: url}
}

// NewURLInput builds an input for an external URL.
func NewURLInput(url string) *Input {
	return &Input{URL: url}
}

// SetURL rebinds the input to an external URL, clearing the asset
// reference and the memoized hash.
func (in *Input) SetURL(url string) {
	in.URL = url
	in.AssetID = 0
	in.urlHash = ""
}

// SetAsset rebinds the input to a CMS asset, clearing the memoized
// hash derived from the previous URL.
func (in *Input) SetAsset(assetID int64, url string) {
	in.AssetID = assetID
	in.URL = url
	in.urlHash = ""
}

// URLHash returns the MD5 of the resolved URL, memoized until the URL
// changes.
func (in *Input) URLHash() string {
	if in.urlHash == "" && in.URL != "" {
		sum := md5.Sum([]byte(in.URL))
		in.urlHash = hex.EncodeToString(sum[:])
	}
	return in.urlHash
}

// Validate checks the input can be submitted.
func (in *Input) Validate() error {
	if in.URL == "" {
		return ConfigError("job input requires a url or a resolvable asset")
	}
	return nil
}

// Apply merges webhook/poll data into the input state.
func (in *Input) Apply(data InputData) {
	if data.Status != "" {
		in.Status = data.Status
	}
	if data.Progress != "" {
		in.Progress = data.Progress
	}
	if data.Metadata != nil {
		in.Metadata = data.Metadata
	}
	if data.Expires != nil {
		in.Expires = data.Expires
	}
	if data.Error != "" {
		in.Error = data.Error
		in.Status = InputStatusFailed
	}
}

// Params serializes the input for the remote create-job payload.
func (in *Input) Params() map[string]interface{} {
	return map[string]interface{}{"url": in.URL}
}
