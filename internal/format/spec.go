package format

import (
	"database/sql/driver"
	"encoding/json"
)

// Spec is the structured form of a format string. The container is
// always present and lowercase; every other field is optional and
// empty when it does not apply. A disabled track carries no spec
// fields at all.
type Spec struct {
	Container string `json:"container"`

	VideoCodec   string `json:"video_codec,omitempty"`
	Resolution   string `json:"resolution,omitempty"`
	VideoBitrate string `json:"video_bitrate,omitempty"`
	FrameRate    string `json:"fps,omitempty"`

	AudioCodec   string `json:"audio_codec,omitempty"`
	AudioBitrate string `json:"audio_bitrate,omitempty"`
	SampleRate   string `json:"sample_rate,omitempty"`
	AudioChannel string `json:"audio_channel,omitempty"`

	PixFmt   string `json:"pix_fmt,omitempty"`
	TwoPass  bool   `json:"2pass,omitempty"`
	Quality  string `json:"quality,omitempty"`
	VProfile string `json:"vprofile,omitempty"`
	Level    string `json:"level,omitempty"`
	MaxRate  string `json:"maxrate,omitempty"`
	Frag     bool   `json:"frag,omitempty"`

	VideoDisabled bool `json:"video_disabled,omitempty"`
	AudioDisabled bool `json:"audio_disabled,omitempty"`
}

// Type returns the media type implied by the container.
func (s Spec) Type() string {
	return ContainerType(s.Container)
}

// IsZero reports whether the spec has no container.
func (s Spec) IsZero() bool {
	return s.Container == ""
}

// String returns the canonical encoded format string.
func (s Spec) String() string {
	return Encode(s)
}

// Value implements driver.Valuer for database storage.
func (s Spec) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements sql.Scanner for database retrieval.
func (s *Spec) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, s)
}
