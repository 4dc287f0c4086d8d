package models

// Notification delivery types.
const (
	NotificationTypeHTTP = "http"
	NotificationTypeSNS  = "sns"
)

// Notification describes how the transcoding service reports progress
// back to us.
type Notification struct {
	Type     string `json:"type" db:"type"`
	URL      string `json:"url,omitempty" db:"url"`
	Region   string `json:"region,omitempty" db:"region"`
	TopicARN string `json:"topic_arn,omitempty" db:"topic_arn"`

	// Metadata and Events control payload verbosity.
	Metadata bool `json:"metadata,omitempty" db:"metadata"`
	Events   bool `json:"events,omitempty" db:"events"`
}

// Validate checks the notification config is deliverable.
func (n *Notification) Validate() error {
	switch n.Type {
	case NotificationTypeHTTP:
		if n.URL == "" {
			return ConfigError("http notification requires a url")
		}
	case NotificationTypeSNS:
		if n.Region == "" || n.TopicARN == "" {
			return ConfigError("sns notification requires a region and a topic arn")
		}
	default:
		return ConfigError("unknown notification type %q", n.Type)
	}
	return nil
}

// Params serializes the notification for the remote create-job payload.
func (n *Notification) Params() map[string]interface{} {
	params := map[string]interface{}{
		"type":     n.Type,
		"metadata": n.Metadata,
		"events":   n.Events,
	}
	switch n.Type {
	case NotificationTypeHTTP:
		params["url"] = n.URL
	case NotificationTypeSNS:
		params["region"] = n.Region
		params["topic_arn"] = n.TopicARN
	}
	return params
}
