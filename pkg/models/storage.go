package models

import (
	"database/sql/driver"
	"encoding/json"
	"net/url"
)

// Storage service identifiers accepted by the transcoding API.
const (
	ServiceCoconut   = "coconut"
	ServiceS3        = "s3"
	ServiceGCS       = "gcs"
	ServiceDOSpaces  = "dospaces"
	ServiceLinode    = "linode"
	ServiceWasabi    = "wasabi"
	ServiceS3Other   = "s3other"
	ServiceBackblaze = "backblaze"
	ServiceRackspace = "rackspace"
	ServiceAzure     = "azure"
)

// Services lists every supported storage service.
var Services = []string{
	ServiceCoconut, ServiceS3, ServiceGCS, ServiceDOSpaces, ServiceLinode,
	ServiceWasabi, ServiceS3Other, ServiceBackblaze, ServiceRackspace,
	ServiceAzure,
}

// s3likeServices are addressed by bucket+credentials.
var s3likeServices = []string{
	ServiceS3, ServiceGCS, ServiceDOSpaces, ServiceLinode, ServiceWasabi,
	ServiceS3Other,
}

// Credentials holds service-specific credential fields.
type Credentials map[string]string

// Value implements driver.Valuer for database storage.
func (c Credentials) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements sql.Scanner for database retrieval.
func (c *Credentials) Scan(value interface{}) error {
	if value == nil {
		*c = make(Credentials)
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, c)
}

// Storage describes where output files are delivered: either a bare
// upload URL or a named service with its addressing fields. The volume
// linkage is traceability only, it plays no part in delivery.
type Storage struct {
	URL         string      `json:"url,omitempty" db:"url"`
	Service     string      `json:"service,omitempty" db:"service"`
	Bucket      string      `json:"bucket,omitempty" db:"bucket"`
	Region      string      `json:"region,omitempty" db:"region"`
	Path        string      `json:"path,omitempty" db:"path"`
	ACL         string      `json:"acl,omitempty" db:"acl"`
	Endpoint    string      `json:"endpoint,omitempty" db:"endpoint"`
	Credentials Credentials `json:"credentials,omitempty" db:"credentials"`

	VolumeID     int64  `json:"volume_id,omitempty" db:"volume_id"`
	VolumeHandle string `json:"volume_handle,omitempty" db:"volume_handle"`
}

// Validate checks the storage has the fields its service requires.
func (s *Storage) Validate() error {
	if s.Service == "" {
		if s.URL == "" {
			return ConfigError("storage requires a url or a service")
		}
		if _, err := url.ParseRequestURI(s.URL); err != nil {
			return ConfigError("storage url %q is malformed", s.URL)
		}
		return nil
	}

	if !contains(Services, s.Service) {
		return ConfigError("unknown storage service %q", s.Service)
	}

	switch {
	case s.Service == ServiceCoconut:
		// Test storage hosted by the transcoding service, nothing to check.

	case contains(s3likeServices, s.Service):
		if err := s.requireCredentials("access_key_id", "secret_access_key"); err != nil {
			return err
		}
		if s.Bucket == "" {
			return ConfigError("%s storage requires a bucket", s.Service)
		}
		if s.Region == "" && !contains([]string{ServiceGCS, ServiceDOSpaces, ServiceS3Other}, s.Service) {
			return ConfigError("%s storage requires a region", s.Service)
		}
		if s.Service == ServiceS3Other && s.Endpoint == "" {
			return ConfigError("s3other storage requires an endpoint")
		}

	case s.Service == ServiceBackblaze:
		return s.requireCredentials("account_id", "app_key_id", "app_key")

	case s.Service == ServiceRackspace:
		return s.requireCredentials("username", "api_key")

	case s.Service == ServiceAzure:
		return s.requireCredentials("account", "api_key")
	}

	return nil
}

func (s *Storage) requireCredentials(keys ...string) error {
	for _, key := range keys {
		if s.Credentials[key] == "" {
			return ConfigError("%s storage requires credential %q", s.Service, key)
		}
	}
	return nil
}

// SetVolume stamps the CMS volume linkage onto the storage.
func (s *Storage) SetVolume(id int64, handle string) {
	s.VolumeID = id
	s.VolumeHandle = handle
}

// Params serializes the storage for the remote create-job payload.
// The API expects "container" for azure and rackspace, "bucket"
// elsewhere.
func (s *Storage) Params() map[string]interface{} {
	if s.Service == "" {
		return map[string]interface{}{"url": s.URL}
	}

	params := map[string]interface{}{"service": s.Service}
	if s.Bucket != "" {
		name := "bucket"
		if s.Service == ServiceAzure || s.Service == ServiceRackspace {
			name = "container"
		}
		params[name] = s.Bucket
	}
	if s.Region != "" {
		params["region"] = s.Region
	}
	if s.Path != "" {
		params["path"] = s.Path
	}
	if s.ACL != "" {
		params["acl"] = s.ACL
	}
	if s.Endpoint != "" {
		params["endpoint"] = s.Endpoint
	}
	if len(s.Credentials) > 0 {
		params["credentials"] = s.Credentials
	}
	return params
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
