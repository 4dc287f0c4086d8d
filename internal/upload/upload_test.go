package upload

import (
	"testing"

	"github.com/mediapress/transcoder/pkg/models"
)

func TestContentTypeFor(t *testing.T) {
	tests := []struct {
		path     string
		wantType string
	}{
		{"clip.mp4", "video/mp4"},
		{"clip.mov", "video/quicktime"},
		{"clip.webm", "video/webm"},
		{"segment.ts", "video/mp2t"},
		{"track.mp3", "audio/mpeg"},
		{"track.flac", "audio/flac"},
		{"poster.jpg", "image/jpeg"},
		{"poster.jpeg", "image/jpeg"},
		{"thumb.png", "image/png"},
		{"unknown.xyz", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			contentType := contentTypeFor(tt.path)
			if contentType != tt.wantType {
				t.Errorf("contentTypeFor(%q) = %q, want %q", tt.path, contentType, tt.wantType)
			}
		})
	}
}

func TestEndpointFor(t *testing.T) {
	tests := []struct {
		name    string
		storage *models.Storage
		want    string
		wantErr bool
	}{
		{
			name:    "s3",
			storage: &models.Storage{Service: models.ServiceS3, Region: "us-east-1"},
			want:    "s3.amazonaws.com",
		},
		{
			name:    "gcs",
			storage: &models.Storage{Service: models.ServiceGCS},
			want:    "storage.googleapis.com",
		},
		{
			name:    "dospaces",
			storage: &models.Storage{Service: models.ServiceDOSpaces, Region: "nyc3"},
			want:    "nyc3.digitaloceanspaces.com",
		},
		{
			name:    "wasabi",
			storage: &models.Storage{Service: models.ServiceWasabi, Region: "eu-central-1"},
			want:    "s3.eu-central-1.wasabisys.com",
		},
		{
			name:    "s3other uses explicit endpoint",
			storage: &models.Storage{Service: models.ServiceS3Other, Endpoint: "minio.internal:9000"},
			want:    "minio.internal:9000",
		},
		{
			name:    "rackspace is not directly writable",
			storage: &models.Storage{Service: models.ServiceRackspace},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			endpoint, err := endpointFor(tt.storage)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("endpointFor failed: %v", err)
			}
			if endpoint != tt.want {
				t.Errorf("endpointFor() = %q, want %q", endpoint, tt.want)
			}
		})
	}
}
