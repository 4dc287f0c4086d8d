// Package upload writes source and derivative files into S3-compatible
// object storage. It backs the volume upload endpoint: write-or-replace
// bytes at a storage-scoped path.
package upload

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/mediapress/transcoder/internal/config"
	"github.com/mediapress/transcoder/pkg/models"
)

// Uploader provides object storage operations against one bucket
type Uploader struct {
	client *minio.Client
	bucket string
}

// New creates an uploader for the configured default backend
func New(cfg config.UploadConfig, bucket string) (*Uploader, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	// Ensure bucket exists
	ctx := context.Background()
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{
			Region: cfg.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &Uploader{
		client: client,
		bucket: bucket,
	}, nil
}

// NewForStorage creates an uploader bound to an S3-compatible job
// storage destination. Non-S3 services deliver via the remote
// transcoding service and cannot be written to directly.
func NewForStorage(storage *models.Storage) (*Uploader, error) {
	if err := storage.Validate(); err != nil {
		return nil, err
	}

	endpoint, err := endpointFor(storage)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds: credentials.NewStaticV4(
			storage.Credentials["access_key_id"],
			storage.Credentials["secret_access_key"],
			"",
		),
		Secure: true,
		Region: storage.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &Uploader{
		client: client,
		bucket: storage.Bucket,
	}, nil
}

// endpointFor maps an S3-compatible service to its endpoint host.
func endpointFor(storage *models.Storage) (string, error) {
	switch storage.Service {
	case models.ServiceS3:
		return "s3.amazonaws.com", nil
	case models.ServiceGCS:
		return "storage.googleapis.com", nil
	case models.ServiceDOSpaces:
		return fmt.Sprintf("%s.digitaloceanspaces.com", storage.Region), nil
	case models.ServiceLinode:
		return fmt.Sprintf("%s.linodeobjects.com", storage.Region), nil
	case models.ServiceWasabi:
		return fmt.Sprintf("s3.%s.wasabisys.com", storage.Region), nil
	case models.ServiceS3Other:
		return storage.Endpoint, nil
	default:
		return "", models.ConfigError("service %q is not directly writable", storage.Service)
	}
}

// Put writes or replaces the object at path. The content type derives
// from the path's extension.
func (u *Uploader) Put(ctx context.Context, path string, reader io.Reader, size int64) error {
	_, err := u.client.PutObject(ctx, u.bucket, path, reader, size, minio.PutObjectOptions{
		ContentType: contentTypeFor(path),
	})
	if err != nil {
		return fmt.Errorf("failed to upload object: %w", err)
	}

	return nil
}

// Get opens the object at path for reading
func (u *Uploader) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	object, err := u.client.GetObject(ctx, u.bucket, path, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to download object: %w", err)
	}

	return object, nil
}

// Delete removes the object at path
func (u *Uploader) Delete(ctx context.Context, path string) error {
	err := u.client.RemoveObject(ctx, u.bucket, path, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}

	return nil
}

// PresignedURL returns a temporary download URL for the object at path
func (u *Uploader) PresignedURL(ctx context.Context, path string, expiry time.Duration) (string, error) {
	url, err := u.client.PresignedGetObject(ctx, u.bucket, path, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate URL: %w", err)
	}

	return url.String(), nil
}

// List lists object paths under a prefix
func (u *Uploader) List(ctx context.Context, prefix string) ([]string, error) {
	var objects []string

	for object := range u.client.ListObjects(ctx, u.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", object.Err)
		}
		objects = append(objects, object.Key)
	}

	return objects, nil
}

// contentTypeFor returns the content type for a path's extension
func contentTypeFor(path string) string {
	switch filepath.Ext(path) {
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".avi":
		return "video/x-msvideo"
	case ".mkv":
		return "video/x-matroska"
	case ".webm":
		return "video/webm"
	case ".ts":
		return "video/mp2t"
	case ".mp3":
		return "audio/mpeg"
	case ".ogg":
		return "audio/ogg"
	case ".flac":
		return "audio/flac"
	case ".wav":
		return "audio/wav"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}
