package storages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediapress/transcoder/internal/logging"
	"github.com/mediapress/transcoder/pkg/models"
)

func newTestService(named map[string]models.Storage) *Service {
	return NewService(named, "https://uploads.example.com/volumes/", nil, logging.NewNopLogger())
}

func TestGetNamedStorage(t *testing.T) {
	svc := newTestService(map[string]models.Storage{
		"archive": {
			Service: models.ServiceS3,
			Bucket:  "archive-bucket",
			Region:  "us-east-1",
			Credentials: models.Credentials{
				"access_key_id":     "AKIA",
				"secret_access_key": "secret",
			},
		},
	})

	storage := svc.GetNamedStorage("archive")
	require.NotNil(t, storage)
	assert.Equal(t, "archive-bucket", storage.Bucket)

	// The lookup hands out copies.
	storage.Bucket = "mutated"
	assert.Equal(t, "archive-bucket", svc.GetNamedStorage("archive").Bucket)

	assert.Nil(t, svc.GetNamedStorage("unknown"))
}

func TestGetVolumeStorageDefault(t *testing.T) {
	svc := newTestService(nil)

	storage, err := svc.GetVolumeStorage(context.Background(), Volume{ID: 3, Handle: "media"})
	require.NoError(t, err)

	assert.Equal(t, "https://uploads.example.com/volumes/media", storage.URL)
	assert.Equal(t, int64(3), storage.VolumeID)
	assert.Equal(t, "media", storage.VolumeHandle)
}

func TestGetVolumeStorageBeforeHook(t *testing.T) {
	svc := newTestService(nil)

	svc.OnBeforeResolve(func(vol Volume) *models.Storage {
		if vol.Handle != "media" {
			return nil
		}
		return &models.Storage{
			Service: models.ServiceS3,
			Bucket:  "media-bucket",
			Region:  "eu-west-1",
			Credentials: models.Credentials{
				"access_key_id":     "AKIA",
				"secret_access_key": "secret",
			},
		}
	})

	storage, err := svc.GetVolumeStorage(context.Background(), Volume{ID: 3, Handle: "media"})
	require.NoError(t, err)
	assert.Equal(t, models.ServiceS3, storage.Service)
	assert.Equal(t, "media-bucket", storage.Bucket)
	assert.Equal(t, int64(3), storage.VolumeID)

	// Another volume falls through to the default.
	other, err := svc.GetVolumeStorage(context.Background(), Volume{ID: 4, Handle: "docs"})
	require.NoError(t, err)
	assert.Empty(t, other.Service)
	assert.Equal(t, "https://uploads.example.com/volumes/docs", other.URL)
}

func TestGetVolumeStorageAfterHookOverride(t *testing.T) {
	svc := newTestService(nil)

	svc.OnAfterResolve(func(vol Volume, resolved *models.Storage) *models.Storage {
		return &models.Storage{URL: resolved.URL + "?signed=1"}
	})

	storage, err := svc.GetVolumeStorage(context.Background(), Volume{ID: 3, Handle: "media"})
	require.NoError(t, err)
	assert.Equal(t, "https://uploads.example.com/volumes/media?signed=1", storage.URL)
}

func TestGetVolumeStorageInvalidHookResult(t *testing.T) {
	svc := newTestService(nil)

	// A hook returning a malformed storage fails loudly, not silently.
	svc.OnBeforeResolve(func(Volume) *models.Storage {
		return &models.Storage{Service: models.ServiceS3}
	})

	_, err := svc.GetVolumeStorage(context.Background(), Volume{ID: 3, Handle: "media"})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInvalidConfig)
}

func TestGetVolumeStorageMemoized(t *testing.T) {
	svc := newTestService(nil)

	calls := 0
	svc.OnBeforeResolve(func(Volume) *models.Storage {
		calls++
		return nil
	})

	vol := Volume{ID: 3, Handle: "media"}
	first, err := svc.GetVolumeStorage(context.Background(), vol)
	require.NoError(t, err)

	second, err := svc.GetVolumeStorage(context.Background(), vol)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, calls, "resolution hooks run once per volume")
}
