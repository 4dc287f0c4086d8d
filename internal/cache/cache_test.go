package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/mediapress/transcoder/pkg/models"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	// Create a mini Redis server for testing
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	cache, err := NewCache(mr.Host(), mr.Server().Addr().Port, "", 0)
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to create cache: %v", err)
	}

	return cache, mr
}

func TestNewCache(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	if cache == nil {
		t.Fatal("Cache should not be nil")
	}

	// Test ping
	ctx := context.Background()
	if err := cache.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestSourceKey(t *testing.T) {
	asset := models.NewAssetInput(42, "https://cdn.example.com/media/clip.mov")
	if got := SourceKey(asset); got != "asset:42" {
		t.Errorf("Expected asset:42, got %s", got)
	}

	url := models.NewURLInput("https://cdn.example.com/media/clip.mov")
	expected := "url:" + url.URLHash()
	if got := SourceKey(url); got != expected {
		t.Errorf("Expected %s, got %s", expected, got)
	}

	if got := SourceKey(nil); got != "" {
		t.Errorf("Expected empty key for nil input, got %s", got)
	}
}

func TestCache_OutputOperations(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()
	sourceKey := "asset:42"

	outputs := []*models.Output{
		models.NewOutput("mp4:1080p"),
		models.NewOutput("mp4:720p"),
		models.NewOutput("jpg:300x"),
	}
	outputs[0].Status = "video.encoded"
	outputs[0].URL = "https://cdn.example.com/clip-1080p.mp4"

	// Test SetOutputs
	err := cache.SetOutputs(ctx, sourceKey, outputs, 10*time.Minute)
	if err != nil {
		t.Fatalf("SetOutputs failed: %v", err)
	}

	// Test GetOutputs
	retrieved, err := cache.GetOutputs(ctx, sourceKey)
	if err != nil {
		t.Fatalf("GetOutputs failed: %v", err)
	}

	if len(retrieved) != len(outputs) {
		t.Fatalf("Expected %d outputs, got %d", len(outputs), len(retrieved))
	}

	if retrieved[0].Status != "video.encoded" {
		t.Errorf("Expected status video.encoded, got %s", retrieved[0].Status)
	}

	if retrieved[0].Format.Container != "mp4" {
		t.Errorf("Expected container mp4, got %s", retrieved[0].Format.Container)
	}

	// Test GetOutputs for a source with nothing cached
	missing, err := cache.GetOutputs(ctx, "asset:999")
	if err != nil {
		t.Fatalf("GetOutputs for missing source should not error: %v", err)
	}

	if missing != nil {
		t.Error("Missing source should return nil")
	}

	// Test DeleteOutputs
	err = cache.DeleteOutputs(ctx, sourceKey)
	if err != nil {
		t.Fatalf("DeleteOutputs failed: %v", err)
	}

	// Verify deletion
	deleted, err := cache.GetOutputs(ctx, sourceKey)
	if err != nil {
		t.Fatalf("GetOutputs after delete failed: %v", err)
	}

	if deleted != nil {
		t.Error("Deleted outputs should return nil")
	}
}

func TestCache_SetOutputsEmptySourceKey(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()

	// An input with no asset and no URL has no cache identity; caching
	// under it is a silent no-op.
	err := cache.SetOutputs(ctx, "", []*models.Output{models.NewOutput("mp4")}, time.Minute)
	if err != nil {
		t.Fatalf("SetOutputs with empty key failed: %v", err)
	}
}

func TestCache_VolumeStorageOperations(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()

	storage := &models.Storage{
		Service: models.ServiceS3,
		Bucket:  "media-bucket",
		Region:  "us-east-1",
		Credentials: models.Credentials{
			"access_key_id":     "AKIA...",
			"secret_access_key": "secret",
		},
	}
	storage.SetVolume(3, "local-media")

	// Test SetVolumeStorage
	err := cache.SetVolumeStorage(ctx, 3, storage, 10*time.Minute)
	if err != nil {
		t.Fatalf("SetVolumeStorage failed: %v", err)
	}

	// Test GetVolumeStorage
	retrieved, err := cache.GetVolumeStorage(ctx, 3)
	if err != nil {
		t.Fatalf("GetVolumeStorage failed: %v", err)
	}

	if retrieved == nil {
		t.Fatal("Retrieved storage should not be nil")
	}

	if retrieved.Service != models.ServiceS3 {
		t.Errorf("Expected service %s, got %s", models.ServiceS3, retrieved.Service)
	}

	if retrieved.Bucket != "media-bucket" {
		t.Errorf("Expected bucket media-bucket, got %s", retrieved.Bucket)
	}

	// Test GetVolumeStorage for an uncached volume
	missing, err := cache.GetVolumeStorage(ctx, 99)
	if err != nil {
		t.Fatalf("GetVolumeStorage for missing volume should not error: %v", err)
	}

	if missing != nil {
		t.Error("Missing volume should return nil")
	}
}

func TestCache_Locking(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()
	resource := "job:run:7"

	// Test AcquireLock
	acquired, err := cache.AcquireLock(ctx, resource, 1*time.Minute)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}

	if !acquired {
		t.Error("First lock acquisition should succeed")
	}

	// Test acquiring same lock again (should fail)
	acquired, err = cache.AcquireLock(ctx, resource, 1*time.Minute)
	if err != nil {
		t.Fatalf("Second AcquireLock failed: %v", err)
	}

	if acquired {
		t.Error("Second lock acquisition should fail")
	}

	// Test ReleaseLock
	err = cache.ReleaseLock(ctx, resource)
	if err != nil {
		t.Fatalf("ReleaseLock failed: %v", err)
	}

	// Should be able to acquire again
	acquired, err = cache.AcquireLock(ctx, resource, 1*time.Minute)
	if err != nil {
		t.Fatalf("AcquireLock after release failed: %v", err)
	}

	if !acquired {
		t.Error("Lock acquisition after release should succeed")
	}
}
