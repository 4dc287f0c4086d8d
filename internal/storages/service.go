package storages

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mediapress/transcoder/internal/cache"
	"github.com/mediapress/transcoder/internal/logging"
	"github.com/mediapress/transcoder/pkg/models"
)

// cacheTTL bounds how long a resolved volume storage lives in Redis.
const cacheTTL = 30 * time.Minute

// Volume identifies a CMS volume whose storage is being resolved.
type Volume struct {
	ID     int64
	Handle string
}

// ResolveHook may supply a storage for a volume before the default is
// synthesized. Returning nil passes.
type ResolveHook func(Volume) *models.Storage

// OverrideHook may replace the storage resolved for a volume.
// Returning nil keeps the current resolution.
type OverrideHook func(Volume, *models.Storage) *models.Storage

// Service resolves storage destinations: configured named storages and
// per-volume resolutions with override hooks. Volume resolutions are
// memoized per volume identity.
type Service struct {
	named         map[string]models.Storage
	uploadBaseURL string
	cache         *cache.Cache
	logger        *logging.Logger

	mu   sync.Mutex
	memo map[int64]*models.Storage

	beforeResolve []ResolveHook
	afterResolve  []OverrideHook
}

// NewService creates a storage service. The cache may be nil.
func NewService(named map[string]models.Storage, uploadBaseURL string, c *cache.Cache, logger *logging.Logger) *Service {
	return &Service{
		named:         named,
		uploadBaseURL: uploadBaseURL,
		cache:         c,
		logger:        logger,
		memo:          make(map[int64]*models.Storage),
	}
}

// OnBeforeResolve registers a hook that may supply a volume's storage
// ahead of the default synthesis.
func (s *Service) OnBeforeResolve(h ResolveHook) {
	s.beforeResolve = append(s.beforeResolve, h)
}

// OnAfterResolve registers a hook that may override a volume's
// resolved storage.
func (s *Service) OnAfterResolve(h OverrideHook) {
	s.afterResolve = append(s.afterResolve, h)
}

// GetNamedStorage looks up a configured storage by handle. Returns nil
// when the handle is unknown. The returned storage is a copy; callers
// may mutate it freely.
func (s *Service) GetNamedStorage(handle string) *models.Storage {
	storage, ok := s.named[handle]
	if !ok {
		return nil
	}
	return &storage
}

// GetVolumeStorage resolves the storage destination for a CMS volume:
// a before hook may supply one, otherwise a default HTTP upload
// storage scoped to the volume's handle is synthesized, and an after
// hook may override the result. Whatever a hook returns is validated
// loudly before the volume linkage is stamped on and the resolution
// memoized.
func (s *Service) GetVolumeStorage(ctx context.Context, vol Volume) (*models.Storage, error) {
	s.mu.Lock()
	if storage, ok := s.memo[vol.ID]; ok {
		s.mu.Unlock()
		return storage, nil
	}
	s.mu.Unlock()

	if s.cache != nil {
		storage, err := s.cache.GetVolumeStorage(ctx, vol.ID)
		if err != nil {
			s.logger.WithError(err).Warn("volume storage cache read failed")
		}
		if storage != nil {
			s.remember(vol.ID, storage)
			return storage, nil
		}
	}

	var storage *models.Storage
	for _, h := range s.beforeResolve {
		if storage = h(vol); storage != nil {
			break
		}
	}

	if storage == nil {
		storage = s.defaultUploadStorage(vol)
	}

	for _, h := range s.afterResolve {
		if override := h(vol, storage); override != nil {
			storage = override
		}
	}

	if err := storage.Validate(); err != nil {
		return nil, models.ConfigError("storage resolved for volume %q is invalid: %v", vol.Handle, err)
	}

	storage.SetVolume(vol.ID, vol.Handle)

	s.remember(vol.ID, storage)

	if s.cache != nil {
		if err := s.cache.SetVolumeStorage(ctx, vol.ID, storage, cacheTTL); err != nil {
			s.logger.WithError(err).Warn("volume storage cache write failed")
		}
	}

	return storage, nil
}

// defaultUploadStorage synthesizes the HTTP upload destination scoped
// to the volume's handle.
func (s *Service) defaultUploadStorage(vol Volume) *models.Storage {
	base := strings.TrimRight(s.uploadBaseURL, "/")
	return &models.Storage{
		URL: fmt.Sprintf("%s/%s", base, vol.Handle),
	}
}

func (s *Service) remember(id int64, storage *models.Storage) {
	s.mu.Lock()
	s.memo[id] = storage
	s.mu.Unlock()
}
