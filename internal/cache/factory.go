package cache

import (
	"context"
	"fmt"
	"log/slog"

	"idschooldata/internal/config"
)

// New opens the backend selected by cfg.Backend
func New(ctx context.Context, cfg config.CacheConfig, paths *config.Paths, logger *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case config.CacheBackendFile, "":
		return NewFileStore(paths.CacheDir, logger)
	case config.CacheBackendMemory:
		return NewMemoryStore(), nil
	case config.CacheBackendBolt:
		return OpenBoltStore(paths.BoltFile)
	case config.CacheBackendMinIO:
		return OpenMinIOStore(ctx, cfg.MinIO)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
