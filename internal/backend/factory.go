package backend

import (
	"context"
	"fmt"
	"log/slog"

	"contratandoplanos/internal/objectstore"
	"contratandoplanos/internal/ports"
	"contratandoplanos/internal/storage"
)

type Factory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{logger: logger}
}

// Create opens the database, applies migrations and builds the object store.
func (f *Factory) Create(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	repo, err := storage.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s repository: %w", cfg.DatabaseDriver, err)
	}

	objects, err := f.createObjectStorage(ctx, cfg)
	if err != nil {
		repo.Close()
		return nil, err
	}

	f.logger.Info("Initialized backend",
		"database", cfg.DatabaseDriver,
		"storage", cfg.Storage)

	return &Result{
		Store:   repo,
		Objects: objects,
		Cleanup: repo.Close,
	}, nil
}

func (f *Factory) createObjectStorage(ctx context.Context, cfg Config) (ports.ObjectStorage, error) {
	switch cfg.Storage {
	case S3Storage:
		store, err := objectstore.NewS3Store(ctx, objectstore.S3Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretKey,
			PublicBaseURL:   cfg.S3PublicBaseURL,
			UsePathStyle:    cfg.S3UsePathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 storage: %w", err)
		}
		f.logger.Info("Initialized S3 object storage", "bucket", cfg.S3Bucket, "endpoint", cfg.S3Endpoint)
		return store, nil
	case LocalStorage:
		store, err := objectstore.NewLocalStore(cfg.LocalStorageDir)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize local storage: %w", err)
		}
		f.logger.Info("Initialized local object storage", "dir", cfg.LocalStorageDir)
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Storage)
	}
}
