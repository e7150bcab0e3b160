package backend

import (
	"fmt"

	"contratandoplanos/internal/config"
	"contratandoplanos/internal/storage"
)

// FromAppConfig converts the application config to backend config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	cfg := Config{
		DatabaseDriver:  appConfig.DatabaseDriver,
		Storage:         StorageBackend(appConfig.StorageBackend),
		LocalStorageDir: appConfig.LocalStorageDir,
		S3Endpoint:      appConfig.S3Endpoint,
		S3Region:        appConfig.S3Region,
		S3Bucket:        appConfig.S3Bucket,
		S3AccessKeyID:   appConfig.S3AccessKeyID,
		S3SecretKey:     appConfig.S3SecretAccessKey,
		S3PublicBaseURL: appConfig.S3PublicBaseURL,
		S3UsePathStyle:  appConfig.S3UsePathStyle,
	}
	switch appConfig.DatabaseDriver {
	case storage.DriverSQLite:
		cfg.DatabaseDSN = storage.SQLiteDSN(appConfig.SQLiteDBPath)
	default:
		cfg.DatabaseDSN = appConfig.DatabaseURL
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.DatabaseDriver {
	case storage.DriverSQLite, storage.DriverPostgres:
	default:
		return fmt.Errorf("invalid database driver: %s", c.DatabaseDriver)
	}
	if c.DatabaseDSN == "" {
		return fmt.Errorf("database DSN is required for %s", c.DatabaseDriver)
	}

	if !c.Storage.IsValid() {
		return fmt.Errorf("invalid storage backend: %s", c.Storage)
	}
	switch c.Storage {
	case LocalStorage:
		if c.LocalStorageDir == "" {
			return fmt.Errorf("local storage directory is required for local backend")
		}
	case S3Storage:
		if c.S3Bucket == "" {
			return fmt.Errorf("S3 bucket is required for s3 backend")
		}
		if c.S3Region == "" {
			return fmt.Errorf("S3 region is required for s3 backend")
		}
	}
	return nil
}

// GetStorageBackends returns all valid storage backends.
func GetStorageBackends() []StorageBackend {
	return []StorageBackend{LocalStorage, S3Storage}
}
