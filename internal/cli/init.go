// Package cli wires the contratandoplanos commands.
// The bootstrap steps shared by serve, worker, migrate and create-admin live
// here: env file, configuration, logging, storage and signal handling.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"contratandoplanos/internal/backend"
	"contratandoplanos/internal/config"
	applog "contratandoplanos/internal/log"
	"contratandoplanos/internal/storage"
)

// LoadEnvFile loads variables from path for local development.
// A missing file is not an error; variables already set win.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// LoadAndValidateConfig reads the environment and validates the result.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetupLogger builds the process logger from config and installs it as the
// slog default.
func SetupLogger(cfg *config.Config, out io.Writer) *applog.Logger {
	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: applog.ComponentApp,
		Output:    out,
	})
	applog.SetDefault(logger)
	return logger
}

// OpenStore opens the configured database and applies pending migrations.
func OpenStore(ctx context.Context, cfg *config.Config) (*storage.Repository, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	return storage.Open(ctx, bcfg.DatabaseDriver, bcfg.DatabaseDSN)
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// imageSources lists the bucket origin so broker photos pass the CSP.
func imageSources(cfg *config.Config) []string {
	if cfg.StorageBackend != string(backend.S3Storage) || cfg.S3PublicBaseURL == "" {
		return nil
	}
	u, err := url.Parse(cfg.S3PublicBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil
	}
	return []string{u.Scheme + "://" + u.Host}
}
