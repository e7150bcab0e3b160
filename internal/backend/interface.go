// Package backend builds the database and object storage selected by configuration.
package backend

import (
	"contratandoplanos/internal/ports"
)

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// Result holds the adapters the server and the worker run on.
type Result struct {
	Store   ports.Store
	Objects ports.ObjectStorage
	Cleanup CleanupFunc
}

// StorageBackend selects where uploaded files go.
type StorageBackend string

const (
	LocalStorage StorageBackend = "local"
	S3Storage    StorageBackend = "s3"
)

func (b StorageBackend) String() string {
	return string(b)
}

func (b StorageBackend) IsValid() bool {
	switch b {
	case LocalStorage, S3Storage:
		return true
	default:
		return false
	}
}

// Config holds what the factory needs from the application config.
type Config struct {
	DatabaseDriver string
	DatabaseDSN    string

	Storage         StorageBackend
	LocalStorageDir string
	S3Endpoint      string
	S3Region        string
	S3Bucket        string
	S3AccessKeyID   string
	S3SecretKey     string
	S3PublicBaseURL string
	S3UsePathStyle  bool
}
