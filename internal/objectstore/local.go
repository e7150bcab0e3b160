package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// LocalPrefix is the URL path under which the web server streams local files.
const LocalPrefix = "/arquivos/"

// LocalStore writes objects below a directory. Its URLs point at the
// authenticated file route, so SignedURL needs no signature.
type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

var errBadKey = errors.New("invalid object key")

// resolve maps a key to a path inside dir, rejecting traversal.
func (s *LocalStore) resolve(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", errBadKey
	}
	return filepath.Join(s.dir, filepath.FromSlash(clean)), nil
}

func (s *LocalStore) Put(_ context.Context, key, _ string, body io.Reader, _ int64) (string, error) {
	p, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return "", fmt.Errorf("create object directory: %w", err)
	}
	f, err := os.Create(p)
	if err != nil {
		return "", fmt.Errorf("create object %s: %w", key, err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(p)
		return "", fmt.Errorf("write object %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close object %s: %w", key, err)
	}
	return s.PublicURL(key), nil
}

func (s *LocalStore) Get(_ context.Context, key string) (io.ReadCloser, string, error) {
	p, err := s.resolve(key)
	if err != nil {
		return nil, "", err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("open object %s: %w", key, err)
	}
	contentType := mime.TypeByExtension(filepath.Ext(p))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return f, contentType, nil
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	p, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

func (s *LocalStore) SignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return s.PublicURL(key), nil
}

func (s *LocalStore) PublicURL(key string) string {
	return LocalPrefix + strings.TrimPrefix(key, "/")
}
