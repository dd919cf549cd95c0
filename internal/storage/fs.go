package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FSStorage stores blobs as files below a base directory. Keys are
// slash-separated paths; resolution rejects anything escaping the base
// directory.
type FSStorage struct {
	baseDir string

	// baseURL is prepended to keys by SignedURL. Local files cannot carry
	// an expiry, so the TTL is ignored; the server is expected to gate the
	// path behind its own auth.
	baseURL string
}

func NewFSStorage(baseDir, baseURL string) (*FSStorage, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve base dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o770); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", abs, err)
	}
	return &FSStorage{baseDir: abs, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// resolve maps a key to an absolute path under baseDir, rejecting
// path-traversal attempts.
func (s *FSStorage) resolve(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("empty storage key")
	}
	p := filepath.Join(s.baseDir, filepath.FromSlash(key))
	p = filepath.Clean(p)
	if p != s.baseDir && !strings.HasPrefix(p, s.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("storage key %q escapes base directory", key)
	}
	return p, nil
}

func (s *FSStorage) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o770); err != nil {
		return fmt.Errorf("mkdir for %s: %w", key, err)
	}

	// Write to a temp file first so a crash never leaves a half-written
	// object under the final key.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", key, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename %s: %w", key, err)
	}
	return nil
}

func (s *FSStorage) Download(ctx context.Context, key string) ([]byte, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

func (s *FSStorage) Delete(ctx context.Context, key string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *FSStorage) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if _, err := s.resolve(key); err != nil {
		return "", err
	}
	escaped := make([]string, 0, 4)
	for _, part := range strings.Split(key, "/") {
		escaped = append(escaped, url.PathEscape(part))
	}
	return s.baseURL + "/" + strings.Join(escaped, "/"), nil
}

func (s *FSStorage) TestConnection(ctx context.Context) error {
	probe := filepath.Join(s.baseDir, ".healthcheck")
	if err := os.WriteFile(probe, []byte("ok"), 0o660); err != nil {
		return fmt.Errorf("storage not writable: %w", err)
	}
	return os.Remove(probe)
}

func (s *FSStorage) Backend() string { return BackendFS }
