// Package objectstore keeps uploaded report originals on disk and serves them by public URL.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/hyperjump/reportqa/internal/errs"
	"go.uber.org/zap"
)

// URLPrefix is the HTTP path under which stored objects are served.
const URLPrefix = "/files/"

// Store saves and retrieves objects by slash-separated key.
type Store interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Open(key string) (io.ReadCloser, error)
	Delete(ctx context.Context, prefix string) error
	KeyForURL(url string) (string, bool)
}

// DiskStore stores objects as files below a root directory.
type DiskStore struct {
	root    string
	baseURL string
	logger  *zap.Logger
}

// Option configures a DiskStore.
type Option func(*DiskStore)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(s *DiskStore) { s.logger = l }
}

// NewDiskStore creates the root directory if needed. baseURL is the public server
// address, e.g. http://localhost:8080.
func NewDiskStore(root, baseURL string, opts ...Option) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create object store: %w", err)
	}
	s := &DiskStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s, nil
}

// cleanKey rejects keys that are empty, absolute, or escape the root.
func cleanKey(key string) (string, error) {
	k := path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))
	k = strings.TrimPrefix(k, "/")
	if k == "" || k == "." || strings.Contains(key, "..") {
		return "", errs.Newf(errs.KindInvalidInput, "objectstore.key", "invalid object key %q", key)
	}
	return k, nil
}

func (s *DiskStore) file(key string) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(k)), nil
}

// URL returns the public URL of key.
func (s *DiskStore) URL(key string) string {
	return s.baseURL + URLPrefix + strings.TrimPrefix(key, "/")
}

// KeyForURL maps a public URL of this store back to its key.
func (s *DiskStore) KeyForURL(url string) (string, bool) {
	prefix := s.baseURL + URLPrefix
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	k, err := cleanKey(strings.TrimPrefix(url, prefix))
	if err != nil {
		return "", false
	}
	return k, true
}

// Upload writes data at key, replacing any existing object, and returns its public URL.
func (s *DiskStore) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p, err := s.file(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return "", errs.Wrap(errs.KindPersistence, "objectstore.upload", err)
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", errs.Wrap(errs.KindPersistence, "objectstore.upload", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return "", errs.Wrap(errs.KindPersistence, "objectstore.upload", err)
	}
	s.logger.Debug("object stored", zap.String("key", key), zap.String("content_type", contentType), zap.Int("bytes", len(data)))
	return s.URL(key), nil
}

// Open returns a reader for key. A missing object is a NotFound error.
func (s *DiskStore) Open(key string) (io.ReadCloser, error) {
	p, err := s.file(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, errs.Newf(errs.KindNotFound, "objectstore.open", "object not found: %s", key)
	}
	if err != nil {
		return nil, errs.Wrap(errs.KindPersistence, "objectstore.open", err)
	}
	return f, nil
}

// Delete removes every object under prefix. Missing prefixes are not an error.
func (s *DiskStore) Delete(ctx context.Context, prefix string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.file(prefix)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(p); err != nil {
		return errs.Wrap(errs.KindPersistence, "objectstore.delete", err)
	}
	return nil
}

// Handler serves stored objects; mount it at URLPrefix.
func (s *DiskStore) Handler() http.Handler {
	return http.StripPrefix(URLPrefix, http.FileServer(http.Dir(s.root)))
}
