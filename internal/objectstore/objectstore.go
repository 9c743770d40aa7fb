// Package objectstore stores uploaded study material in a single bucket and
// exposes it under public URLs of the form
// <base>/storage/v1/object/public/<bucket>/<path>.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/atlasstudy/atlas/internal/config"
	"github.com/atlasstudy/atlas/internal/logger"
)

// PublicPrefix precedes the bucket name in every public object URL.
const PublicPrefix = "/storage/v1/object/public/"

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("object not found")

// Store is a bucket-scoped object store.
type Store interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Remove(ctx context.Context, key string) error
	Bucket() string
	PublicURL(key string) string
}

// New builds the backend selected by cfg.Backend.
func New(cfg config.ObjectStoreConfig, log *logger.Logger) (Store, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocal(cfg.LocalDir, cfg.Bucket, cfg.PublicBaseURL)
	case "s3":
		return NewS3(cfg, log)
	default:
		return nil, fmt.Errorf("unknown object store backend %q", cfg.Backend)
	}
}

// Download reads a whole object into memory.
func Download(ctx context.Context, s Store, key string) ([]byte, error) {
	rc, err := s.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// cleanKey normalises an object key and rejects keys that escape the bucket.
func cleanKey(key string) (string, error) {
	k := strings.TrimLeft(strings.TrimSpace(key), "/")
	if k == "" {
		return "", fmt.Errorf("empty object key")
	}
	k = path.Clean(k)
	if k == "." || k == ".." || strings.HasPrefix(k, "../") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return k, nil
}

func publicURL(base, bucket, key string) string {
	segs := strings.Split(strings.TrimLeft(key, "/"), "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.TrimRight(base, "/") + PublicPrefix + bucket + "/" + strings.Join(segs, "/")
}
