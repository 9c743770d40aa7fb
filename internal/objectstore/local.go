package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Local keeps objects on disk under <dir>/<bucket>/<key>.
type Local struct {
	root    string
	bucket  string
	baseURL string
}

// NewLocal creates the bucket directory if needed.
func NewLocal(dir, bucket, baseURL string) (*Local, error) {
	root := filepath.Join(dir, bucket)
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("creating bucket dir: %w", err)
	}
	return &Local{root: root, bucket: bucket, baseURL: baseURL}, nil
}

func (l *Local) Bucket() string { return l.bucket }

func (l *Local) PublicURL(key string) string {
	return publicURL(l.baseURL, l.bucket, key)
}

func (l *Local) path(key string) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.root, filepath.FromSlash(k)), nil
}

func (l *Local) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := l.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("opening object %s: %w", key, err)
	}
	return f, nil
}

func (l *Local) Upload(ctx context.Context, key string, data []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return fmt.Errorf("creating object dir: %w", err)
	}
	if err := os.WriteFile(p, data, 0o600); err != nil {
		return fmt.Errorf("writing object %s: %w", key, err)
	}
	return nil
}

func (l *Local) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing object %s: %w", key, err)
	}
	return nil
}
