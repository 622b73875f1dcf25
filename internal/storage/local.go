package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rowjay/simple-minio-client/internal/util"
)

// Local stores objects under BasePath using the same bucket/key layout as the
// HTTP backends.
type Local struct {
	BasePath string
}

func NewLocal(path string) *Local {
	return &Local{BasePath: path}
}

// ErrOutsideRoot is returned for bucket/key pairs that resolve outside BasePath.
var ErrOutsideRoot = errors.New("object path escapes storage root")

func (l *Local) path(bucket, object string) (string, error) {
	target := filepath.Join(l.BasePath, filepath.FromSlash(util.BucketPath(bucket)), filepath.FromSlash(object))
	rel, err := filepath.Rel(l.BasePath, target)
	if err != nil {
		return "", fmt.Errorf("%s/%s: %w", bucket, object, err)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s/%s: %w", bucket, object, ErrOutsideRoot)
	}
	return target, nil
}

func (l *Local) Put(ctx context.Context, bucket, object string, reader io.Reader) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	target, err := l.path(bucket, object)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".put-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}

func (l *Local) Get(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	target, err := l.path(bucket, object)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(target)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s/%s: %w", bucket, object, ErrNotFound)
	}
	return file, err
}

func (l *Local) Close() error { return nil }
