package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"

	"github.com/rowjay/simple-minio-client/internal/client"
)

var ErrNotFound = errors.New("object not found")

// Backend addresses objects by dotted bucket name and object key. Every
// implementation maps bucket "a.b" and key "k" to the resource a/b/k.
type Backend interface {
	Get(ctx context.Context, bucket, object string) (io.ReadCloser, error)
	Put(ctx context.Context, bucket, object string, body io.Reader) error
	Close() error
}

var _ Backend = (*client.Client)(nil)

// IsNotFound reports whether err means the object does not exist, whichever
// backend produced it.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		return true
	}
	var statusErr *client.StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound
}
