package storage

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"

	"github.com/rowjay/simple-minio-client/internal/auth"
	"github.com/rowjay/simple-minio-client/internal/util"
)

// MinIO sends signed requests through minio-go. The first segment of a dotted
// bucket name is the S3 bucket; the remaining segments prefix the object key.
type MinIO struct {
	Client    *minio.Client
	transport *http.Transport
	log       zerolog.Logger
}

func NewMinIO(location, region string, creds *auth.Credentials, insecure bool, log zerolog.Logger) (*MinIO, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("parse location: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("minio location must be http(s), got %q", location)
	}
	if u.Path != "" && u.Path != "/" {
		return nil, fmt.Errorf("minio location must not carry a path: %q", location)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	client, err := minio.New(u.Host, &minio.Options{
		Creds:        credentials.NewStaticV4(creds.AccessKey(), creds.SecretKey(), ""),
		Secure:       u.Scheme == "https",
		Region:       region,
		Transport:    transport,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, err
	}
	return &MinIO{Client: client, transport: transport, log: log}, nil
}

func (m *MinIO) resolve(bucket, object string) (string, string) {
	name, prefix := util.SplitBucketPath(bucket)
	return name, util.BuildObjectKey(prefix, object)
}

// Put streams body with unknown size; minio-go switches to multipart for large payloads.
func (m *MinIO) Put(ctx context.Context, bucket, object string, body io.Reader) error {
	name, key := m.resolve(bucket, object)
	info, err := m.Client.PutObject(ctx, name, key, body, -1, minio.PutObjectOptions{SendContentMd5: true})
	if err != nil {
		return err
	}
	m.log.Debug().Str("bucket", name).Str("key", key).Int64("size", info.Size).Str("etag", info.ETag).Msg("object stored")
	return nil
}

func (m *MinIO) Get(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	name, key := m.resolve(bucket, object)
	obj, err := m.Client.GetObject(ctx, name, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	// GetObject is lazy; Stat surfaces missing objects before the caller reads.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%s/%s: %w", name, key, ErrNotFound)
		}
		return nil, err
	}
	return obj, nil
}

func (m *MinIO) Close() error {
	m.transport.CloseIdleConnections()
	return nil
}
