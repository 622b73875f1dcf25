package app

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rowjay/simple-minio-client/internal/compress"
	"github.com/rowjay/simple-minio-client/internal/config"
	"github.com/rowjay/simple-minio-client/internal/cryptoutil"
	"github.com/rowjay/simple-minio-client/internal/headers"
	"github.com/rowjay/simple-minio-client/internal/lock"
	"github.com/rowjay/simple-minio-client/internal/storage"
	"github.com/rowjay/simple-minio-client/internal/version"
)

var ErrChecksumMismatch = errors.New("downloaded payload does not match manifest checksum")

type App struct {
	Cfg     *config.Config
	Backend storage.Backend
	Log     zerolog.Logger
}

func New(cfg *config.Config, backend storage.Backend, log zerolog.Logger) *App {
	return &App{Cfg: cfg, Backend: backend, Log: log}
}

type UploadResult struct {
	Manifest storage.Manifest
}

// Upload streams src through compression and encryption into the backend and
// then records a manifest next to the object.
func (a *App) Upload(ctx context.Context, bucket, object string, src io.Reader) (*UploadResult, error) {
	transfer := a.Cfg.Transfer
	if !compress.Supported(transfer.Compression) {
		return nil, fmt.Errorf("unsupported compression: %s", transfer.Compression)
	}
	var key []byte
	if transfer.Encryption {
		var err error
		if key, err = cryptoutil.ParseKey(transfer.EncryptionKey); err != nil {
			return nil, err
		}
	}

	digest := &countingHash{Hash: sha256.New()}
	pipeReader, pipeWriter := io.Pipe()
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		err := a.Backend.Put(egCtx, bucket, object, pipeReader)
		_ = pipeReader.CloseWithError(err)
		return err
	})

	eg.Go(func() error {
		err := encode(pipeWriter, io.TeeReader(src, digest), transfer.Compression, key)
		if err != nil {
			_ = pipeWriter.CloseWithError(err)
			return err
		}
		return pipeWriter.Close()
	})

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	manifest := storage.Manifest{
		Bucket:      bucket,
		Object:      object,
		Compression: transfer.Compression,
		Encryption:  transfer.Encryption,
		CreatedAt:   time.Now().UTC(),
		SourceBytes: digest.n,
		SHA256:      hex.EncodeToString(digest.Sum(nil)),
		ToolVersion: version.Version,
	}
	if transfer.Manifest {
		if err := a.writeManifest(ctx, manifest); err != nil {
			a.Log.Warn().Err(err).Str("bucket", bucket).Str("object", object).Msg("failed to write manifest")
		}
	}
	return &UploadResult{Manifest: manifest}, nil
}

// encode writes src to dst as compress -> encrypt.
func encode(dst io.Writer, src io.Reader, compression string, key []byte) error {
	writer := dst
	var closers []io.Closer
	if key != nil {
		encWriter, err := cryptoutil.EncryptWriter(writer, key)
		if err != nil {
			return err
		}
		writer = encWriter
		closers = append(closers, encWriter)
	}
	if compress.Enabled(compression) {
		compWriter, err := compress.WrapWriter(compression, writer)
		if err != nil {
			return err
		}
		writer = compWriter
		closers = append(closers, compWriter)
	}
	if _, err := io.Copy(writer, src); err != nil {
		return err
	}
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			return err
		}
	}
	return nil
}

// Download writes the decoded object to dst. Without a manifest the transfer
// settings from config decide how the payload is decoded.
func (a *App) Download(ctx context.Context, bucket, object string, dst io.Writer) (*storage.Manifest, error) {
	manifest := storage.Manifest{
		Bucket:      bucket,
		Object:      object,
		Compression: a.Cfg.Transfer.Compression,
		Encryption:  a.Cfg.Transfer.Encryption,
	}
	if a.Cfg.Transfer.Manifest {
		stored, err := a.readManifest(ctx, bucket, object)
		switch {
		case err == nil:
			manifest = stored
		case storage.IsNotFound(err):
			a.Log.Debug().Str("bucket", bucket).Str("object", object).Msg("no manifest, using configured transfer settings")
		default:
			a.Log.Warn().Err(err).Str("bucket", bucket).Str("object", object).Msg("failed to read manifest")
		}
	}

	reader, err := a.Backend.Get(ctx, bucket, object)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	payload := io.Reader(reader)
	if manifest.Encryption {
		if a.Cfg.Transfer.EncryptionKey == "" {
			return nil, errors.New("encryption key is required to download an encrypted object")
		}
		key, err := cryptoutil.ParseKey(a.Cfg.Transfer.EncryptionKey)
		if err != nil {
			return nil, err
		}
		if payload, err = cryptoutil.DecryptReader(payload, key); err != nil {
			return nil, err
		}
	}
	compReader, err := compress.WrapReader(manifest.Compression, payload)
	if err != nil {
		return nil, err
	}
	defer compReader.Close()

	digest := &countingHash{Hash: sha256.New()}
	if _, err := io.Copy(io.MultiWriter(dst, digest), compReader); err != nil {
		return nil, err
	}
	if manifest.SHA256 != "" && manifest.SHA256 != hex.EncodeToString(digest.Sum(nil)) {
		return nil, ErrChecksumMismatch
	}
	manifest.SourceBytes = digest.n
	return &manifest, nil
}

// DownloadFile downloads into path through a temp file in the same directory,
// holding a lock on path for the duration.
func (a *App) DownloadFile(ctx context.Context, bucket, object, path string) (*storage.Manifest, error) {
	guard, err := lock.Acquire(path + ".lock")
	if err != nil {
		return nil, err
	}
	defer guard.Release()

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())

	manifest, err := a.Download(ctx, bucket, object, tmp)
	if err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return nil, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return nil, err
	}
	return manifest, nil
}

// Headers returns the headers the simple client would attach for body.
// A nil body stands for a request without payload.
func (a *App) Headers(body []byte) headers.Headers {
	builder := headers.NewBuilder()
	if a.Cfg.Client.UserAgent != "" {
		builder.UserAgent = a.Cfg.Client.UserAgent
	}
	builder.ConnectionClose = a.Cfg.Client.ConnectionClose
	return builder.Build(body, a.Cfg.Client.Credentials())
}

func (a *App) writeManifest(ctx context.Context, manifest storage.Manifest) error {
	payload, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	return a.Backend.Put(ctx, manifest.Bucket, storage.ManifestKey(manifest.Object), bytes.NewReader(payload))
}

func (a *App) readManifest(ctx context.Context, bucket, object string) (storage.Manifest, error) {
	reader, err := a.Backend.Get(ctx, bucket, storage.ManifestKey(object))
	if err != nil {
		return storage.Manifest{}, err
	}
	defer reader.Close()
	var manifest storage.Manifest
	if err := json.NewDecoder(reader).Decode(&manifest); err != nil {
		return storage.Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	return manifest, nil
}

type countingHash struct {
	hash.Hash
	n int64
}

func (c *countingHash) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return c.Hash.Write(p)
}
