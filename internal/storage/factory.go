package storage

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rowjay/simple-minio-client/internal/client"
	"github.com/rowjay/simple-minio-client/internal/config"
	"github.com/rowjay/simple-minio-client/internal/transport"
)

func New(cfg config.ClientConfig, log zerolog.Logger) (Backend, error) {
	switch cfg.Backend {
	case "simple", "":
		c, err := client.New(cfg.Location, cfg.Credentials(),
			client.WithTimeout(cfg.RequestTimeout),
			client.WithUserAgent(cfg.UserAgent),
			client.WithConnectionClose(cfg.ConnectionClose),
			client.WithLogger(log),
			client.WithTransportOptions(transport.Options{
				ConnectTimeout:  cfg.ConnectTimeout,
				MaxConcurrent:   cfg.MaxConcurrent,
				TLSInsecureSkip: cfg.TLSInsecureSkip,
			}),
		)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "minio":
		m, err := NewMinIO(cfg.Location, cfg.Region, cfg.Credentials(), cfg.TLSInsecureSkip, log)
		if err != nil {
			return nil, err
		}
		return m, nil
	case "local":
		return NewLocal(localPath(cfg.Location)), nil
	default:
		return nil, fmt.Errorf("unsupported client backend: %s", cfg.Backend)
	}
}

func localPath(location string) string {
	if strings.HasPrefix(location, "file://") {
		if u, err := url.Parse(location); err == nil {
			return u.Path
		}
	}
	return location
}
