package config

import (
	"time"

	"github.com/rowjay/simple-minio-client/internal/auth"
)

// Config is the root configuration schema.
type Config struct {
	Global   GlobalConfig   `mapstructure:"global"`
	Client   ClientConfig   `mapstructure:"client"`
	Transfer TransferConfig `mapstructure:"transfer"`
}

type GlobalConfig struct {
	LogLevel         string        `mapstructure:"log_level"`
	LogFormat        string        `mapstructure:"log_format"` // json or console
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
	ConfigPassphrase string        `mapstructure:"config_passphrase"` // optional; may come from env
}

type ClientConfig struct {
	Backend         string        `mapstructure:"backend"` // simple, minio, local
	Location        string        `mapstructure:"location"`
	AccessKey       string        `mapstructure:"access_key"`
	SecretKey       string        `mapstructure:"secret_key"`
	Region          string        `mapstructure:"region"` // minio backend only
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	ConnectionClose bool          `mapstructure:"connection_close"`
	UserAgent       string        `mapstructure:"user_agent"`
	MaxConcurrent   int           `mapstructure:"max_concurrent"`
	TLSInsecureSkip bool          `mapstructure:"tls_insecure_skip"`
}

type TransferConfig struct {
	Compression   string `mapstructure:"compression"` // none, gzip, zstd
	Encryption    bool   `mapstructure:"encryption"`
	EncryptionKey string `mapstructure:"encryption_key"`
	Manifest      bool   `mapstructure:"manifest"`
}

// Credentials returns nil when no access key is configured.
func (c ClientConfig) Credentials() *auth.Credentials {
	return auth.FromKeys(c.AccessKey, c.SecretKey)
}
