package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rowjay/simple-minio-client/internal/cryptoutil"
)

const (
	envPrefix = "SMC"
	appName   = "smc"
)

// Load reads configuration from a file (optionally encrypted), env vars, and defaults.
func Load(path string) (*Config, error) {
	vp := viper.New()
	vp.SetEnvPrefix(envPrefix)
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	setDefaults(vp)

	resolved, err := resolveConfigPath(path)
	if err != nil {
		return nil, err
	}

	if resolved != "" {
		data, readErr := os.ReadFile(resolved)
		if readErr != nil {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
		if isEncryptedPath(resolved) {
			vp.SetConfigType(configTypeFromPath(resolved))
			key := os.Getenv("SMC_CONFIG_KEY")
			if key == "" {
				key = vp.GetString("global.config_passphrase")
			}
			if key == "" {
				return nil, errors.New("config file is encrypted but SMC_CONFIG_KEY is not set")
			}
			plain, decErr := decryptConfig(data, key)
			if decErr != nil {
				return nil, fmt.Errorf("decrypt config: %w", decErr)
			}
			if err := vp.ReadConfig(bytes.NewReader(plain)); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		} else {
			vp.SetConfigFile(resolved)
			if err := vp.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := vp.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	expandEnv(&cfg)
	applyPostLoadDefaults(&cfg)
	return &cfg, nil
}

// Validate checks the settings a client needs before any request is made.
func (c *Config) Validate() error {
	if c.Client.Location == "" {
		return errors.New("client.location is required")
	}
	switch c.Client.Backend {
	case "simple", "minio", "local":
	default:
		return fmt.Errorf("unsupported client backend: %s", c.Client.Backend)
	}
	if c.Transfer.Encryption && c.Transfer.EncryptionKey == "" {
		return errors.New("transfer.encryption is enabled but transfer.encryption_key is empty")
	}
	return nil
}

func resolveConfigPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	if envPath := os.Getenv("SMC_CONFIG"); envPath != "" {
		return envPath, nil
	}

	candidates := []string{
		appName + ".yaml",
		appName + ".yml",
		appName + ".toml",
		appName + ".json",
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}

	configDir, err := os.UserConfigDir()
	if err == nil {
		base := filepath.Join(configDir, appName)
		for _, c := range candidates {
			p := filepath.Join(base, c)
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}
		for _, c := range candidates[:3] {
			p := filepath.Join(base, c+".enc")
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}
	}

	return "", nil
}

func isEncryptedPath(path string) bool {
	return strings.HasSuffix(path, ".enc") || strings.HasSuffix(path, ".encrypted")
}

func configTypeFromPath(path string) string {
	trimmed := strings.TrimSuffix(strings.TrimSuffix(path, ".enc"), ".encrypted")
	switch filepath.Ext(trimmed) {
	case ".toml":
		return "toml"
	case ".json":
		return "json"
	default:
		return "yaml"
	}
}

func setDefaults(vp *viper.Viper) {
	vp.SetDefault("global.log_level", "info")
	vp.SetDefault("global.log_format", "json")
	vp.SetDefault("global.operation_timeout", "10m")
	vp.SetDefault("client.backend", "simple")
	vp.SetDefault("client.location", "")
	vp.SetDefault("client.access_key", "")
	vp.SetDefault("client.secret_key", "")
	vp.SetDefault("client.region", "us-east-1")
	vp.SetDefault("client.request_timeout", "15s")
	vp.SetDefault("client.connect_timeout", "20s")
	vp.SetDefault("client.connection_close", false)
	vp.SetDefault("client.user_agent", "")
	vp.SetDefault("client.max_concurrent", 16)
	vp.SetDefault("transfer.compression", "none")
	vp.SetDefault("transfer.encryption", false)
	vp.SetDefault("transfer.encryption_key", "")
	vp.SetDefault("transfer.manifest", true)
}

func applyPostLoadDefaults(cfg *Config) {
	if cfg.Global.OperationTimeout == 0 {
		cfg.Global.OperationTimeout = 10 * time.Minute
	}
	if cfg.Client.RequestTimeout == 0 {
		cfg.Client.RequestTimeout = 15 * time.Second
	}
	if cfg.Client.ConnectTimeout == 0 {
		cfg.Client.ConnectTimeout = 20 * time.Second
	}
	if cfg.Client.MaxConcurrent <= 0 {
		cfg.Client.MaxConcurrent = 16
	}
	cfg.Client.Backend = strings.ToLower(cfg.Client.Backend)
	cfg.Transfer.Compression = strings.ToLower(cfg.Transfer.Compression)
}

func expandEnv(cfg *Config) {
	cfg.Client.Location = os.ExpandEnv(cfg.Client.Location)
	cfg.Client.AccessKey = os.ExpandEnv(cfg.Client.AccessKey)
	cfg.Client.SecretKey = os.ExpandEnv(cfg.Client.SecretKey)
	cfg.Transfer.EncryptionKey = os.ExpandEnv(cfg.Transfer.EncryptionKey)
}

func decryptConfig(ciphertext []byte, key string) ([]byte, error) {
	parsed, err := cryptoutil.ParseKey(key)
	if err != nil {
		return nil, err
	}
	return cryptoutil.DecryptConfig(ciphertext, parsed)
}
