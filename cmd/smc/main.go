package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rowjay/simple-minio-client/internal/app"
	"github.com/rowjay/simple-minio-client/internal/config"
	"github.com/rowjay/simple-minio-client/internal/logging"
	"github.com/rowjay/simple-minio-client/internal/storage"
	"github.com/rowjay/simple-minio-client/internal/version"
)

type rootFlags struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
}

type overrideFlags struct {
	Backend         string
	Location        string
	AccessKey       string
	SecretKey       string
	Region          string
	UserAgent       string
	ConnectionClose string
	Compression     string
	Encrypt         bool
	EncryptionKey   string
}

type objectFlags struct {
	Bucket string
	Key    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &rootFlags{}
	overrides := &overrideFlags{}

	rootCmd := &cobra.Command{
		Use:          "smc",
		Short:        "Minimal GET/PUT client for S3-compatible object storage",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&root.ConfigPath, "config", "", "Path to config file (yaml/toml/json or .enc)")
	rootCmd.PersistentFlags().StringVar(&root.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&root.LogFormat, "log-format", "", "Log format (json, console)")

	rootCmd.PersistentFlags().StringVar(&overrides.Backend, "backend", "", "Client backend (simple, minio, local)")
	rootCmd.PersistentFlags().StringVar(&overrides.Location, "location", "", "Object storage base URL, e.g. http://localhost:9000")
	rootCmd.PersistentFlags().StringVar(&overrides.AccessKey, "access-key", "", "Access key")
	rootCmd.PersistentFlags().StringVar(&overrides.SecretKey, "secret-key", "", "Secret key")
	rootCmd.PersistentFlags().StringVar(&overrides.Region, "region", "", "Region (minio backend)")
	rootCmd.PersistentFlags().StringVar(&overrides.UserAgent, "user-agent", "", "User-Agent header value")
	rootCmd.PersistentFlags().StringVar(&overrides.ConnectionClose, "connection-close", "", "Send Connection: close (true/false)")
	rootCmd.PersistentFlags().StringVar(&overrides.Compression, "compression", "", "Payload compression (none/gzip/zstd)")
	rootCmd.PersistentFlags().BoolVar(&overrides.Encrypt, "encrypt", false, "Encrypt payloads on upload")
	rootCmd.PersistentFlags().StringVar(&overrides.EncryptionKey, "encryption-key", "", "Payload encryption key (base64 or hex)")

	rootCmd.AddCommand(newGetCmd(root, overrides))
	rootCmd.AddCommand(newPutCmd(root, overrides))
	rootCmd.AddCommand(newHeadersCmd(root, overrides))
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

func addObjectFlags(cmd *cobra.Command, obj *objectFlags) {
	cmd.Flags().StringVar(&obj.Bucket, "bucket", "", "Bucket name (dots map to path segments)")
	cmd.Flags().StringVar(&obj.Key, "key", "", "Object key")
	_ = cmd.MarkFlagRequired("bucket")
	_ = cmd.MarkFlagRequired("key")
}

func newGetCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	obj := &objectFlags{}
	var output string

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Download an object",
		RunE: func(cmd *cobra.Command, args []string) error {
			appSvc, cfg, err := setup(root, overrides)
			if err != nil {
				return err
			}
			defer appSvc.Backend.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Global.OperationTimeout)
			defer cancel()

			if output == "" || output == "-" {
				_, err := appSvc.Download(ctx, obj.Bucket, obj.Key, cmd.OutOrStdout())
				return err
			}
			manifest, err := appSvc.DownloadFile(ctx, obj.Bucket, obj.Key, output)
			if err != nil {
				return err
			}
			appSvc.Log.Info().Str("bucket", obj.Bucket).Str("key", obj.Key).Str("output", output).Int64("size", manifest.SourceBytes).Msg("get completed")
			return nil
		},
	}
	addObjectFlags(cmd, obj)
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (stdout when empty or -)")
	return cmd
}

func newPutCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	obj := &objectFlags{}
	var input string

	cmd := &cobra.Command{
		Use:   "put",
		Short: "Upload an object",
		RunE: func(cmd *cobra.Command, args []string) error {
			appSvc, cfg, err := setup(root, overrides)
			if err != nil {
				return err
			}
			defer appSvc.Backend.Close()

			src, closeSrc, err := openInput(input, cmd.InOrStdin())
			if err != nil {
				return err
			}
			defer closeSrc()

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Global.OperationTimeout)
			defer cancel()

			res, err := appSvc.Upload(ctx, obj.Bucket, obj.Key, src)
			if err != nil {
				return err
			}
			appSvc.Log.Info().Str("bucket", obj.Bucket).Str("key", obj.Key).Int64("size", res.Manifest.SourceBytes).Str("sha256", res.Manifest.SHA256).Msg("put completed")
			return nil
		},
	}
	addObjectFlags(cmd, obj)
	cmd.Flags().StringVarP(&input, "file", "f", "", "Input file (stdin when empty or -)")
	return cmd
}

func newHeadersCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	var input string
	var noBody bool

	cmd := &cobra.Command{
		Use:   "headers",
		Short: "Print the headers a request would carry",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root, overrides)
			if err != nil {
				return err
			}
			appSvc := app.New(cfg, nil, logging.Configure(cfg.Global.LogLevel, cfg.Global.LogFormat))

			var body []byte
			if !noBody {
				src, closeSrc, err := openInput(input, cmd.InOrStdin())
				if err != nil {
					return err
				}
				defer closeSrc()
				if body, err = io.ReadAll(src); err != nil {
					return err
				}
			}
			for _, hdr := range appSvc.Headers(body) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", hdr.Name, hdr.Value)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "file", "f", "", "Body file (stdin when empty or -)")
	cmd.Flags().BoolVar(&noBody, "no-body", false, "Build headers for a request without body (GET)")
	return cmd
}

func newConfigCmd() *cobra.Command {
	var input string
	var output string
	var key string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Config utilities",
	}

	encrypt := &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt a config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if input == "" || output == "" || key == "" {
				return fmt.Errorf("--input, --output, and --key are required")
			}
			return config.EncryptConfigFile(input, output, key)
		},
	}
	encrypt.Flags().StringVar(&input, "input", "", "Input config file")
	encrypt.Flags().StringVar(&output, "output", "", "Output encrypted config file")
	encrypt.Flags().StringVar(&key, "key", "", "Encryption key (base64 or hex)")

	cmd.AddCommand(encrypt)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "smc %s (commit %s, built %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}

func setup(root *rootFlags, overrides *overrideFlags) (*app.App, *config.Config, error) {
	cfg, err := loadConfig(root, overrides)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	logger := logging.Configure(cfg.Global.LogLevel, cfg.Global.LogFormat)
	backend, err := storage.New(cfg.Client, logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug().Str("backend", cfg.Client.Backend).Str("location", cfg.Client.Location).Stringer("credentials", cfg.Client.Credentials()).Msg("client ready")
	return app.New(cfg, backend, logger), cfg, nil
}

func openInput(path string, stdin io.Reader) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return stdin, func() {}, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return file, func() { _ = file.Close() }, nil
}

func loadConfig(root *rootFlags, overrides *overrideFlags) (*config.Config, error) {
	cfg, err := config.Load(root.ConfigPath)
	if err != nil {
		return nil, err
	}
	applyOverrides(cfg, root, overrides)
	return cfg, nil
}

func applyOverrides(cfg *config.Config, root *rootFlags, overrides *overrideFlags) {
	if root.LogLevel != "" {
		cfg.Global.LogLevel = root.LogLevel
	}
	if root.LogFormat != "" {
		cfg.Global.LogFormat = root.LogFormat
	}

	if overrides.Backend != "" {
		cfg.Client.Backend = overrides.Backend
	}
	if overrides.Location != "" {
		cfg.Client.Location = overrides.Location
	}
	if overrides.AccessKey != "" {
		cfg.Client.AccessKey = overrides.AccessKey
	}
	if overrides.SecretKey != "" {
		cfg.Client.SecretKey = overrides.SecretKey
	}
	if overrides.Region != "" {
		cfg.Client.Region = overrides.Region
	}
	if overrides.UserAgent != "" {
		cfg.Client.UserAgent = overrides.UserAgent
	}
	if overrides.ConnectionClose != "" {
		cfg.Client.ConnectionClose = strings.EqualFold(overrides.ConnectionClose, "true") || overrides.ConnectionClose == "1"
	}
	if overrides.Compression != "" {
		cfg.Transfer.Compression = overrides.Compression
	}
	if overrides.Encrypt {
		cfg.Transfer.Encryption = true
	}
	if overrides.EncryptionKey != "" {
		cfg.Transfer.EncryptionKey = overrides.EncryptionKey
	}

	cfg.Client.Backend = strings.ToLower(cfg.Client.Backend)
	cfg.Transfer.Compression = strings.ToLower(cfg.Transfer.Compression)
}
