package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"neural-how/internal/client"
	"neural-how/internal/config"
	"neural-how/internal/httpclient"
	"neural-how/internal/logger"
	"neural-how/internal/metrics"
	"neural-how/internal/provider/factory"
	"neural-how/internal/server"
	"neural-how/internal/tokenmap"
)

type serveOptions struct {
	configPath   string
	port         int
	tokenMapPath string
}

func newServeCommand(debug *bool) *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the delegation server",
		Long: `Start the HTTP server that answers POST /how for callers holding a
delegation token. Delegation tokens are mapped to provider tokens by a
JSON or YAML file loaded once at startup.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, *debug)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "path to YAML configuration file")
	cmd.Flags().IntVar(&opts.port, "port", 0, "override server port from configuration")
	cmd.Flags().StringVar(&opts.tokenMapPath, "token-map", "", "override token mapping file path")

	return cmd
}

func (o serveOptions) load() (config.Config, error) {
	cfg := config.Defaults()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	if o.port != 0 {
		if o.port < 0 || o.port > 65535 {
			return config.Config{}, fmt.Errorf("port override %d must be a valid TCP port", o.port)
		}
		cfg.Server.Port = o.port
	}
	if strings.TrimSpace(o.tokenMapPath) != "" {
		cfg.TokenMap.Path = o.tokenMapPath
		cfg.TokenMap.S3 = config.S3Config{}
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func tokenMapSource(cfg config.TokenMapConfig) tokenmap.Source {
	if strings.TrimSpace(cfg.S3.Bucket) != "" {
		return tokenmap.NewS3Source(tokenmap.S3Config{
			Bucket:    cfg.S3.Bucket,
			Key:       cfg.S3.Key,
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
		})
	}
	return tokenmap.FileSource{Path: cfg.Path}
}

func serve(ctx context.Context, cfg config.Config, debug bool) error {
	log := logger.Must(debug)
	defer func() { _ = log.Sync() }()

	src := tokenMapSource(cfg.TokenMap)
	tokens, err := tokenmap.Load(ctx, src)
	if err != nil {
		return err
	}
	log.Info("loaded token mapping", zap.String("source", src.String()), zap.Int("entries", tokens.Len()))

	var reg *metrics.Registry
	if cfg.Metrics.Enabled {
		reg = metrics.NewRegistry()
		reg.SetTokenMapSize(tokens.Len())
	}

	adapters, err := factory.NewRegistry(cfg.Providers)
	if err != nil {
		return err
	}

	var recorder client.Recorder
	if reg != nil {
		recorder = reg
	}
	completer, err := client.New(httpclient.New(cfg.HTTP.Timeout), adapters, log, recorder)
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, tokens, completer, log, reg)
	if err != nil {
		return err
	}

	return srv.Run(ctx)
}
