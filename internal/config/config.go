package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultServerURL is where the CLI delegates undecodable tokens.
	DefaultServerURL = "http://localhost:3030/how"

	defaultHost         = "127.0.0.1"
	defaultPort         = 3030
	defaultTokenMapPath = "token_mappings.json"
	defaultMetricsPath  = "/metrics"

	envPrefix = "HOW"
)

// ErrTokenMissing is returned when HOW_TOKEN is not set.
var ErrTokenMissing = errors.New("HOW_TOKEN not set")

// Config represents the server configuration parsed from YAML.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	TokenMap  TokenMapConfig  `yaml:"token_map"`
	Providers ProvidersConfig `yaml:"providers"`
	HTTP      HTTPConfig      `yaml:"http"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig defines listener configuration.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// TokenMapConfig locates the delegation token mapping. Path is used unless
// S3.Bucket is set.
type TokenMapConfig struct {
	Path string   `yaml:"path"`
	S3   S3Config `yaml:"s3"`
}

// S3Config points at a mapping object in S3 or an S3-compatible store.
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Key       string `yaml:"key"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// ProvidersConfig overrides provider API hosts, e.g. for compatible gateways.
type ProvidersConfig struct {
	OpenAI    ProviderConfig `yaml:"openai"`
	TextSynth ProviderConfig `yaml:"textsynth"`
}

// ProviderConfig captures routing info for a provider.
type ProviderConfig struct {
	BaseURL string `yaml:"base_url"`
}

// HTTPConfig tunes the shared outbound client. A zero Timeout sets no client
// timeout.
type HTTPConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Defaults returns a configuration that serves on 127.0.0.1:3030 with the
// mapping read from token_mappings.json in the working directory.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Host: defaultHost,
			Port: defaultPort,
		},
		TokenMap: TokenMapConfig{
			Path: defaultTokenMapPath,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    defaultMetricsPath,
		},
	}
}

// Load reads YAML configuration from disk on top of Defaults and validates the result.
func Load(path string) (Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, fmt.Errorf("resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %q: %w", absPath, err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %q: %w", absPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Address is the host:port the server listens on.
func (c Config) Address() string {
	return net.JoinHostPort(c.Server.Host, fmt.Sprintf("%d", c.Server.Port))
}

// Validate performs strict sanity checks on the configuration.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port, got %d", c.Server.Port)
	}

	if strings.TrimSpace(c.TokenMap.S3.Bucket) != "" {
		if strings.TrimSpace(c.TokenMap.S3.Key) == "" {
			return errors.New("token_map.s3.key must be provided with token_map.s3.bucket")
		}
		if strings.TrimSpace(c.TokenMap.S3.Region) == "" {
			return errors.New("token_map.s3.region must be provided with token_map.s3.bucket")
		}
	} else if strings.TrimSpace(c.TokenMap.Path) == "" {
		return errors.New("token_map.path or token_map.s3.bucket must be provided")
	}

	providers := map[string]ProviderConfig{
		"openai":    c.Providers.OpenAI,
		"textsynth": c.Providers.TextSynth,
	}
	for name, p := range providers {
		if err := validateBaseURL(name, p.BaseURL); err != nil {
			return err
		}
	}

	if c.HTTP.Timeout < 0 {
		return fmt.Errorf("http.timeout must not be negative, got %s", c.HTTP.Timeout)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/', got %q", c.Metrics.Path)
	}

	return nil
}

func validateBaseURL(name, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("provider %s: base_url: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("provider %s: base_url %q must use http or https", name, raw)
	}
	return nil
}

// ClientConfig is the CLI's environment-derived configuration.
type ClientConfig struct {
	Token  string
	Server string
}

// LoadClient reads HOW_TOKEN and HOW_SERVER from the environment.
func LoadClient() (ClientConfig, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetDefault("server", DefaultServerURL)

	cfg := ClientConfig{
		Token:  v.GetString("token"),
		Server: v.GetString("server"),
	}
	if cfg.Token == "" {
		return ClientConfig{}, ErrTokenMissing
	}
	if _, err := url.ParseRequestURI(cfg.Server); err != nil {
		return ClientConfig{}, fmt.Errorf("HOW_SERVER %q: %w", cfg.Server, err)
	}
	return cfg, nil
}
