package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/lwalthert/intuneapp/pkg/upload"
)

// Config holds every tunable of the packaging and publishing pipeline.
type Config struct {
	// Graph configures the management API client.
	Graph GraphConfig `yaml:"graph"`
	// Upload configures chunked block uploads.
	Upload UploadConfig `yaml:"upload"`
	// Lifecycle configures polling of the content file state.
	Lifecycle LifecycleConfig `yaml:"lifecycle"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// GraphConfig holds management API connection parameters.
type GraphConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token,omitempty"`
	Timeout time.Duration `yaml:"timeout"`
}

// UploadConfig holds block upload tunables.
type UploadConfig struct {
	ChunkSize     ByteSize      `yaml:"chunk_size"`
	RenewAfter    time.Duration `yaml:"renew_after"`
	MaxAttempts   int           `yaml:"max_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
	RetryStatuses []int         `yaml:"retry_statuses"`
}

// LifecycleConfig holds state polling tunables.
type LifecycleConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	Timeout      time.Duration `yaml:"timeout"`
}

const (
	// DefaultConfigFilename is looked up in the working directory when no path is given.
	DefaultConfigFilename = "intuneapp.yaml"

	// TokenEnv overrides Graph.Token when set.
	TokenEnv = "INTUNEAPP_GRAPH_TOKEN"

	DefaultGraphBaseURL = "https://graph.microsoft.com/beta"
	DefaultGraphTimeout = 100 * time.Second

	DefaultChunkSize   = ByteSize(upload.DefaultChunkSize)
	DefaultRenewAfter  = upload.DefaultRenewAfter
	DefaultMaxAttempts = upload.DefaultMaxAttempts
	DefaultRetryDelay  = upload.DefaultRetryDelay

	DefaultPollInterval     = upload.DefaultPollInterval
	DefaultLifecycleTimeout = upload.DefaultWaitTimeout

	DefaultLogLevel = "info"

	// DefaultFilePermissions is the permission for saved config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errInvalidChunkSize is returned for non-positive chunk sizes.
	errInvalidChunkSize = errors.New("upload chunk size must be positive")
	// errInvalidMaxAttempts is returned when no upload attempt would be made.
	errInvalidMaxAttempts = errors.New("upload max attempts must be at least 1")
)

// DefaultRetryStatuses returns the block statuses retried by default.
func DefaultRetryStatuses() []int {
	return upload.DefaultRetryStatuses()
}

// Default returns a configuration with every field set to its default.
func Default() *Config {
	cfg := new(Config)
	//nolint:errcheck // The zero config only receives defaults and always validates.
	_ = Validate(cfg)

	return cfg
}

// Load reads configuration from the provided path and validates it.
// When path is empty the default file is used, and its absence yields defaults.
func Load(path string) (*Config, error) {
	optional := path == ""
	if optional {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			applyEnv(cfg)

			return cfg, nil
		}

		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg, err := Parse(contents, filepath.Ext(path))
	if err != nil {
		return nil, err
	}

	applyEnv(cfg)

	return cfg, nil
}

// Parse decodes settings. The ext selects JSONC handling for ".json" and ".jsonc".
func Parse(contents []byte, ext string) (*Config, error) {
	switch strings.ToLower(ext) {
	case ".json", ".jsonc":
		contents = jsonc.ToJSON(contents)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes cfg to the provided path as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults and checks the remaining fields.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.Graph.BaseURL == "" {
		cfg.Graph.BaseURL = DefaultGraphBaseURL
	}

	if _, err := url.ParseRequestURI(cfg.Graph.BaseURL); err != nil {
		return fmt.Errorf("invalid graph base URL: %w", err)
	}

	cfg.Graph.BaseURL = strings.TrimRight(cfg.Graph.BaseURL, "/")

	if cfg.Graph.Timeout <= 0 {
		cfg.Graph.Timeout = DefaultGraphTimeout
	}

	if cfg.Upload.ChunkSize == 0 {
		cfg.Upload.ChunkSize = DefaultChunkSize
	}

	if cfg.Upload.ChunkSize < 0 {
		return errInvalidChunkSize
	}

	if cfg.Upload.RenewAfter <= 0 {
		cfg.Upload.RenewAfter = DefaultRenewAfter
	}

	if cfg.Upload.MaxAttempts == 0 {
		cfg.Upload.MaxAttempts = DefaultMaxAttempts
	}

	if cfg.Upload.MaxAttempts < 1 {
		return errInvalidMaxAttempts
	}

	if cfg.Upload.RetryDelay <= 0 {
		cfg.Upload.RetryDelay = DefaultRetryDelay
	}

	if len(cfg.Upload.RetryStatuses) == 0 {
		cfg.Upload.RetryStatuses = DefaultRetryStatuses()
	}

	if cfg.Lifecycle.PollInterval <= 0 {
		cfg.Lifecycle.PollInterval = DefaultPollInterval
	}

	if cfg.Lifecycle.Timeout <= 0 {
		cfg.Lifecycle.Timeout = DefaultLifecycleTimeout
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}

	return nil
}

func applyEnv(cfg *Config) {
	if token := strings.TrimSpace(os.Getenv(TokenEnv)); token != "" {
		cfg.Graph.Token = token
	}
}
