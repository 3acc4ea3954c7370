// Package config provides configuration management for streamrelay using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultHTTPTimeout      = 30 * time.Second
	defaultRetryAttempts    = 3
	defaultRetryDelay       = 1 * time.Second
	defaultRetryMaxDelay    = 30 * time.Second
	defaultCircuitThreshold = 5
	defaultCircuitTimeout   = 30 * time.Second
	defaultMaxSegmentNum    = 5
	defaultMinUpdatePeriod  = 3 * time.Second
	defaultBandwidthTier    = "mid"
	defaultDownloadPoolSize = 1
)

// Config holds all configuration for the application.
type Config struct {
	Service    ServiceConfig    `mapstructure:"service"`
	Relay      RelayConfig      `mapstructure:"relay"`
	HTTPClient HTTPClientConfig `mapstructure:"http_client"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServiceConfig holds the operator-supplied API contract (§6): the
// manifest-URL and decryption-key HTTP APIs, addressed by a {service}/{id}
// pair substituted into the configured URL templates.
type ServiceConfig struct {
	// MPDAPIFormat is the manifest-URL API template, e.g.
	// "https://api.example.com/mpd?service={service}&id={id}".
	MPDAPIFormat string `mapstructure:"mpd_api_format"`

	// KeyAPIFormat is the decryption-key API template, e.g.
	// "https://api.example.com/key?service={service}&id={id}&pssh-box={pssh-box}".
	KeyAPIFormat string `mapstructure:"key_api_format"`

	// Service and ID are substituted into both templates.
	Service string `mapstructure:"service"`
	ID      string `mapstructure:"id"`
}

// RelayConfig holds the live-window segment-saver and variant-selection
// configuration (§4.11, §4.12).
type RelayConfig struct {
	// BandwidthTier selects which third of the sorted variant list to pick
	// from: "low", "mid", or "high".
	BandwidthTier string `mapstructure:"bandwidth_tier"`

	// Languages is an ordered list of acceptable audio languages,
	// most-preferred first.
	Languages []string `mapstructure:"languages"`

	// MaxSegmentNum bounds the rolling HLS window (N in the "HLS window
	// state" entity).
	MaxSegmentNum int `mapstructure:"max_segment_num"`

	// OutputDir is the HLS output root ({outpath} in §6).
	OutputDir string `mapstructure:"output_dir"`

	// RepoRoot is the working-directory root containing download/ and
	// output/ (the decrypter's {repoRoot} argument).
	RepoRoot string `mapstructure:"repo_root"`

	// DecrypterPath is the path to the decrypt.sh-equivalent sub-process.
	DecrypterPath string `mapstructure:"decrypter_path"`

	// MinUpdatePeriod is loaded from min_update_period (default 3s). The
	// orchestrator's refresh-interval floor is the dash.MinUpdatePeriod
	// constant, which does not read this field.
	MinUpdatePeriod time.Duration `mapstructure:"min_update_period"`

	// DownloadPoolSize bounds how many segment downloads may run
	// concurrently per track within one saver cycle (§5, "bounded pool,
	// default 1 per track").
	DownloadPoolSize int `mapstructure:"download_pool_size"`
}

// HTTPClientConfig configures the resilient HTTP transport
// (internal/httpclient) used for manifest, segment, and key fetches.
type HTTPClientConfig struct {
	Timeout              time.Duration `mapstructure:"timeout"`
	RetryAttempts        int           `mapstructure:"retry_attempts"`
	RetryDelay           time.Duration `mapstructure:"retry_delay"`
	RetryMaxDelay        time.Duration `mapstructure:"retry_max_delay"`
	CircuitThreshold     int           `mapstructure:"circuit_threshold"`
	CircuitTimeout       time.Duration `mapstructure:"circuit_timeout"`
	EnableDecompression  bool          `mapstructure:"enable_decompression"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with STREAMRELAY_ and use underscores
// for nesting, e.g. STREAMRELAY_RELAY_MAX_SEGMENT_NUM=8.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	SetDefaults(v)

	// Config file settings
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/streamrelay")
		v.AddConfigPath("$HOME/.streamrelay")
	}

	// Environment variable settings
	v.SetEnvPrefix("STREAMRELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file to ensure defaults are in place.
func SetDefaults(v *viper.Viper) {
	// Service defaults
	v.SetDefault("service.mpd_api_format", "")
	v.SetDefault("service.key_api_format", "")
	v.SetDefault("service.service", "")
	v.SetDefault("service.id", "")

	// Relay defaults
	v.SetDefault("relay.bandwidth_tier", defaultBandwidthTier)
	v.SetDefault("relay.languages", []string{"en"})
	v.SetDefault("relay.max_segment_num", defaultMaxSegmentNum)
	v.SetDefault("relay.output_dir", "/var/www/html")
	v.SetDefault("relay.repo_root", ".")
	v.SetDefault("relay.decrypter_path", "./decrypt.sh")
	v.SetDefault("relay.min_update_period", defaultMinUpdatePeriod)
	v.SetDefault("relay.download_pool_size", defaultDownloadPoolSize)

	// HTTP client defaults
	v.SetDefault("http_client.timeout", defaultHTTPTimeout)
	v.SetDefault("http_client.retry_attempts", defaultRetryAttempts)
	v.SetDefault("http_client.retry_delay", defaultRetryDelay)
	v.SetDefault("http_client.retry_max_delay", defaultRetryMaxDelay)
	v.SetDefault("http_client.circuit_threshold", defaultCircuitThreshold)
	v.SetDefault("http_client.circuit_timeout", defaultCircuitTimeout)
	v.SetDefault("http_client.enable_decompression", true)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Service.MPDAPIFormat == "" {
		return fmt.Errorf("service.mpd_api_format is required")
	}
	if c.Service.KeyAPIFormat == "" {
		return fmt.Errorf("service.key_api_format is required")
	}

	validTiers := map[string]bool{"low": true, "mid": true, "high": true}
	if !validTiers[c.Relay.BandwidthTier] {
		return fmt.Errorf("relay.bandwidth_tier must be one of: low, mid, high")
	}
	if len(c.Relay.Languages) == 0 {
		return fmt.Errorf("relay.languages must contain at least one language")
	}
	if c.Relay.MaxSegmentNum < 1 {
		return fmt.Errorf("relay.max_segment_num must be at least 1")
	}
	if c.Relay.OutputDir == "" {
		return fmt.Errorf("relay.output_dir is required")
	}
	if c.Relay.DownloadPoolSize < 1 {
		return fmt.Errorf("relay.download_pool_size must be at least 1")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
