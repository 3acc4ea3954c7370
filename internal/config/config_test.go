package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STREAMRELAY_SERVICE_MPD_API_FORMAT", "https://api.example.com/mpd?service={service}&id={id}")
	t.Setenv("STREAMRELAY_SERVICE_KEY_API_FORMAT", "https://api.example.com/key?service={service}&id={id}&pssh-box={pssh-box}")

	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "mid", cfg.Relay.BandwidthTier)
	assert.Equal(t, []string{"en"}, cfg.Relay.Languages)
	assert.Equal(t, 5, cfg.Relay.MaxSegmentNum)
	assert.Equal(t, "/var/www/html", cfg.Relay.OutputDir)
	assert.Equal(t, 3*time.Second, cfg.Relay.MinUpdatePeriod)
	assert.Equal(t, 1, cfg.Relay.DownloadPoolSize)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	assert.Equal(t, 30*time.Second, cfg.HTTPClient.Timeout)
	assert.Equal(t, 3, cfg.HTTPClient.RetryAttempts)
}

func TestLoad_MissingServiceFormats(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mpd_api_format")
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")

	content := `
service:
  mpd_api_format: "https://api.example.com/mpd?service={service}&id={id}"
  key_api_format: "https://api.example.com/key?service={service}&id={id}&pssh-box={pssh-box}"
  service: "svc1"
  id: "stream1"
relay:
  bandwidth_tier: "high"
  languages:
    - "en"
    - "fr"
  max_segment_num: 8
logging:
  level: "debug"
  format: "text"
`
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0o644))

	cfg, err := Load(configFile)
	require.NoError(t, err)

	assert.Equal(t, "svc1", cfg.Service.Service)
	assert.Equal(t, "stream1", cfg.Service.ID)
	assert.Equal(t, "high", cfg.Relay.BandwidthTier)
	assert.Equal(t, []string{"en", "fr"}, cfg.Relay.Languages)
	assert.Equal(t, 8, cfg.Relay.MaxSegmentNum)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("STREAMRELAY_SERVICE_MPD_API_FORMAT", "https://api.example.com/mpd?service={service}&id={id}")
	t.Setenv("STREAMRELAY_SERVICE_KEY_API_FORMAT", "https://api.example.com/key?service={service}&id={id}&pssh-box={pssh-box}")
	t.Setenv("STREAMRELAY_RELAY_MAX_SEGMENT_NUM", "12")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Relay.MaxSegmentNum)
}

func TestLoad_InvalidConfigFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	invalidContent := "relay:\n  max_segment_num: \"not a number\"\n  invalid yaml structure"
	require.NoError(t, os.WriteFile(configPath, []byte(invalidContent), 0o600))

	_, err := Load(configPath)
	assert.Error(t, err)
}

func TestLoad_NonExistentFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func validConfig() *Config {
	return &Config{
		Service: ServiceConfig{MPDAPIFormat: "x", KeyAPIFormat: "y"},
		Relay: RelayConfig{
			BandwidthTier:    "mid",
			Languages:        []string{"en"},
			MaxSegmentNum:    5,
			OutputDir:        "/tmp",
			DownloadPoolSize: 1,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_MissingMPDFormat(t *testing.T) {
	cfg := validConfig()
	cfg.Service.MPDAPIFormat = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mpd_api_format")
}

func TestValidate_InvalidBandwidthTier(t *testing.T) {
	cfg := validConfig()
	cfg.Relay.BandwidthTier = "ultra"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bandwidth_tier")
}

func TestValidate_NoLanguages(t *testing.T) {
	cfg := validConfig()
	cfg.Relay.Languages = nil
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "languages")
}

func TestValidate_InvalidMaxSegmentNum(t *testing.T) {
	cfg := validConfig()
	cfg.Relay.MaxSegmentNum = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_segment_num")
}

func TestValidate_InvalidDownloadPoolSize(t *testing.T) {
	cfg := validConfig()
	cfg.Relay.DownloadPoolSize = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "download_pool_size")
}

func TestValidate_EmptyOutputDir(t *testing.T) {
	cfg := validConfig()
	cfg.Relay.OutputDir = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output_dir")
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Level = "verbose"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")
}

func TestValidate_InvalidLogFormat(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Format = "xml"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.format")
}
