package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/cartograb/internal/models"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cartograb.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewDefaultConfig_IsValid(t *testing.T) {
	config := NewDefaultConfig()
	require.NoError(t, config.Validate())

	assert.Equal(t, EmptyPageEnd, config.Catalog.EmptyPagePolicy)
	assert.Equal(t, 180*time.Second, config.Timeouts.Confirm.Duration)
	assert.Equal(t, []string{"frontendConfig", "visualizationData"}, config.Metadata.ScriptBlobs)
}

func TestLoadFromFiles_LaterFilesOverride(t *testing.T) {
	first := writeConfig(t, `
[catalog]
base_url = "https://first.carto.com"
max_page = 18

[timeouts]
confirm = "5m"
`)
	second := writeConfig(t, `
[catalog]
base_url = "https://second.carto.com"
`)

	config, err := LoadFromFiles(first, "", second)
	require.NoError(t, err)

	assert.Equal(t, "https://second.carto.com", config.Catalog.BaseURL)
	assert.Equal(t, 18, config.Catalog.MaxPage)
	assert.Equal(t, 5*time.Minute, config.Timeouts.Confirm.Duration)
	// Untouched values keep their defaults
	assert.Equal(t, "/dashboard/maps/", config.Catalog.MapsPath)
	assert.Equal(t, 30*time.Second, config.Timeouts.PageLoad.Duration)
}

func TestLoadFromFiles_Errors(t *testing.T) {
	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = LoadFromFiles(writeConfig(t, "[timeouts]\nconfirm = \"three minutes\"\n"))
	assert.Error(t, err)
}

func TestLoadFromFiles_EnvOverrides(t *testing.T) {
	t.Setenv("CARTOGRAB_MAX_PAGE", "4")
	t.Setenv("CARTOGRAB_USERNAME", "analyst@example.com")
	t.Setenv("CARTOGRAB_HEADLESS", "false")
	t.Setenv("CARTOGRAB_CONFIRM_TIMEOUT", "90s")
	t.Setenv("CARTOGRAB_LOG_OUTPUT", "stdout, ,file")
	t.Setenv("CARTOGRAB_STORAGE_TYPE", "memory")

	config, err := LoadFromFiles(writeConfig(t, "[catalog]\nmax_page = 18\n"))
	require.NoError(t, err)

	assert.Equal(t, 4, config.Catalog.MaxPage)
	assert.Equal(t, "analyst@example.com", config.Auth.Username)
	assert.False(t, config.Browser.Headless)
	assert.Equal(t, 90*time.Second, config.Timeouts.Confirm.Duration)
	assert.Equal(t, []string{"stdout", "file"}, config.Logging.Output)
	assert.Equal(t, "memory", config.Storage.Type)
}

func TestApplyFlagOverrides(t *testing.T) {
	config := NewDefaultConfig()
	headed := false

	ApplyFlagOverrides(config, FlagOverrides{
		StartPage: 3,
		MaxPage:   7,
		Headless:  &headed,
		LogLevel:  "debug",
		OutputCSV: "/tmp/out.csv",
	})

	assert.Equal(t, 3, config.Catalog.StartPage)
	assert.Equal(t, 7, config.Catalog.MaxPage)
	assert.False(t, config.Browser.Headless)
	assert.Equal(t, "debug", config.Logging.Level)
	assert.Equal(t, "/tmp/out.csv", config.Paths.MetadataCSV)

	// Zero values leave the config alone
	ApplyFlagOverrides(config, FlagOverrides{})
	assert.Equal(t, 3, config.Catalog.StartPage)
	assert.False(t, config.Browser.Headless)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"skip policy needs max page", func(c *Config) { c.Catalog.EmptyPagePolicy = EmptyPageSkip }},
		{"unknown policy", func(c *Config) { c.Catalog.EmptyPagePolicy = "stop" }},
		{"max page before start page", func(c *Config) { c.Catalog.StartPage = 5; c.Catalog.MaxPage = 2 }},
		{"xpath caption", func(c *Config) { c.Selectors.Maps.Caption = "//h3" }},
		{"format option without placeholder", func(c *Config) { c.Selectors.Maps.FormatOption = ".format" }},
		{"confirm shorter than page load", func(c *Config) { c.Timeouts.Confirm = D(time.Second) }},
		{"no export steps", func(c *Config) { c.Selectors.Datasets.OpenExport = nil }},
		{"bad base url", func(c *Config) { c.Catalog.BaseURL = "not a url" }},
		{"unknown storage", func(c *Config) { c.Storage.Type = "sqlite" }},
		{"page attempts out of range", func(c *Config) { c.Catalog.PageAttempts = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := NewDefaultConfig()
			tt.mutate(config)
			assert.Error(t, config.Validate())
		})
	}

	t.Run("skip policy with max page", func(t *testing.T) {
		config := NewDefaultConfig()
		config.Catalog.EmptyPagePolicy = EmptyPageSkip
		config.Catalog.MaxPage = 18
		assert.NoError(t, config.Validate())
	})
}

func TestSelectorsFor(t *testing.T) {
	config := NewDefaultConfig()

	assert.Equal(t, config.Selectors.Maps, config.Selectors.For(models.AssetKindMap))
	assert.Equal(t, config.Selectors.Datasets, config.Selectors.For(models.AssetKindDataset))
	assert.Equal(t, "/dashboard/maps/", config.Catalog.ListingPath(models.AssetKindMap))
	assert.Equal(t, "/dashboard/datasets/", config.Catalog.ListingPath(models.AssetKindDataset))
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("2m30s")))
	assert.Equal(t, 150*time.Second, d.Duration)

	require.NoError(t, d.UnmarshalText(nil))
	assert.Zero(t, d.Duration)

	assert.Error(t, d.UnmarshalText([]byte("soon")))

	text, err := D(3 * time.Second).MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "3s", string(text))
}
