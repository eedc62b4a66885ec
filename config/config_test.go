package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ByLCY/jacket/job"
	"github.com/ByLCY/jacket/proof"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "jacket", cfg.Logger.ServiceName)
	assert.Equal(t, 50, cfg.Books.MaxBooks)
	assert.Equal(t, 150.0, cfg.Artwork.Advice.MinPrintDPI)
	assert.Equal(t, 20*time.Second, cfg.Artwork.Fetch.Timeout)
	assert.Equal(t, 30*time.Minute, cfg.Artwork.Fetch.CacheTTL)
	assert.Equal(t, int64(200_000_000), cfg.Artwork.Advice.MaxPixels)
	assert.Empty(t, cfg.Artwork.Fetch.AllowedHosts, "默认不限制主机")
	assert.Equal(t, proof.DefaultConfig(), cfg.Proof)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	require.NoError(t, cfg.Validate())
}

func TestDefaultsMatchJobDefaults(t *testing.T) {
	assert.Equal(t, job.DefaultConfig(), NewDefaultConfig().Job())
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"negative gap", func(c *Config) { c.Layout.GapMm = -1 }, "layout margins"},
		{"zero books", func(c *Config) { c.Books.MaxBooks = 0 }, "books.max_books"},
		{"zero dpi", func(c *Config) { c.Artwork.Advice.MinPrintDPI = 0 }, "min_print_dpi"},
		{"zero pixel cap", func(c *Config) { c.Artwork.Advice.MaxPixels = 0 }, "max_pixels"},
		{"min above default", func(c *Config) { c.Text.Caption.MinFontSizePx = 99 }, "text.caption"},
		{"no lines", func(c *Config) { c.Text.SpineSmall.MaxLines = 0 }, "text.spine_small"},
		{"zero page", func(c *Config) { c.Proof.PageWidthIn = 0 }, "proof page size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBindReadsFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "jacket.yaml")
	yaml := `
layout:
  gap_mm: 4
books:
  max_books: 12
artwork:
  fetch_timeout: 3s
  max_pixels: 50000000
  allowed_hosts:
    - covers.example.com
    - "*.cdn.example.com"
proof:
  print_dpi: 600
`
	require.NoError(t, os.WriteFile(file, []byte(yaml), 0o644))
	t.Setenv("JACKET_SERVER_ADDR", ":9999")

	v := viper.New()
	SetDefaults(v)
	require.NoError(t, Bind(v, file))
	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, 4.0, cfg.Layout.GapMm)
	assert.Equal(t, 15.0, cfg.Layout.WrapMarginMm)
	assert.Equal(t, 12, cfg.Books.MaxBooks)
	assert.Equal(t, 3*time.Second, cfg.Artwork.Fetch.Timeout)
	assert.Equal(t, int64(50_000_000), cfg.Artwork.Advice.MaxPixels)
	assert.Equal(t, []string{"covers.example.com", "*.cdn.example.com"}, cfg.Artwork.Fetch.AllowedHosts)
	assert.Equal(t, 600.0, cfg.Proof.PrintDPI)
	assert.Equal(t, ":9999", cfg.Server.Addr)

	jc := cfg.Job()
	assert.Equal(t, 4.0, jc.Pipeline.GapMm)
	assert.Equal(t, int64(50_000_000), jc.Advice.MaxPixels)
	assert.Equal(t, 12, jc.MaxBooks)
}

func TestBindWithoutFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	v := viper.New()
	SetDefaults(v)
	require.NoError(t, Bind(v, ""))
	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestNewConfigFromViperRejectsInvalid(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("books.max_books", -3)
	_, err := NewConfigFromViper(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
