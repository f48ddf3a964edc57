package pubmark

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pubmark.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "Blog", cfg.Name)
	assert.Equal(t, ":3000", cfg.Addr)
	assert.Equal(t, "data/pubmark.db", cfg.DatabasePath)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "github", cfg.HighlightStyle)
	assert.Zero(t, cfg.HTTPTimeout, "no timeout unless configured")
	assert.Equal(t, 900, cfg.TeaserLimits().MinLength)
	assert.Equal(t, 600, cfg.TeaserLimits().Window)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
name: Kaj's blog
url: https://blog.example.com/
database: /var/lib/pubmark/blog.db
images:
  url: https://img.example.com/
  user: kaj
  password: hemligt
workers: 2
teaser_window: 400
http_timeout: 10s
`)
	t.Setenv("PUBMARK_WORKERS", "8")
	t.Setenv("PUBMARK_IMAGE_PASSWORD", "annat")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "Kaj's blog", cfg.Name)
	assert.Equal(t, "https://blog.example.com/", cfg.URL)
	assert.Equal(t, "/var/lib/pubmark/blog.db", cfg.DatabasePath)
	assert.Equal(t, ImageServerConfig{URL: "https://img.example.com/", User: "kaj", Password: "annat"}, cfg.Images)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 400, cfg.TeaserWindow)
	assert.Equal(t, 900, cfg.TeaserMinLength)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		config string
		env    map[string]string
	}{
		{"bad yaml", "workers: [", nil},
		{"bad url", "url: not a url", nil},
		{"user without password", "images:\n  url: https://img.example.com/\n  user: kaj\n", nil},
		{"too many workers", "workers: 1000", nil},
		{"jpeg quality", "jpeg_quality: 101", nil},
		{"bad env workers", "", map[string]string{"PUBMARK_WORKERS": "many"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig(writeConfig(t, tt.config))
			assert.Error(t, err)
		})
	}
}

func TestHTTPClientTimeout(t *testing.T) {
	assert.Zero(t, New(SiteConfig{}).client.Timeout)
	assert.Equal(t, 10*time.Second, New(SiteConfig{HTTPTimeout: 10 * time.Second}).client.Timeout)
}
