package pubmark

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/eringen/pubmark/markdown"
)

// ImageServerConfig locates the image server and the account used to
// publish images on it. Without a user, only public images can be used.
type ImageServerConfig struct {
	URL      string `yaml:"url"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// SiteConfig holds all configuration for a pubmark installation.
type SiteConfig struct {
	Name         string `yaml:"name"`        // Site name in feeds and page titles (default "Blog")
	Description  string `yaml:"description"` // Feed description
	URL          string `yaml:"url"`         // Public base URL (default "http://localhost:3000")
	Addr         string `yaml:"addr"`        // Preview listen address (default ":3000")
	DatabasePath string `yaml:"database"`    // SQLite path (default "data/pubmark.db")

	Images        ImageServerConfig `yaml:"images"`
	PublishImages bool              `yaml:"publish_images"` // Make non public images public while importing

	Workers        int    `yaml:"workers"`         // Documents compiled in parallel (default 4)
	MaxImageWidth  int    `yaml:"max_image_width"` // Stored image assets are downscaled to this width (default 800)
	JPEGQuality    int    `yaml:"jpeg_quality"`    // For downscaled assets (default 80)
	HighlightStyle string `yaml:"highlight_style"` // chroma style for "pubmark css" (default "github")

	TeaserMinLength int `yaml:"teaser_min_length"` // default 900
	TeaserWindow    int `yaml:"teaser_window"`     // default 600

	OEmbedURL     string `yaml:"oembed_url"`
	ThumbnailsURL string `yaml:"thumbnails_url"`

	HTTPTimeout time.Duration `yaml:"http_timeout"` // For the image server and video lookups; 0 waits indefinitely
	CacheTTL    time.Duration `yaml:"cache_ttl"`    // Preview post list cache TTL (default 1min)
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Blog"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/pubmark.db"
	}
	if c.Workers == 0 {
		c.Workers = 4
	}
	if c.MaxImageWidth == 0 {
		c.MaxImageWidth = 800
	}
	if c.JPEGQuality == 0 {
		c.JPEGQuality = 80
	}
	if c.HighlightStyle == "" {
		c.HighlightStyle = "github"
	}
	if c.TeaserMinLength == 0 {
		c.TeaserMinLength = markdown.DefaultTeaserLimits.MinLength
	}
	if c.TeaserWindow == 0 {
		c.TeaserWindow = markdown.DefaultTeaserLimits.Window
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = time.Minute
	}
}

// Validate checks a config after defaults are applied.
func (c SiteConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.URL, validation.Required, is.URL),
		validation.Field(&c.DatabasePath, validation.Required),
		validation.Field(&c.Images, validation.By(func(value any) error {
			img := value.(ImageServerConfig)
			return validation.ValidateStruct(&img,
				validation.Field(&img.URL, is.URL),
				validation.Field(&img.Password, validation.When(img.User != "", validation.Required)),
			)
		})),
		validation.Field(&c.Workers, validation.Min(1), validation.Max(64)),
		validation.Field(&c.MaxImageWidth, validation.Min(16)),
		validation.Field(&c.JPEGQuality, validation.Min(1), validation.Max(100)),
		validation.Field(&c.TeaserMinLength, validation.Min(1)),
		validation.Field(&c.TeaserWindow, validation.Min(1)),
		validation.Field(&c.OEmbedURL, is.URL),
		validation.Field(&c.ThumbnailsURL, is.URL),
	)
}

// TeaserLimits returns the teaser thresholds for the renderer.
func (c SiteConfig) TeaserLimits() markdown.TeaserLimits {
	return markdown.TeaserLimits{MinLength: c.TeaserMinLength, Window: c.TeaserWindow}
}

// LoadConfig reads the YAML file at path, if it exists, then applies a
// .env file and PUBMARK_* environment variables, defaults and
// validation. An empty path skips the file.
func LoadConfig(path string) (SiteConfig, error) {
	var cfg SiteConfig
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			slog.Debug("No config file, using environment", "path", path)
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *SiteConfig) applyEnv() error {
	strs := map[string]*string{
		"PUBMARK_NAME":           &c.Name,
		"PUBMARK_URL":            &c.URL,
		"PUBMARK_ADDR":           &c.Addr,
		"PUBMARK_DATABASE":       &c.DatabasePath,
		"PUBMARK_IMAGE_URL":      &c.Images.URL,
		"PUBMARK_IMAGE_USER":     &c.Images.User,
		"PUBMARK_IMAGE_PASSWORD": &c.Images.Password,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("PUBMARK_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PUBMARK_WORKERS: %w", err)
		}
		c.Workers = n
	}
	return nil
}

// Option configures additional App behavior.
type Option func(*App)

// WithLogger sets the logger used by the importer and the preview server.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		a.Logger = logger
	}
}

// WithImageSource replaces the image server session, mainly for tests.
func WithImageSource(src markdown.ImageSource) Option {
	return func(a *App) {
		a.images = src
	}
}

// WithHTTPClient sets the client used for the image server and video
// lookups.
func WithHTTPClient(client *http.Client) Option {
	return func(a *App) {
		a.client = client
	}
}
