// Package pubmark compiles a blog written in markdown into HTML stored in
// SQLite. It reads post files, compiles them with package markdown,
// stores posts, tags, meta pages and assets, and serves a preview of the
// result.
package pubmark

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/pubmark/imgcli"
	"github.com/eringen/pubmark/markdown"
)

// App is the central pubmark application. It wires together the store,
// the image server, the compiler and the preview server.
type App struct {
	Config SiteConfig
	Logger *slog.Logger
	Echo   *echo.Echo
	Store  *Store
	Assets *AssetStore
	Cache  *PostCache

	images markdown.ImageSource
	client *http.Client
}

// New creates a new App with the given configuration.
func New(cfg SiteConfig, opts ...Option) *App {
	cfg.setDefaults()
	a := &App{
		Config: cfg,
		Logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.client == nil {
		a.client = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	return a
}

// Open opens the database.
func (a *App) Open() error {
	if a.Store != nil {
		return nil
	}
	store, err := NewStore(a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("pubmark: init store: %w", err)
	}
	a.Store = store
	a.Assets = NewAssetStore(store, a.Config.MaxImageWidth, a.Config.JPEGQuality, a.Logger)
	a.Cache = NewPostCache(store, a.Config.CacheTTL)
	return nil
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

// NewEnv returns the render environment of one batch run. Each call
// creates a new image server session.
func (a *App) NewEnv(assets markdown.AssetStore) *markdown.Env {
	images := a.images
	if images == nil && a.Config.Images.URL != "" {
		images = imgcli.NewSession(a.Config.Images.URL,
			imgcli.WithCredentials(a.Config.Images.User, a.Config.Images.Password),
			imgcli.WithHTTPClient(a.client),
			imgcli.WithLogger(a.Logger),
		)
	}
	return &markdown.Env{
		Images:        images,
		Assets:        assets,
		Client:        a.client,
		Logger:        a.Logger,
		Teaser:        a.Config.TeaserLimits(),
		Video:         markdown.VideoEndpoints{OEmbed: a.Config.OEmbedURL, Thumbnails: a.Config.ThumbnailsURL},
		PublishImages: a.Config.PublishImages,
	}
}

// NewImporter returns an importer for one batch run.
func (a *App) NewImporter(opts ImportOptions) (*Importer, error) {
	if err := a.Open(); err != nil {
		return nil, err
	}
	return &Importer{
		Store:   a.Store,
		Assets:  a.Assets,
		Env:     a.NewEnv(a.Assets),
		Logger:  a.Logger,
		Workers: a.Config.Workers,
		Options: opts,
	}, nil
}

// CompileFile compiles one markdown file without storing anything. Assets
// get the URLs they would have, but are not written.
func (a *App) CompileFile(ctx context.Context, path string) (*markdown.Output, error) {
	slug, lang, err := splitFileName(path)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fields, body := markdown.ExtractMetadata(string(raw))
	meta, err := markdown.ParseMeta(fields, a.Logger)
	if err != nil {
		return nil, markdown.WithDoc(err, path)
	}
	page := markdown.PageRef{Slug: slug, Lang: lang}
	if !meta.IsMeta {
		page.Year = meta.PubDate.Year()
		if meta.PubDate.IsZero() {
			page.Year = time.Now().Year()
		}
	}
	var files []markdown.LinkedFile
	for _, res := range meta.Resources {
		files = append(files, markdown.LinkedFile{Name: res.Name, URL: AssetURL(page.Year, res.Name)})
	}
	out, err := markdown.Compile(ctx, a.NewEnv(discardAssets{}), markdown.Document{
		Page: page, Meta: meta, Body: body, Files: files,
	})
	if err != nil {
		return nil, markdown.WithDoc(err, path)
	}
	return out, nil
}

// discardAssets hands out asset URLs without storing the assets.
type discardAssets struct{}

func (discardAssets) StoreAsset(_ context.Context, year int, name, _ string, _ []byte) (string, error) {
	return AssetURL(year, name), nil
}
