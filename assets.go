package pubmark

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"golang.org/x/image/draw"

	"github.com/eringen/pubmark/markdown"
)

// AssetStore stores post assets in the database, downscaling images that
// are wider than the configured width. It implements markdown.AssetStore.
type AssetStore struct {
	store    *Store
	maxWidth int
	quality  int
	logger   *slog.Logger
}

var _ markdown.AssetStore = (*AssetStore)(nil)

// NewAssetStore returns an AssetStore writing to store.
func NewAssetStore(store *Store, maxWidth, quality int, logger *slog.Logger) *AssetStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &AssetStore{store: store, maxWidth: maxWidth, quality: quality, logger: logger}
}

// StoreAsset stores data as name among the assets of year and returns
// the URL it is served from. Unchanged content is not rewritten.
func (a *AssetStore) StoreAsset(ctx context.Context, year int, name, mime string, data []byte) (string, error) {
	asset, err := a.prepare(year, name, mime, data)
	if err != nil {
		return "", err
	}
	changed, err := a.store.PutAsset(ctx, asset)
	if err != nil {
		return "", err
	}
	if changed {
		a.logger.Info("Stored asset", "year", year, "name", name, "mime", mime, "size", len(asset.Content))
	}
	return AssetURL(year, name), nil
}

// prepare downscales image assets.
func (a *AssetStore) prepare(year int, name, mime string, data []byte) (Asset, error) {
	if strings.HasPrefix(mime, "image/") {
		scaled, resized, err := downscale(data, mime, a.maxWidth, a.quality)
		if err != nil {
			return Asset{}, fmt.Errorf("asset %s: %w", name, err)
		}
		if resized {
			a.logger.Debug("Downscaled image asset", "name", name, "from", len(data), "to", len(scaled))
			data = scaled
		}
	}
	return Asset{Year: year, Name: name, Mime: mime, Content: data}, nil
}

// stagedAssets collects the assets of one compile. URLs are handed out
// right away; the assets are stored together with the post, so a compile
// that fails writes none of them. A nil prep stores assets as given.
type stagedAssets struct {
	prep *AssetStore

	mu     sync.Mutex
	assets []Asset
}

var _ markdown.AssetStore = (*stagedAssets)(nil)

func (s *stagedAssets) StoreAsset(_ context.Context, year int, name, mime string, data []byte) (string, error) {
	asset := Asset{Year: year, Name: name, Mime: mime, Content: data}
	if s.prep != nil {
		var err error
		if asset, err = s.prep.prepare(year, name, mime, data); err != nil {
			return "", err
		}
	}
	s.mu.Lock()
	s.assets = append(s.assets, asset)
	s.mu.Unlock()
	return AssetURL(year, name), nil
}

func (s *stagedAssets) staged() []Asset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.assets)
}

// AssetURL is the path an asset is served from.
func AssetURL(year int, name string) string {
	return fmt.Sprintf("/%d/%s", year, name)
}

// downscale resizes jpeg and png images wider than maxWidth, keeping
// their format. Other images are returned unchanged.
func downscale(data []byte, mime string, maxWidth, quality int) ([]byte, bool, error) {
	if mime != "image/jpeg" && mime != "image/png" {
		return data, false, nil
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, false, fmt.Errorf("decode image: %w", err)
	}
	if cfg.Width <= maxWidth {
		return data, false, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, false, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	newH := max(h*maxWidth/w, 1)
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if mime == "image/png" {
		err = png.Encode(&buf, dst)
	} else {
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality})
	}
	if err != nil {
		return nil, false, fmt.Errorf("encode %s: %w", mime, err)
	}
	return buf.Bytes(), true, nil
}

// loadResources reads the res: files of a document from the directory of
// the markdown file and stores them as assets of year in dst.
func loadResources(ctx context.Context, dst markdown.AssetStore, mdPath string, year int, specs []markdown.ResourceSpec) ([]markdown.LinkedFile, error) {
	var files []markdown.LinkedFile
	for _, spec := range specs {
		path := filepath.Join(filepath.Dir(mdPath), spec.Name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("asset %s: %w", spec.Name, err)
		}
		url, err := dst.StoreAsset(ctx, year, spec.Name, spec.Mime, data)
		if err != nil {
			return nil, err
		}
		files = append(files, markdown.LinkedFile{Name: spec.Name, URL: url})
	}
	return files, nil
}
