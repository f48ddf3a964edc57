package pubmark

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eringen/pubmark/markdown"
)

// ImportOptions are the switches of a "read-files" run.
type ImportOptions struct {
	Force         bool // recompile posts whose source is unchanged
	IncludeDrafts bool // import posts without pubdate
	KeepGoing     bool // log failing documents and continue
}

// ImportStats counts what a run did.
type ImportStats struct {
	Created   int
	Updated   int
	Unchanged int
	Skipped   int // drafts
	Failed    int
}

// Importer reads markdown files and stores their compiled form. One
// Importer is one batch run; its Env, and so its image server session,
// is shared by the documents of the run.
type Importer struct {
	Store   *Store
	Assets  *AssetStore
	Env     *markdown.Env
	Logger  *slog.Logger
	Workers int
	Options ImportOptions

	now func() time.Time

	mu    sync.Mutex
	stats ImportStats
}

// Run imports the given files and directories. Directories are walked
// recursively for *.md files, skipping dotfiles. Documents are compiled
// in parallel; a failing document never changes what is stored for it.
func (im *Importer) Run(ctx context.Context, paths []string) (ImportStats, error) {
	files, err := collectMarkdown(paths)
	if err != nil {
		return ImportStats{}, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(im.Workers, 1))
	var failures []error
	for _, path := range files {
		g.Go(func() error {
			err := im.importFile(gctx, path)
			if err == nil {
				return nil
			}
			err = fmt.Errorf("reading file %s: %w", path, err)
			im.count(func(s *ImportStats) { s.Failed++ })
			if !im.Options.KeepGoing {
				return err
			}
			im.logger().Error("Import failed", "file", path, "error", err)
			im.mu.Lock()
			failures = append(failures, err)
			im.mu.Unlock()
			return nil
		})
	}
	err = g.Wait()
	stats := im.Stats()
	if err != nil {
		return stats, err
	}
	return stats, errors.Join(failures...)
}

// Stats returns the counts of the run so far.
func (im *Importer) Stats() ImportStats {
	im.mu.Lock()
	defer im.mu.Unlock()
	return im.stats
}

func (im *Importer) count(f func(*ImportStats)) {
	im.mu.Lock()
	f(&im.stats)
	im.mu.Unlock()
}

func (im *Importer) logger() *slog.Logger {
	if im.Logger != nil {
		return im.Logger
	}
	return slog.Default()
}

func (im *Importer) currentYear() int {
	if im.now != nil {
		return im.now().Year()
	}
	return time.Now().Year()
}

func collectMarkdown(paths []string) ([]string, error) {
	var files []string
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, root)
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path != root && strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.IsDir() && filepath.Ext(path) == ".md" {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("reading dir %s: %w", root, err)
		}
	}
	return files, nil
}

func (im *Importer) importFile(ctx context.Context, path string) error {
	slug, lang, err := splitFileName(path)
	if err != nil {
		return err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	contents := string(raw)
	fields, body := markdown.ExtractMetadata(contents)
	meta, err := markdown.ParseMeta(fields, im.logger())
	if err != nil {
		return markdown.WithDoc(err, path)
	}
	if meta.IsMeta {
		return im.importMetaPage(ctx, path, slug, lang, contents, meta, body)
	}
	if meta.IsDraft() && !im.Options.IncludeDrafts {
		im.logger().Info("Skipping draft", "file", path)
		im.count(func(s *ImportStats) { s.Skipped++ })
		return nil
	}

	current := im.currentYear()
	year := current
	if !meta.PubDate.IsZero() {
		year = meta.PubDate.Year()
	}
	page := markdown.PageRef{Year: year, Slug: slug, Lang: lang}
	// Drafts are stored under the current year, so only a post of the
	// current year can replace one.
	replaceDrafts := year == current

	existing, err := im.Store.LookupPost(ctx, year, slug, lang)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return err
	case existing.OrigMD == contents && !im.Options.Force:
		im.logger().Debug("Post unchanged", "page", page.URL(), "id", existing.ID)
		// Resource files can change on their own.
		if _, err := loadResources(ctx, im.Assets, path, year, meta.Resources); err != nil {
			return err
		}
		im.count(func(s *ImportStats) { s.Unchanged++ })
		return nil
	case replaceDrafts && isStaleDraft(existing, contents):
		// Removed when the new version is stored.
		existing = PostRecord{}
	}

	staged := &stagedAssets{prep: im.Assets}
	files, err := loadResources(ctx, staged, path, year, meta.Resources)
	if err != nil {
		return err
	}
	env := *im.Env
	env.Assets = staged
	out, err := markdown.Compile(ctx, &env, markdown.Document{Page: page, Meta: meta, Body: body, Files: files})
	if err != nil {
		return markdown.WithDoc(err, page.URL())
	}
	rec := PostRecord{
		ID:          existing.ID,
		Year:        year,
		Slug:        slug,
		Lang:        lang,
		Title:       out.Title,
		Teaser:      out.Teaser,
		Content:     out.Body,
		Description: out.Description,
		FrontImage:  out.FrontImage,
		UsesMap:     out.UsesMap,
		OrigMD:      contents,
	}
	if !meta.PubDate.IsZero() {
		rec.PostedAt = &meta.PubDate
	}
	switch {
	case meta.Update != nil:
		rec.UpdatedAt = &meta.Update.Date
	case existing.ID == 0:
		rec.UpdatedAt = rec.PostedAt
	}
	res, err := im.Store.Publish(ctx, Publication{
		Post:          &rec,
		Tags:          meta.Tags,
		Assets:        staged.staged(),
		ReplaceDrafts: replaceDrafts,
	})
	if err != nil {
		return err
	}
	if res.RemovedDrafts > 0 {
		im.logger().Info("Removed stale drafts", "page", page.URL(), "count", res.RemovedDrafts)
	}
	for _, name := range res.StoredAssets {
		im.logger().Info("Stored asset", "year", year, "name", name)
	}
	if existing.ID == 0 {
		im.logger().Info("New post", "page", page.URL(), "id", rec.ID, "title", out.Title)
		im.count(func(s *ImportStats) { s.Created++ })
	} else {
		im.logger().Info("Updated post", "page", page.URL(), "id", rec.ID)
		im.count(func(s *ImportStats) { s.Updated++ })
	}
	return nil
}

func (im *Importer) importMetaPage(ctx context.Context, path, slug, lang, contents string, meta markdown.Meta, body string) error {
	page := markdown.PageRef{Slug: slug, Lang: lang}
	existing, err := im.Store.LookupMetaPage(ctx, slug, lang)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return err
	case existing.OrigMD == contents && !im.Options.Force:
		im.count(func(s *ImportStats) { s.Unchanged++ })
		return nil
	}
	staged := &stagedAssets{prep: im.Assets}
	env := *im.Env
	env.Assets = staged
	out, err := markdown.Compile(ctx, &env, markdown.Document{Page: page, Meta: meta, Body: body})
	if err != nil {
		return markdown.WithDoc(err, path)
	}
	for _, a := range staged.staged() {
		if _, err := im.Store.PutAsset(ctx, a); err != nil {
			return err
		}
	}
	m := &MetaPage{Slug: slug, Lang: lang, Title: out.Title, Content: out.Body, OrigMD: contents}
	if err := im.Store.SaveMetaPage(ctx, m); err != nil {
		return err
	}
	if existing.ID == 0 {
		im.logger().Info("Created meta page", "page", page.URL(), "title", out.Title)
		im.count(func(s *ImportStats) { s.Created++ })
	} else {
		im.logger().Info("Updated meta page", "page", page.URL())
		im.count(func(s *ImportStats) { s.Updated++ })
	}
	return nil
}

// isStaleDraft reports whether p is a draft that a differing source
// replaces.
func isStaleDraft(p PostRecord, contents string) bool {
	return strings.HasSuffix(p.Title, markdown.DraftMarker) && p.OrigMD != contents
}
