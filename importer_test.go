package pubmark

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/pubmark/imgcli"
	"github.com/eringen/pubmark/markdown"
)

type fakeImages struct {
	mu      sync.Mutex
	fetched []string
}

func (f *fakeImages) Fetch(_ context.Context, ref string) (*imgcli.ImageInfo, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, ref)
	f.mu.Unlock()
	return &imgcli.ImageInfo{
		Small:  imgcli.ImgLink{URL: "https://img.test/s/" + ref, Width: 200, Height: 150},
		Medium: imgcli.ImgLink{URL: "https://img.test/m/" + ref, Width: 800, Height: 600},
		Public: true,
	}, nil
}

func (f *fakeImages) MakePublic(ctx context.Context, ref string) (*imgcli.ImageInfo, error) {
	return f.Fetch(ctx, ref)
}

func newTestApp(t *testing.T) (*App, *fakeImages) {
	t.Helper()
	images := &fakeImages{}
	app := New(SiteConfig{DatabasePath: filepath.Join(t.TempDir(), "pubmark.db")},
		WithImageSource(images),
		WithLogger(slog.New(slog.DiscardHandler)),
	)
	require.NoError(t, app.Open())
	t.Cleanup(func() { app.Close() })
	return app, images
}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

const postSource = "pubdate: 2024-03-01T10:00:00Z\ntags: go, rust\nres: karta.json {application/json}\n\n# Hej\n\nText.\n\n![Bild][x.jpg]\n"

func siteFiles() map[string]string {
	return map[string]string{
		"hej.sv.md":          postSource,
		"karta.json":         `{"type":"FeatureCollection"}`,
		"om.sv.md":           "meta: true\n\n# Om\n\nSidan om sidan.\n",
		"utkast.sv.md":       "# Utkast\n\nInte klar.\n",
		".gammal.sv.md":      "# Dold\n",
		"notes.txt":          "not markdown",
		"sub/resa.en.md":     "pubdate: 2023-07-01T12:00:00Z\n\n# Trip\n\nText.\n",
		".drafts/skip.sv.md": "# Dold\n",
	}
}

func newImporter(t *testing.T, app *App, opts ImportOptions) *Importer {
	t.Helper()
	im, err := app.NewImporter(opts)
	require.NoError(t, err)
	im.now = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }
	return im
}

func TestImportCreatesPostsPagesAndAssets(t *testing.T) {
	app, images := newTestApp(t)
	ctx := context.Background()
	dir := writeFiles(t, siteFiles())

	stats, err := newImporter(t, app, ImportOptions{}).Run(ctx, []string{dir})
	require.NoError(t, err)
	assert.Equal(t, ImportStats{Created: 3, Skipped: 1}, stats)
	assert.Equal(t, []string{"x.jpg"}, images.fetched)

	post, err := app.Store.LookupPost(ctx, 2024, "hej", "sv")
	require.NoError(t, err)
	assert.Equal(t, "Hej", post.Title)
	assert.Equal(t, postSource, post.OrigMD)
	assert.Equal(t, "https://img.test/m/x.jpg", post.FrontImage)
	require.NotNil(t, post.PostedAt)
	require.NotNil(t, post.UpdatedAt)
	assert.True(t, post.UpdatedAt.Equal(*post.PostedAt))

	_, err = app.Store.LookupPost(ctx, 2023, "resa", "en")
	require.NoError(t, err)

	asset, err := app.Store.GetAsset(ctx, 2024, "karta.json")
	require.NoError(t, err)
	assert.Equal(t, "application/json", asset.Mime)

	page, err := app.Store.LookupMetaPage(ctx, "om", "sv")
	require.NoError(t, err)
	assert.Equal(t, "Om", page.Title)

	posts, err := app.Store.ListPosts(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, []string{"go", "rust"}, posts[0].Tags)
}

func TestImportSkipsUnchangedUnlessForced(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()
	dir := writeFiles(t, siteFiles())

	_, err := newImporter(t, app, ImportOptions{}).Run(ctx, []string{dir})
	require.NoError(t, err)

	stats, err := newImporter(t, app, ImportOptions{}).Run(ctx, []string{dir})
	require.NoError(t, err)
	assert.Equal(t, ImportStats{Unchanged: 3, Skipped: 1}, stats)

	stats, err = newImporter(t, app, ImportOptions{Force: true}).Run(ctx, []string{dir})
	require.NoError(t, err)
	assert.Equal(t, ImportStats{Updated: 3, Skipped: 1}, stats)
}

func TestImportChangedPostKeepsID(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()
	dir := writeFiles(t, map[string]string{"hej.sv.md": postSource})

	_, err := newImporter(t, app, ImportOptions{}).Run(ctx, []string{dir})
	require.NoError(t, err)
	before, err := app.Store.LookupPost(ctx, 2024, "hej", "sv")
	require.NoError(t, err)

	changed := "pubdate: 2024-03-01T10:00:00Z\nupdate: 2024-05-01T09:00:00Z Rättat.\n\n# Hej igen\n\nText.\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hej.sv.md"), []byte(changed), 0o644))
	stats, err := newImporter(t, app, ImportOptions{}).Run(ctx, []string{filepath.Join(dir, "hej.sv.md")})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Updated)

	after, err := app.Store.LookupPost(ctx, 2024, "hej", "sv")
	require.NoError(t, err)
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, "Hej igen", after.Title)
	require.NotNil(t, after.UpdatedAt)
	assert.True(t, after.UpdatedAt.Equal(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)))

	posts, err := app.Store.ListPosts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "rust"}, posts[0].Tags, "tags kept when the key is gone")
}

func TestImportDraftReplacedWhenPublished(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()
	dir := writeFiles(t, map[string]string{"utkast.sv.md": "# Utkast\n\nInte klar.\n"})

	stats, err := newImporter(t, app, ImportOptions{IncludeDrafts: true}).Run(ctx, []string{dir})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Created)
	draft, err := app.Store.LookupPost(ctx, 2025, "utkast", "sv")
	require.NoError(t, err)
	assert.Equal(t, "Utkast"+markdown.DraftMarker, draft.Title)
	assert.Nil(t, draft.PostedAt)

	published := "pubdate: 2025-05-01T10:00:00Z\n\n# Utkast\n\nKlar.\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "utkast.sv.md"), []byte(published), 0o644))
	_, err = newImporter(t, app, ImportOptions{}).Run(ctx, []string{dir})
	require.NoError(t, err)

	post, err := app.Store.LookupPost(ctx, 2025, "utkast", "sv")
	require.NoError(t, err)
	assert.NotEqual(t, draft.ID, post.ID)
	assert.Equal(t, "Utkast", post.Title)
	require.NotNil(t, post.PostedAt)
}

func TestImportFailedRecompileKeepsDraft(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()
	const source = "# Utkast\n\nText.\n"
	dir := writeFiles(t, map[string]string{"p.sv.md": source})

	_, err := newImporter(t, app, ImportOptions{IncludeDrafts: true}).Run(ctx, []string{dir})
	require.NoError(t, err)
	before, err := app.Store.LookupPost(ctx, 2025, "p", "sv")
	require.NoError(t, err)

	broken := "# Utkast\n\n```!bogus\nx\n```\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "p.sv.md"), []byte(broken), 0o644))
	stats, err := newImporter(t, app, ImportOptions{IncludeDrafts: true}).Run(ctx, []string{dir})
	require.Error(t, err)
	assert.Equal(t, 1, stats.Failed)

	after, err := app.Store.LookupPost(ctx, 2025, "p", "sv")
	require.NoError(t, err)
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, source, after.OrigMD)
}

func TestImportFailedCompileStoresNoAssets(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()
	dir := writeFiles(t, map[string]string{
		"hej.sv.md":  "pubdate: 2024-03-01T10:00:00Z\nres: karta.json {application/json}\n\n# Hej\n\n```!bogus\nx\n```\n",
		"karta.json": `{}`,
	})

	_, err := newImporter(t, app, ImportOptions{}).Run(ctx, []string{dir})
	require.Error(t, err)

	_, err = app.Store.GetAsset(ctx, 2024, "karta.json")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = app.Store.LookupPost(ctx, 2024, "hej", "sv")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestImportUnchangedPostRefreshesResources(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()
	dir := writeFiles(t, siteFiles())

	_, err := newImporter(t, app, ImportOptions{}).Run(ctx, []string{dir})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "karta.json"), []byte(`{"v":2}`), 0o644))
	stats, err := newImporter(t, app, ImportOptions{}).Run(ctx, []string{dir})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Unchanged)

	asset, err := app.Store.GetAsset(ctx, 2024, "karta.json")
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, string(asset.Content))
}

func TestImportStopsOnFirstError(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()
	dir := writeFiles(t, map[string]string{"trasig.sv.md": "pubdate: 2024-01-01T00:00:00Z\n\nIngen rubrik.\n"})

	im := newImporter(t, app, ImportOptions{})
	im.Workers = 1
	stats, err := im.Run(ctx, []string{dir})
	require.Error(t, err)
	assert.True(t, markdown.IsKind(err, markdown.KindAuthoring), "%v", err)
	assert.Contains(t, err.Error(), "trasig.sv.md")
	assert.Equal(t, 1, stats.Failed)

	_, err = app.Store.LookupPost(ctx, 2024, "trasig", "sv")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestImportKeepGoing(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()
	files := siteFiles()
	files["trasig.sv.md"] = "pubdate: 2024-01-01T00:00:00Z\n\nIngen rubrik.\n"
	files["utansprak.md"] = "# Inget språk\n"
	dir := writeFiles(t, files)

	stats, err := newImporter(t, app, ImportOptions{KeepGoing: true}).Run(ctx, []string{dir})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trasig.sv.md")
	assert.Contains(t, err.Error(), "utansprak.md")
	assert.Equal(t, ImportStats{Created: 3, Skipped: 1, Failed: 2}, stats)
}

func TestImportMissingResource(t *testing.T) {
	app, _ := newTestApp(t)
	dir := writeFiles(t, map[string]string{"hej.sv.md": postSource})

	_, err := newImporter(t, app, ImportOptions{}).Run(context.Background(), []string{dir})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "karta.json")
}

func TestCompileFileStoresNothing(t *testing.T) {
	app, _ := newTestApp(t)
	dir := writeFiles(t, siteFiles())

	out, err := app.CompileFile(context.Background(), filepath.Join(dir, "hej.sv.md"))
	require.NoError(t, err)
	assert.Equal(t, "Hej", out.Title)
	assert.Equal(t, "https://img.test/m/x.jpg", out.FrontImage)

	posts, err := app.Store.ListPosts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, posts)
}
