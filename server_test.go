package pubmark

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/pubmark/markdown"
)

func seedSite(t *testing.T, app *App) {
	t.Helper()
	ctx := context.Background()
	posts := []struct {
		rec  PostRecord
		tags []string
	}{
		{PostRecord{Year: 2024, Slug: "hej", Lang: "sv", Title: "Hej världen", Teaser: "<p>Kort.</p>",
			Content: "<p>Hela texten.</p>\n<script>function initmap() {}</script>", Description: "Kort.",
			UsesMap: true, OrigMD: "x", PostedAt: ptime("2024-03-01T10:00:00Z")}, []string{"go"}},
		{PostRecord{Year: 2024, Slug: "mer", Lang: "sv", Title: "Mer om Go", Content: "<p>Mer.</p>",
			OrigMD: "x", PostedAt: ptime("2024-02-01T10:00:00Z")}, []string{"go", "rust"}},
		{PostRecord{Year: 2025, Slug: "utkast", Lang: "sv", Title: "Utkast" + markdown.DraftMarker,
			Content: "<p>Snart.</p>", OrigMD: "x"}, nil},
	}
	for _, p := range posts {
		require.NoError(t, app.Store.SavePost(ctx, &p.rec, p.tags))
	}
	require.NoError(t, app.Store.SaveMetaPage(ctx, &MetaPage{Slug: "om", Lang: "sv", Title: "Om bloggen",
		Content: "<p>Om.</p>", OrigMD: "x"}))
	_, err := app.Store.PutAsset(ctx, Asset{Year: 2024, Name: "karta.json", Mime: "application/json",
		Content: []byte(`{"a":1}`)})
	require.NoError(t, err)
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	app, _ := newTestApp(t)
	app.Config.URL = "https://blog.example.com"
	seedSite(t, app)
	e, err := app.Handler()
	require.NoError(t, err)
	return e
}

func TestServeIndex(t *testing.T) {
	h := newTestServer(t)

	rec := get(t, h, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `<a href="/2024/hej.sv">Hej världen</a> <time>2024-03-01</time>`)
	assert.Contains(t, body, `<span class="draft">draft</span>`)
	assert.Contains(t, body, `href="/tag/rust"`)
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	rec = get(t, h, "/tag/rust")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Mer om Go")
	assert.NotContains(t, rec.Body.String(), `href="/2024/hej.sv"`)

	rec = get(t, h, "/tag/cobol")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Not found")
}

func TestServePost(t *testing.T) {
	h := newTestServer(t)

	rec := get(t, h, "/2024/hej.sv")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<title>Hej världen | Blog</title>")
	assert.Contains(t, body, `<link rel="canonical" href="https://blog.example.com/2024/hej.sv">`)
	assert.Contains(t, body, "<p>Hela texten.</p>")
	assert.Contains(t, body, `<body onload="initmap()">`)
	assert.Contains(t, body, `"@type":"BlogPosting"`)
	assert.Contains(t, body, `<aside class="related">`, "shares the go tag with another post")

	rec = get(t, h, "/2024/borta.sv")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = get(t, h, "/abcd/hej.sv")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeAsset(t *testing.T) {
	h := newTestServer(t)

	rec := get(t, h, "/2024/karta.json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, `{"a":1}`, rec.Body.String())
	assert.Equal(t, "public, max-age=15552000", rec.Header().Get("Cache-Control"))
	expires, err := http.ParseTime(rec.Header().Get("Expires"))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(180*24*time.Hour), expires, time.Minute)

	rec = get(t, h, "/2023/karta.json")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeMetaPage(t *testing.T) {
	h := newTestServer(t)

	rec := get(t, h, "/om.sv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `<article lang="sv">`)
	assert.Contains(t, rec.Body.String(), "<h1>Om bloggen</h1>")

	assert.Equal(t, http.StatusNotFound, get(t, h, "/om.en").Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/om").Code)
}

func TestServeFeedAndSitemap(t *testing.T) {
	h := newTestServer(t)

	rec := get(t, h, "/feed.xml")
	require.Equal(t, http.StatusOK, rec.Code)
	feed := rec.Body.String()
	assert.Contains(t, feed, "<link>https://blog.example.com/2024/hej.sv</link>")
	assert.Contains(t, feed, "&lt;p&gt;Kort.&lt;/p&gt;")
	assert.NotContains(t, feed, "utkast")

	rec = get(t, h, "/sitemap.xml")
	require.Equal(t, http.StatusOK, rec.Code)
	sitemap := rec.Body.String()
	assert.Contains(t, sitemap, "<loc>https://blog.example.com/2024/mer.sv</loc><lastmod>2024-02-01</lastmod>")
	assert.Contains(t, sitemap, "<loc>https://blog.example.com/om.sv</loc>")
	assert.NotContains(t, sitemap, "utkast")
}

func TestServeStylesheets(t *testing.T) {
	h := newTestServer(t)

	for _, path := range []string{"/site.css", "/highlight.css"} {
		rec := get(t, h, path)
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "text/css; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.NotEmpty(t, rec.Body.String())
	}
}

func TestPostCache(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	cache := NewPostCache(store, time.Hour)

	posts, err := cache.ListPosts(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, posts)

	p := PostRecord{Year: 2024, Slug: "ny", Lang: "sv", Title: "Ny", OrigMD: "x", PostedAt: ptime("2024-01-01T00:00:00Z")}
	require.NoError(t, store.SavePost(ctx, &p, []string{"Åsa Öberg"}))

	posts, err = cache.ListPosts(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, posts, "served from cache")

	cache.Invalidate()
	posts, err = cache.ListPosts(ctx, "asa-oberg")
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "Ny", posts[0].Title)

	tags, err := cache.ListTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Tag{{ID: tags[0].ID, Name: "Åsa Öberg", Slug: "asa-oberg"}}, tags)
}
