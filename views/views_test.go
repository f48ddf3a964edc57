package views

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, site Site, meta PageMeta, body func() []byte) string {
	t.Helper()
	var buf bytes.Buffer
	cmp := Layout(site, meta, component(func(b *bytes.Buffer) { b.Write(body()) }))
	require.NoError(t, cmp.Render(context.Background(), &buf))
	return buf.String()
}

func TestLayoutEscapes(t *testing.T) {
	site := Site{Name: "A & B", URL: "https://example.com"}
	out := render(t, site, PageMeta{Title: "<Rubrik>", URL: "/2024/x.sv"}, func() []byte { return []byte("<p>inne</p>") })
	assert.Contains(t, out, "<title>&lt;Rubrik&gt; | A &amp; B</title>")
	assert.Contains(t, out, `<link rel="canonical" href="https://example.com/2024/x.sv">`)
	assert.Contains(t, out, "<main>\n<p>inne</p></main>")
	assert.NotContains(t, out, "leaflet")
}

func TestLayoutLoadsLeafletForMaps(t *testing.T) {
	out := render(t, Site{Name: "B"}, PageMeta{UsesMap: true}, func() []byte { return nil })
	assert.Contains(t, out, leafletJS)
	assert.Contains(t, out, `<body onload="initmap()">`)
}

func TestRelatedPosts(t *testing.T) {
	current := Post{URL: "/2024/a.sv", Tags: []string{"Go", " rust "}}
	posts := []ListItem{
		{URL: "/2024/a.sv", Tags: []string{"go"}},
		{URL: "/2024/b.sv", Tags: []string{"GO"}},
		{URL: "/2024/c.sv", Tags: []string{"cobol"}},
		{URL: "/2024/d.sv", Tags: []string{"rust"}},
		{URL: "/2024/e.sv", Tags: []string{"go"}},
	}
	var urls []string
	for _, p := range RelatedPosts(current, posts, 2) {
		urls = append(urls, p.URL)
	}
	assert.Equal(t, []string{"/2024/b.sv", "/2024/d.sv"}, urls)
}

func TestBlogPostingJsonLD(t *testing.T) {
	ld := BlogPostingJsonLD(Site{Name: "Blog", URL: "https://example.com"}, Post{
		Title: "</script>", URL: "/2024/a.sv", Lang: "sv", Date: "2024-03-01", Tags: []string{"go", "rust"},
	})
	assert.NotContains(t, ld, "</script>")
	var data map[string]any
	require.NoError(t, json.Unmarshal([]byte(ld), &data))
	assert.Equal(t, "</script>", data["headline"])
	assert.Equal(t, "https://example.com/2024/a.sv", data["url"])
	assert.Equal(t, "2024-03-01", data["datePublished"])
	assert.Equal(t, "go, rust", data["keywords"])
	assert.NotContains(t, data, "dateModified")
}
