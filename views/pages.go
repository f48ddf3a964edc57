// Package views renders the preview pages of the site as templ components.
package views

import (
	"bytes"
	"context"
	"html"
	"io"
	"net/url"

	"github.com/a-h/templ"
)

const (
	leafletCSS = "https://unpkg.com/leaflet@1.9.4/dist/leaflet.css"
	leafletJS  = "https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"
)

func component(render func(buf *bytes.Buffer)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		render(&buf)
		_, err := w.Write(buf.Bytes())
		return err
	})
}

func text(buf *bytes.Buffer, s string) {
	buf.WriteString(html.EscapeString(s))
}

// Layout wraps body in the common page chrome.
func Layout(site Site, meta PageMeta, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		buf.WriteString("<!doctype html>\n<html><head><meta charset=\"utf-8\">")
		buf.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		buf.WriteString("<title>")
		if meta.Title != "" {
			text(&buf, meta.Title)
			buf.WriteString(" | ")
		}
		text(&buf, site.Name)
		buf.WriteString("</title>")
		if meta.Description != "" {
			buf.WriteString(`<meta name="description" content="`)
			text(&buf, meta.Description)
			buf.WriteString(`">`)
		}
		if meta.URL != "" {
			canonical := buildURL(site.URL, meta.URL)
			buf.WriteString(`<link rel="canonical" href="`)
			text(&buf, canonical)
			buf.WriteString(`"><meta property="og:url" content="`)
			text(&buf, canonical)
			buf.WriteString(`">`)
		}
		if meta.OGType != "" {
			buf.WriteString(`<meta property="og:type" content="`)
			text(&buf, meta.OGType)
			buf.WriteString(`">`)
		}
		if meta.Image != "" {
			buf.WriteString(`<meta property="og:image" content="`)
			text(&buf, meta.Image)
			buf.WriteString(`">`)
		}
		buf.WriteString(`<link rel="stylesheet" href="/site.css">`)
		if site.StyleSheet != "" {
			buf.WriteString(`<link rel="stylesheet" href="`)
			text(&buf, site.StyleSheet)
			buf.WriteString(`">`)
		}
		buf.WriteString(`<link rel="alternate" type="application/rss+xml" href="/feed.xml">`)
		if meta.UsesMap {
			buf.WriteString(`<link rel="stylesheet" href="` + leafletCSS + `">`)
			buf.WriteString(`<script src="` + leafletJS + `"></script>`)
		}
		buf.WriteString("</head>")
		if meta.UsesMap {
			buf.WriteString(`<body onload="initmap()">`)
		} else {
			buf.WriteString("<body>")
		}
		buf.WriteString(`<header><a href="/">`)
		text(&buf, site.Name)
		buf.WriteString("</a></header>\n<main>\n")
		if _, err := w.Write(buf.Bytes()); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, "</main>\n</body></html>\n")
		return err
	})
}

// Index lists posts, optionally filtered by an active tag.
func Index(site Site, posts []ListItem, tags []TagLink) templ.Component {
	return component(func(buf *bytes.Buffer) {
		buf.WriteString(`<script type="application/ld+json">`)
		buf.WriteString(WebsiteJsonLD(site))
		buf.WriteString("</script>\n")
		if len(tags) > 0 {
			buf.WriteString(`<nav class="tags">`)
			for _, t := range tags {
				buf.WriteString(`<a class="` + TagClass(t.Active) + `" href="/tag/`)
				text(buf, url.PathEscape(t.Slug))
				buf.WriteString(`">`)
				text(buf, t.Name)
				buf.WriteString("</a>")
			}
			buf.WriteString("</nav>\n")
		}
		if len(posts) == 0 {
			buf.WriteString("<p>No posts.</p>\n")
			return
		}
		writeList(buf, posts)
	})
}

func writeList(buf *bytes.Buffer, posts []ListItem) {
	buf.WriteString("<ul class=\"posts\">\n")
	for _, p := range posts {
		buf.WriteString(`<li><a href="`)
		text(buf, p.URL)
		buf.WriteString(`">`)
		text(buf, p.Title)
		buf.WriteString("</a>")
		if p.Date != "" {
			buf.WriteString(` <time>`)
			text(buf, p.Date)
			buf.WriteString("</time>")
		} else {
			buf.WriteString(` <span class="draft">draft</span>`)
		}
		buf.WriteString("</li>\n")
	}
	buf.WriteString("</ul>\n")
}

// PostPage shows a post with its related posts.
func PostPage(site Site, post Post, related []ListItem) templ.Component {
	return component(func(buf *bytes.Buffer) {
		buf.WriteString(`<script type="application/ld+json">`)
		buf.WriteString(BlogPostingJsonLD(site, post))
		buf.WriteString("</script>\n")
		buf.WriteString(`<article lang="`)
		text(buf, post.Lang)
		buf.WriteString("\">\n<h1>")
		text(buf, post.Title)
		buf.WriteString("</h1>\n")
		if post.Date != "" {
			buf.WriteString(`<p class="dates"><time>`)
			text(buf, post.Date)
			buf.WriteString("</time>")
			if post.Updated != "" && post.Updated != post.Date {
				buf.WriteString(` (<time>`)
				text(buf, post.Updated)
				buf.WriteString("</time>)")
			}
			buf.WriteString("</p>\n")
		}
		buf.WriteString(post.Content)
		if len(post.Tags) > 0 {
			buf.WriteString(`<p class="tags">`)
			for _, t := range post.Tags {
				buf.WriteString(`<span class="tag">`)
				text(buf, t)
				buf.WriteString("</span>")
			}
			buf.WriteString("</p>\n")
		}
		buf.WriteString("</article>\n")
		if len(related) > 0 {
			buf.WriteString("<aside class=\"related\">\n")
			writeList(buf, related)
			buf.WriteString("</aside>\n")
		}
	})
}

// MetaPage shows a page outside the post hierarchy.
func MetaPage(page Page) templ.Component {
	return component(func(buf *bytes.Buffer) {
		buf.WriteString(`<article lang="`)
		text(buf, page.Lang)
		buf.WriteString("\">\n<h1>")
		text(buf, page.Title)
		buf.WriteString("</h1>\n")
		buf.WriteString(page.Content)
		buf.WriteString("</article>\n")
	})
}

// NotFound is the body of a 404 page.
func NotFound() templ.Component {
	return component(func(buf *bytes.Buffer) {
		buf.WriteString("<h1>Not found</h1>\n<p><a href=\"/\">Back to the index</a></p>\n")
	})
}

// ServerError is the body of a 5xx page.
func ServerError() templ.Component {
	return component(func(buf *bytes.Buffer) {
		buf.WriteString("<h1>Something went wrong</h1>\n")
	})
}
