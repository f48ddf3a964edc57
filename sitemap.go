package pubmark

import (
	"encoding/xml"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// renderSitemap lists the index, the published posts and the meta pages.
// Drafts are left out.
func (a *App) renderSitemap(c echo.Context, posts []PostLink, pages []MetaPage) error {
	base := a.Config.URL
	urls := []sitemapURL{
		{Loc: BuildURL(base, "/")},
	}
	for _, p := range posts {
		if p.PostedAt == nil {
			continue
		}
		urls = append(urls, sitemapURL{
			Loc:     BuildURL(base, p.URL()),
			LastMod: p.PostedAt.Format(time.DateOnly),
		})
	}
	for _, m := range pages {
		urls = append(urls, sitemapURL{Loc: BuildURL(base, m.URL())})
	}
	sitemap := sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  urls,
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	if _, err := c.Response().Write([]byte(xml.Header)); err != nil {
		return err
	}
	return xml.NewEncoder(c.Response()).Encode(sitemap)
}
