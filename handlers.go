package pubmark

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/pubmark/markdown"
	"github.com/eringen/pubmark/views"
)

const relatedPosts = 5

func (a *App) handleIndex(c echo.Context) error {
	ctx := c.Request().Context()
	tag := c.Param("tag")
	posts, err := a.Cache.ListPosts(ctx, tag)
	if err != nil {
		return err
	}
	tags, err := a.Cache.ListTags(ctx)
	if err != nil {
		return err
	}
	links := make([]views.TagLink, 0, len(tags))
	found := tag == ""
	for _, t := range tags {
		active := t.Slug == tag
		found = found || active
		links = append(links, views.TagLink{Name: t.Name, Slug: t.Slug, Active: active})
	}
	if !found {
		return echo.ErrNotFound
	}
	meta := views.PageMeta{URL: "/", OGType: "website", Description: a.Config.Description}
	if tag != "" {
		meta.Title = tag
		meta.URL = "/tag/" + tag
	}
	return a.Render(c, meta, views.Index(a.site(), listItems(posts), links))
}

// handleYearPath serves /<year>/<name>, which is either a post
// ("slug.lang") or an asset of that year.
func (a *App) handleYearPath(c echo.Context) error {
	ctx := c.Request().Context()
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		return echo.ErrNotFound
	}
	name := c.Param("name")
	if slug, lang, ok := strings.Cut(name, "."); ok && !strings.Contains(lang, ".") {
		post, err := a.Store.LookupPost(ctx, year, slug, lang)
		switch {
		case err == nil:
			return a.renderPost(c, post)
		case !errors.Is(err, ErrNotFound):
			return err
		}
	}
	asset, err := a.Store.GetAsset(ctx, year, name)
	if errors.Is(err, ErrNotFound) {
		return echo.ErrNotFound
	}
	if err != nil {
		return err
	}
	setFarExpires(c)
	return c.Blob(http.StatusOK, asset.Mime, asset.Content)
}

func (a *App) renderPost(c echo.Context, rec PostRecord) error {
	posts, err := a.Cache.ListPosts(c.Request().Context(), "")
	if err != nil {
		return err
	}
	var tags []string
	for _, p := range posts {
		if p.ID == rec.ID {
			tags = p.Tags
			break
		}
	}
	post := views.Post{
		Title:       rec.Title,
		URL:         rec.URL(),
		Lang:        rec.Lang,
		Date:        formatDate(rec.PostedAt),
		Updated:     formatDate(rec.UpdatedAt),
		Description: rec.Description,
		FrontImage:  rec.FrontImage,
		Content:     rec.Content,
		UsesMap:     rec.UsesMap,
		Tags:        tags,
	}
	meta := views.PageMeta{
		Title:       rec.Title,
		Description: rec.Description,
		URL:         post.URL,
		OGType:      "article",
		Image:       rec.FrontImage,
		UsesMap:     rec.UsesMap,
	}
	related := views.RelatedPosts(post, listItems(posts), relatedPosts)
	return a.Render(c, meta, views.PostPage(a.site(), post, related))
}

func (a *App) handleMetaPage(c echo.Context) error {
	slug, lang, ok := strings.Cut(c.Param("page"), ".")
	if !ok {
		return echo.ErrNotFound
	}
	page, err := a.Store.LookupMetaPage(c.Request().Context(), slug, lang)
	if errors.Is(err, ErrNotFound) {
		return echo.ErrNotFound
	}
	if err != nil {
		return err
	}
	meta := views.PageMeta{Title: page.Title, URL: page.URL(), OGType: "website"}
	return a.Render(c, meta, views.MetaPage(views.Page{
		Title: page.Title, URL: page.URL(), Lang: page.Lang, Content: page.Content,
	}))
}

func (a *App) handleSiteCSS(c echo.Context) error {
	data, err := EmbeddedAssets.ReadFile("embedded/site.css")
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, "text/css; charset=utf-8", data)
}

func (a *App) handleHighlightCSS(c echo.Context) error {
	css, err := markdown.StyleCSS(a.Config.HighlightStyle)
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, "text/css; charset=utf-8", []byte(css))
}

func (a *App) handleSitemap(c echo.Context) error {
	ctx := c.Request().Context()
	posts, err := a.Cache.ListPosts(ctx, "")
	if err != nil {
		return err
	}
	pages, err := a.Store.ListMetaPages(ctx)
	if err != nil {
		return err
	}
	return a.renderSitemap(c, posts, pages)
}

func (a *App) handleFeed(c echo.Context) error {
	posts, err := a.Store.RecentPosts(c.Request().Context(), feedLength)
	if err != nil {
		return err
	}
	return a.renderRSS(c, posts)
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	he, ok := err.(*echo.HTTPError)
	if ok && he.Code == http.StatusNotFound {
		_ = a.RenderStatus(c, http.StatusNotFound, views.PageMeta{Title: "Not found"}, views.NotFound())
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		a.Logger.Error("Server error", "uri", c.Request().RequestURI, "error", err)
		_ = a.RenderStatus(c, code, views.PageMeta{Title: "Error"}, views.ServerError())
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}

func listItems(posts []PostLink) []views.ListItem {
	items := make([]views.ListItem, 0, len(posts))
	for _, p := range posts {
		items = append(items, views.ListItem{
			Title: p.Title,
			URL:   p.URL(),
			Date:  formatDate(p.PostedAt),
			Tags:  p.Tags,
		})
	}
	return items
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.DateOnly)
}
