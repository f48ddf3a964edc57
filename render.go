package pubmark

import (
	"net/http"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/eringen/pubmark/views"
)

// Render writes a page with the site layout as an HTTP 200 HTML response.
func (a *App) Render(c echo.Context, meta views.PageMeta, body templ.Component) error {
	return a.RenderStatus(c, http.StatusOK, meta, body)
}

// RenderStatus writes a page with the site layout and a specific status code.
func (a *App) RenderStatus(c echo.Context, code int, meta views.PageMeta, body templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(code)
	return views.Layout(a.site(), meta, body).Render(c.Request().Context(), c.Response().Writer)
}

func (a *App) site() views.Site {
	return views.Site{
		Name:        a.Config.Name,
		URL:         a.Config.URL,
		Description: a.Config.Description,
		StyleSheet:  "/highlight.css",
	}
}
