package pubmark

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Handler opens the store and returns the preview server with its
// middleware and routes.
func (a *App) Handler() (*echo.Echo, error) {
	if err := a.Open(); err != nil {
		return nil, err
	}
	if a.Echo != nil {
		return a.Echo, nil
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	a.Echo = e
	a.setupMiddleware(e)
	a.setupRoutes(e)
	return e, nil
}

func (a *App) setupRoutes(e *echo.Echo) {
	e.GET("/site.css", a.handleSiteCSS)
	e.GET("/highlight.css", a.handleHighlightCSS)
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)

	e.GET("/", a.handleIndex)
	e.GET("/tag/:tag", a.handleIndex)
	e.GET("/:year/:name", a.handleYearPath)
	e.GET("/:page", a.handleMetaPage)
}

// Serve runs the preview server on Config.Addr until ctx is done.
func (a *App) Serve(ctx context.Context) error {
	e, err := a.Handler()
	if err != nil {
		return err
	}
	errc := make(chan error, 1)
	go func() {
		a.Logger.Info("Serving preview", "addr", a.Config.Addr, "url", a.Config.URL)
		errc <- e.Start(a.Config.Addr)
	}()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
