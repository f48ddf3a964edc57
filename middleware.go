package pubmark

import (
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// assetMaxAge is how long browsers may keep stored assets.
const assetMaxAge = 180 * 24 * time.Hour

// Already compressed asset types are sent as they are.
var reCompressed = regexp.MustCompile(`(?i)\.(jpe?g|png|gif|webp|pdf|zip|gz|mp4)$`)

func (a *App) setupMiddleware(e *echo.Echo) {
	e.HTTPErrorHandler = a.httpErrorHandler

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			a.Logger.LogAttrs(c.Request().Context(), level, "Request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			)
			return nil
		},
	}))

	e.Use(middleware.Recover())

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			return reCompressed.MatchString(c.Request().URL.Path)
		},
	}))

	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}))

	e.Use(cacheControlMiddleware)
}

// cacheControlMiddleware sets the default caching of each route. Year
// assets override it with setFarExpires.
func cacheControlMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		path := c.Request().URL.Path
		h := c.Response().Header()
		switch {
		case path == "/site.css" || path == "/highlight.css":
			h.Set("Cache-Control", "public, max-age=86400")
		case path == "/sitemap.xml" || path == "/feed.xml":
			h.Set("Cache-Control", "public, max-age=3600")
		default:
			h.Set("Cache-Control", "no-cache")
		}
		return next(c)
	}
}

// setFarExpires marks a response as cacheable for assetMaxAge.
func setFarExpires(c echo.Context) {
	h := c.Response().Header()
	h.Set("Cache-Control", "public, max-age="+strconv.Itoa(int(assetMaxAge/time.Second)))
	h.Set("Expires", time.Now().Add(assetMaxAge).UTC().Format(http.TimeFormat))
}
