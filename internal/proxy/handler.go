package proxy

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/stolasapp/recorrect/internal/content"
	"github.com/stolasapp/recorrect/internal/fetch"
)

type handler struct {
	base   *url.URL
	source fetch.Source
	logger *slog.Logger
}

func (h handler) register(srv *echo.Echo) {
	srv.GET("/healthz", h.health)
	srv.Match([]string{http.MethodGet, http.MethodHead}, "/*", h.page)
}

func (h handler) health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func (h handler) page(c echo.Context) error {
	ctx := c.Request().Context()
	target := upstreamURL(h.base, c.Request())

	page, err := h.source.Fetch(ctx, target)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to fetch upstream page",
			slog.String("url", target),
			slog.Any("error", err),
		)
		return echo.NewHTTPError(http.StatusBadGateway, "upstream unavailable")
	}

	body, contentType, err := content.Transform(ctx, h.logger, page.ContentType, page.Body)
	if err != nil {
		// serve what upstream sent rather than failing the page
		h.logger.WarnContext(ctx, "failed to rewrite upstream page",
			slog.String("url", target),
			slog.String("content_type", page.ContentType),
			slog.Any("error", err),
		)
		body, contentType = page.Body, page.ContentType
	}
	return c.Blob(page.StatusCode, contentType, body)
}
