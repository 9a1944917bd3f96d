// Package proxy serves an upstream site with every page recapitalized.
package proxy

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/stolasapp/recorrect/internal/config"
	"github.com/stolasapp/recorrect/internal/fetch"
)

// New creates the rewriting proxy for cfg.UpstreamURI.
func New(
	cfg *config.Config,
	logger *slog.Logger,
	source fetch.Source,
) (*echo.Echo, error) {
	if err := cfg.RequireUpstream(); err != nil {
		return nil, err
	}
	base, err := url.Parse(cfg.UpstreamURI)
	if err != nil {
		return nil, fmt.Errorf("failed to parse upstream uri: %w", err)
	} else if !base.IsAbs() {
		return nil, fmt.Errorf("upstream uri must have a scheme: %v", base)
	}

	srv := echo.New()

	srv.HideBanner = true
	srv.HidePort = true
	srv.Logger.SetLevel(log.OFF)

	logger = logger.With(slog.String("component", "proxy"))
	if cfg.DevMode {
		srv.Debug = true
		srv.Use(logRequests(logger))
	} else {
		srv.Use(middleware.Recover())
	}
	srv.Use(
		middleware.Gzip(),
		middleware.RequestID(),
	)

	handler{
		base:   base,
		source: source,
		logger: logger,
	}.register(srv)
	return srv, nil
}

func logRequests(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			latency := time.Since(start)

			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			attrs := []slog.Attr{
				slog.String("method", req.Method),
				slog.String("uri", req.RequestURI),
				slog.String("route", c.Path()),
				slog.Duration("latency", latency),
				slog.Int("status", res.Status),
			}
			if err != nil {
				attrs = append(attrs, slog.Any("error", err))
			}
			logger.LogAttrs(
				req.Context(),
				slog.LevelDebug,
				"request handled",
				attrs...,
			)
			return err
		}
	}
}

// upstreamURL maps a proxied request onto the upstream base, keeping its
// path and query.
func upstreamURL(base *url.URL, req *http.Request) string {
	target := *base
	target.Path = strings.TrimSuffix(base.Path, "/") + req.URL.Path
	target.RawPath = ""
	target.RawQuery = req.URL.RawQuery
	target.Fragment = ""
	return target.String()
}
