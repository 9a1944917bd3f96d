// Package fetch retrieves remote documents for rewriting, either as served
// or as rendered by a headless browser.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/die-net/lrucache"
	"github.com/gocolly/colly/v2"
	"github.com/gregjones/httpcache"

	"github.com/stolasapp/recorrect/internal/config"
)

const (
	maxHTTPCacheAge = 0 // unlimited
	idleConns       = 100
	idleConnTimeout = 90 * time.Second
)

// Timeout bounds a single upstream request made by a Fetcher.
const Timeout = 10 * time.Second

// Page is a retrieved document. Body is UTF-8 whenever ContentType names a
// charset.
type Page struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

// Source retrieves documents by absolute URL.
type Source interface {
	Fetch(ctx context.Context, target string) (Page, error)
}

// Fetcher is a Source backed by a colly collector over a caching HTTP
// client.
type Fetcher struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger
}

// NewFetcher creates a Fetcher with the provided config and base logger.
// Responses are cached in memory up to cfg.CacheBytes; zero disables the
// cache.
func NewFetcher(cfg *config.Config, logger *slog.Logger) *Fetcher {
	var transport http.RoundTripper = &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        idleConns,
		MaxConnsPerHost:     idleConns,
		MaxIdleConnsPerHost: idleConns,
		IdleConnTimeout:     idleConnTimeout,
		TLSHandshakeTimeout: Timeout,
	}
	if cfg.CacheBytes > 0 {
		transport = &httpcache.Transport{
			Cache:               lrucache.New(cfg.CacheBytes, maxHTTPCacheAge),
			Transport:           transport,
			MarkCachedResponses: true,
		}
	}
	return &Fetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   Timeout,
		},
		userAgent: cfg.UserAgent,
		logger:    logger.With(slog.String("component", "fetcher")),
	}
}

// Fetch retrieves target. Non-2xx responses are returned as pages rather
// than errors so their status can be passed on.
func (f *Fetcher) Fetch(ctx context.Context, target string) (Page, error) {
	addr, err := url.Parse(target)
	if err != nil {
		return Page{}, fmt.Errorf("failed to parse url %q: %w", target, err)
	} else if !addr.IsAbs() {
		return Page{}, fmt.Errorf("url must have a scheme: %v", addr)
	}

	var (
		page     Page
		received bool
	)
	col := f.newCollector(ctx)
	col.OnResponse(func(resp *colly.Response) {
		received = true
		page = Page{
			URL:         resp.Request.URL.String(),
			StatusCode:  resp.StatusCode,
			ContentType: utf8ContentType(resp.Headers.Get("Content-Type")),
			Body:        resp.Body,
		}
		f.logger.DebugContext(ctx, "fetched page",
			slog.String("url", page.URL),
			slog.Int("status", page.StatusCode),
			slog.String("content_type", page.ContentType),
			slog.Bool("cached", resp.Headers.Get(httpcache.XFromCache) != ""),
		)
	})

	if err = col.Visit(addr.String()); err != nil {
		return Page{}, fmt.Errorf("failed to fetch %v: %w", addr, err)
	}
	if !received {
		return Page{}, fmt.Errorf("failed to fetch %v: %w", addr, errNoResponse)
	}
	return page, nil
}

var errNoResponse = errors.New("no response received")

func (f *Fetcher) newCollector(ctx context.Context) *colly.Collector {
	col := colly.NewCollector(
		colly.IgnoreRobotsTxt(),
		colly.UserAgent(f.userAgent),
		colly.StdlibContext(ctx),
		colly.ParseHTTPErrorResponse(),
		colly.AllowURLRevisit(),
	)
	col.SetClient(f.client)
	return col
}

// utf8ContentType rewrites an explicit charset to utf-8: colly converts
// bodies with a declared charset before handing them out.
func utf8ContentType(contentType string) string {
	mimeType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return contentType
	}
	if _, ok := params["charset"]; !ok {
		return contentType
	}
	params["charset"] = "utf-8"
	return mime.FormatMediaType(mimeType, params)
}
