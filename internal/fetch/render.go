package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/stolasapp/recorrect/internal/config"
)

// ErrNoBrowser is returned by Renderer when no Chromium-compatible browser
// is installed.
var ErrNoBrowser = errors.New("no headless browser found")

// stableWindow is how long the DOM must stay unchanged before a rendered
// page is captured.
const stableWindow = 500 * time.Millisecond

// Renderer is a Source returning the DOM of a page after a headless browser
// has loaded it and its scripts have settled.
type Renderer struct {
	timeout time.Duration
	logger  *slog.Logger
}

// NewRenderer creates a Renderer bounded by cfg.RenderTimeout per page.
func NewRenderer(cfg *config.Config, logger *slog.Logger) *Renderer {
	return &Renderer{
		timeout: cfg.RenderTimeout,
		logger:  logger.With(slog.String("component", "renderer")),
	}
}

// Fetch launches a browser, navigates to target and serializes the
// resulting document. The browser is torn down before returning.
func (r *Renderer) Fetch(ctx context.Context, target string) (Page, error) {
	path, ok := launcher.LookPath()
	if !ok {
		return Page{}, ErrNoBrowser
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	lnch := launcher.New().Context(ctx).Bin(path).Headless(true)
	controlURL, err := lnch.Launch()
	if err != nil {
		return Page{}, fmt.Errorf("failed to launch browser: %w", err)
	}
	defer func() {
		lnch.Kill()
		lnch.Cleanup()
	}()

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err = browser.Connect(); err != nil {
		return Page{}, fmt.Errorf("failed to connect to browser: %w", err)
	}
	defer func() {
		if err := browser.Close(); err != nil {
			r.logger.WarnContext(ctx, "failed to close browser", slog.Any("error", err))
		}
	}()

	page, err := browser.Page(proto.TargetCreateTarget{URL: target})
	if err != nil {
		return Page{}, fmt.Errorf("failed to open %s: %w", target, err)
	}
	if err = page.WaitLoad(); err != nil {
		return Page{}, fmt.Errorf("failed to load %s: %w", target, err)
	}
	if err = page.WaitStable(stableWindow); err != nil {
		return Page{}, fmt.Errorf("page %s did not settle: %w", target, err)
	}
	markup, err := page.HTML()
	if err != nil {
		return Page{}, fmt.Errorf("failed to serialize %s: %w", target, err)
	}

	r.logger.DebugContext(ctx, "rendered page",
		slog.String("url", target),
		slog.Int("bytes", len(markup)),
	)
	return Page{
		URL:         target,
		StatusCode:  http.StatusOK,
		ContentType: "text/html; charset=utf-8",
		Body:        []byte(markup),
	}, nil
}
