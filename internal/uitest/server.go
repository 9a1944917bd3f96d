// Package uitest provides browser tests of the rewriting proxy using Rod.
package uitest

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/stolasapp/recorrect/internal/config"
	"github.com/stolasapp/recorrect/internal/fetch"
	"github.com/stolasapp/recorrect/internal/proxy"
	"github.com/stolasapp/recorrect/internal/proxy/devservice"
	"github.com/stolasapp/recorrect/internal/server"
)

// TestSeed is the fixed seed used for reproducible test data.
const TestSeed uint64 = 12345

// Server runs the proxy in dev mode in front of a seeded dev upstream.
type Server struct {
	baseURL     string
	upstreamURL string
	upstream    *devservice.Service
	cancel      context.CancelFunc
	grp         *errgroup.Group
}

// newTestServer creates and starts a new test server.
// It panics on errors since setup failures leave nothing to test.
func newTestServer() *Server {
	ctx, cancel := context.WithCancel(context.Background())
	grp, ctx := errgroup.WithContext(ctx)

	logger := slog.New(slog.DiscardHandler)
	cfg := testConfig()

	upstream := devservice.New(TestSeed)
	devAddr, err := server.Start(ctx, grp, logger, "dev upstream", "127.0.0.1:0", upstream,
		server.UpstreamTimeouts)
	if err != nil {
		cancel()
		panic(fmt.Sprintf("failed to start dev upstream: %v", err))
	}
	cfg.UpstreamURI = "http://" + devAddr + "/"

	srv, err := proxy.New(cfg, logger, fetch.NewFetcher(cfg, logger))
	if err != nil {
		cancel()
		panic(fmt.Sprintf("failed to create proxy: %v", err))
	}
	appAddr, err := server.Start(ctx, grp, logger, "proxy", "127.0.0.1:0", srv,
		server.ProxyTimeouts(fetch.Timeout))
	if err != nil {
		cancel()
		panic(fmt.Sprintf("failed to start proxy: %v", err))
	}

	return &Server{
		baseURL:     "http://" + appAddr,
		upstreamURL: cfg.UpstreamURI,
		upstream:    upstream,
		cancel:      cancel,
		grp:         grp,
	}
}

// URL constructs a full proxied URL from a path.
func (s *Server) URL(path string) string {
	return s.baseURL + path
}

// UpstreamURL constructs a full URL on the dev upstream, bypassing the proxy.
func (s *Server) UpstreamURL(path string) string {
	return s.upstreamURL + path[1:]
}

// Close shuts down the test server.
// Errors are ignored since this runs during test cleanup where failures
// are typically unrecoverable and already logged by the errgroup.
func (s *Server) Close() {
	s.cancel()
	_ = s.grp.Wait()
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.LogLevel = config.LogLevelDebug
	cfg.DevMode = true
	return cfg
}
