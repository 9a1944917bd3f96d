// Package server runs the HTTP listeners of the proxy and its dev upstream.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// Timeouts bound the connections of one server.
type Timeouts struct {
	ReadHeader time.Duration
	Read       time.Duration
	Write      time.Duration
	Shutdown   time.Duration
}

// UpstreamTimeouts suit a server answering from memory, like the dev
// upstream.
var UpstreamTimeouts = Timeouts{
	ReadHeader: 1 * time.Second,
	Read:       5 * time.Second,
	Write:      5 * time.Second,
	Shutdown:   10 * time.Second,
}

// ProxyTimeouts extends the write deadline so a response can wait for the
// upstream fetch, which takes up to fetchTimeout, and the rewrite.
func ProxyTimeouts(fetchTimeout time.Duration) Timeouts {
	timeouts := UpstreamTimeouts
	timeouts.Write += fetchTimeout
	return timeouts
}

// Start listens on addr and serves handler on grp until ctx is canceled,
// then shuts the server down gracefully. It returns the bound address, so
// "127.0.0.1:0" serves on a random port.
func Start(
	ctx context.Context,
	grp *errgroup.Group,
	logger *slog.Logger,
	name string,
	addr string,
	handler http.Handler,
	timeouts Timeouts,
) (string, error) {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen for %s on %s: %w", name, addr, err)
	}
	bound := listener.Addr().String()
	logger = logger.With(slog.String("server", name))

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: timeouts.ReadHeader,
		ReadTimeout:       timeouts.Read,
		WriteTimeout:      timeouts.Write,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
	logger.InfoContext(ctx, "starting server...", slog.String("address", bound))

	grp.Go(func() error {
		err := srv.Serve(listener)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("%s server failed: %w", name, err)
	})

	grp.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeouts.Shutdown)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		logger.InfoContext(shutdownCtx, "server stopped")
		return err
	})

	return bound, nil
}
