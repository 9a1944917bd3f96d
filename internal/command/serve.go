package command

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/stolasapp/recorrect/internal/fetch"
	"github.com/stolasapp/recorrect/internal/proxy"
	"github.com/stolasapp/recorrect/internal/proxy/devservice"
	"github.com/stolasapp/recorrect/internal/server"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "serve the rewriting proxy for the configured upstream site",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			if err = cfg.RequireUpstream(); err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			grp, ctx := errgroup.WithContext(ctx)

			// In dev mode, start the fake upstream service
			if cfg.DevMode {
				devAddr, err := serveDevUpstream(ctx, grp, logger)
				if err != nil {
					cancel()
					return errors.Join(err, grp.Wait())
				}
				cfg.UpstreamURI = "http://" + devAddr + "/"
			}

			srv, err := proxy.New(cfg, logger, fetch.NewFetcher(cfg, logger))
			if err == nil {
				_, err = server.Start(ctx, grp, logger, "proxy", cfg.WebAddress, srv,
					server.ProxyTimeouts(fetch.Timeout))
			}
			if err != nil {
				cancel()
				return errors.Join(err, grp.Wait())
			}
			logger.InfoContext(ctx, "proxying upstream", slog.String("upstream", cfg.UpstreamURI))
			return grp.Wait()
		},
	}
}

func serveDevUpstream(
	ctx context.Context,
	grp *errgroup.Group,
	logger *slog.Logger,
) (string, error) {
	seed := devservice.Seed()
	addr, err := server.Start(ctx, grp, logger, "dev upstream", "127.0.0.1:0",
		devservice.New(seed), server.UpstreamTimeouts)
	if err != nil {
		return "", err
	}
	logger.InfoContext(ctx, "dev upstream seeded", slog.Uint64("seed", seed))
	return addr, nil
}
