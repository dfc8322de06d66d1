package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/siherrmann/homegraph/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	g, fileStore, err := buildGraph(cfg, logger)
	if err != nil {
		return err
	}
	defer g.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.NewServer(g, server.Options{
		DefaultDepth: cfg.Query.DefaultDepth,
		SearchLimit:  cfg.Query.SearchLimit,
		RateLimit:    cfg.Server.RateLimit,
		RateBurst:    cfg.Server.RateBurst,
	}, logger)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return srv.Run(groupCtx, cfg.Server.Address, cfg.ShutdownTimeout())
	})
	if fileStore != nil && cfg.Automation.Watch {
		group.Go(func() error {
			logger.Info("Watching configuration", slog.String("dir", fileStore.Dir()))
			err := fileStore.Watch(groupCtx, cfg.Debounce())
			if err != nil && groupCtx.Err() == nil {
				return err
			}
			return nil
		})
	}

	err = group.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
