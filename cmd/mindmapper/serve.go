package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dipan99/mindmapper/infrastructure/config"
	"github.com/dipan99/mindmapper/infrastructure/di"
)

func newServeCmd(configPath *string) *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API and the snapshot websocket",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if address != "" {
				cfg.Server.Address = address
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, *configPath)
		},
	}
	cmd.Flags().StringVar(&address, "addr", "", "listen address, overrides server.address")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, configPath string) error {
	container, cleanup, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize container: %w", err)
	}
	defer cleanup()
	logger := container.Logger
	defer func() { _ = logger.Sync() }()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return container.Hub.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("Starting server",
			zap.String("address", cfg.Server.Address),
			zap.String("environment", cfg.Environment),
		)
		if err := container.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return container.Server.Shutdown(shutdownCtx)
	})

	if path := watchedConfig(configPath); path != "" && cfg.IsDevelopment() {
		watcher := config.NewWatcher(path, cfg, logger.Named("config"))
		watcher.OnChange(func(next *config.Config) {
			container.LogLevel.SetLevel(next.LogLevel())
		})
		g.Go(func() error {
			return watcher.Run(gctx)
		})
	}

	return g.Wait()
}

func watchedConfig(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	return os.Getenv(config.EnvConfigPath)
}
