package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/mohammad-safakhou/conflictcast/internal/app"
	srv "github.com/mohammad-safakhou/conflictcast/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCMD(cfgPath *string) *cobra.Command {
	var addr string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, err := load(*cfgPath)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			if addr == "" {
				addr = cfg.Server.Address
			}

			a, err := app.New(ctx, cfg, logger, app.Options{})
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(context.Background()) }()

			e := srv.New(srv.Options{
				Catalog:   a.Catalog(),
				Predictor: a.Pool(),
				Metrics:   a.Metrics.Handler(),
				JWTSecret: cfg.Server.JWTSecret,
				Logger:    logger,
			})
			if cfg.Server.JWTSecret == "" {
				logger.Warn("server.jwt_secret is empty, /api is unauthenticated")
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("listening", zap.String("addr", addr))
				errCh <- e.Start(addr)
			}()
			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return e.Shutdown(shutdownCtx)
			}
		},
	}
	serve.Flags().StringVar(&addr, "addr", "", "listen address (default server.address)")
	return serve
}
