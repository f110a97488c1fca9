package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/palantir/product-attribute-enrichment/internal/app"
	"github.com/palantir/product-attribute-enrichment/internal/httpapi"
	"github.com/palantir/product-attribute-enrichment/internal/version"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the product and enrichment HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return c.serve(ctx)
		},
	}
	cmd.Flags().String("addr", ":8080", "Listen address (env: ENRICHER_SERVER_ADDR)")
	addPipelineFlags(cmd.Flags())
	return cmd
}

func (c *cli) serve(ctx context.Context) error {
	svc, err := app.NewServices(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = svc.Close()
	}()

	handler := httpapi.NewHandler(svc.Store, svc.Enricher, c.logger.Named("http"))
	srv := &http.Server{
		Addr:              c.cfg.Server.Addr,
		Handler:           httpapi.SetupRouter(c.cfg.Server, handler, c.logger.Named("http")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		c.logger.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("environment", c.cfg.Server.Environment),
			zap.String("version", version.Current),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	c.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
