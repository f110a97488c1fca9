package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/palantir/product-attribute-enrichment/internal/app"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRunCmd(c *cli) *cobra.Command {
	var opts app.RunOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Enrich a local products file and write the batch report",
		Example: `  enricher run --input products.yaml --owner user-1
  enricher run --input products.json --owner user-1 --output report.json --workers 8`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return c.run(ctx, cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.InputPath, "input", "", "Products file (YAML or JSON)")
	cmd.Flags().StringVar(&opts.OutputPath, "output", "", "Report file (default: stdout)")
	cmd.Flags().StringVar(&opts.Owner, "owner", "", "Owner id the products are stored under")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Re-enrich products already marked as enriched")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("owner")
	addPipelineFlags(cmd.Flags())
	return cmd
}

func (c *cli) run(ctx context.Context, cmd *cobra.Command, opts app.RunOptions) error {
	svc, err := app.NewServices(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = svc.Close()
	}()

	report, err := app.RunLocal(ctx, svc, opts, cmd.OutOrStdout())
	if err != nil {
		return fmt.Errorf("local run failed: %w", err)
	}
	c.logger.Info("run complete",
		zap.String("run", report.RunID),
		zap.Int("attempted", report.Attempted),
		zap.Int("failed", report.Failed),
	)
	return nil
}
