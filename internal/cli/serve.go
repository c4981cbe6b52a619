package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/vehicle-service-tracker/internal/container"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
			if err != nil {
				return err
			}
			if err := c.Start(ctx); err != nil {
				return fmt.Errorf("start container: %w", err)
			}
			defer func() {
				if err := c.Close(); err != nil {
					logger.Error("Shutdown finished with errors", zap.Error(err))
				}
			}()

			srv, err := c.HTTPServer()
			if err != nil {
				return err
			}
			logger.Info("Vehicle service tracker ready", zap.String("address", srv.Address()))
			return srv.Start(ctx)
		},
	}
}
