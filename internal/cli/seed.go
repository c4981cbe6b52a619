package cli

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/garyjia/vehicle-service-tracker/internal/application/service"
	"github.com/garyjia/vehicle-service-tracker/internal/container"
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

type seedOptions struct {
	file string
}

func newSeedCommand(root *rootOptions) *cobra.Command {
	opts := &seedOptions{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load states, transitions and the vehicle catalog",
		Long: `Imports a catalog document in one transaction. Entries that already
exist are left untouched, so seeding twice is safe.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data := defaultCatalog
			if opts.file != "" {
				raw, err := os.ReadFile(opts.file)
				if err != nil {
					return fmt.Errorf("read catalog: %w", err)
				}
				data = raw
			}
			file, err := service.ParseCatalog(data)
			if err != nil {
				return err
			}

			cfg, logger, err := root.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			c, err := container.NewContainer(cfg.ToContainerConfig(), logger, container.WithoutWorkers())
			if err != nil {
				return err
			}
			if err := c.Start(cmd.Context()); err != nil {
				return fmt.Errorf("start container: %w", err)
			}
			defer c.Close()

			summary, err := c.Services().Catalog.ImportCatalog(cmd.Context(), file)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"seeded %d states, %d transitions, %d comments, %d brands, %d vehicle types, %d models, %d colors\n",
				summary.States, summary.Transitions, summary.Comments,
				summary.Brands, summary.VehicleTypes, summary.Models, summary.Colors)
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "catalog YAML (defaults to the built-in workshop lifecycle)")
	return cmd
}
