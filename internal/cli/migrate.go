package cli

import (
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/garyjia/vehicle-service-tracker/pkg/database"
)

type migrateOptions struct {
	status bool
}

func newMigrateCommand(root *rootOptions) *cobra.Command {
	opts := &migrateOptions{}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Long: `Applies the migrations compiled into the binary for the configured
driver, or those in database.migrations_dir when it is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			conn, err := database.New(cfg.DatabaseOptions(), logger)
			if err != nil {
				return err
			}
			defer conn.Close()

			migrator := database.NewMigrator(conn, logger)
			out := cmd.OutOrStdout()

			if opts.status {
				fsys, err := migrationSource(conn.Dialect(), cfg.Database.MigrationsDir)
				if err != nil {
					return err
				}
				pending, err := migrator.Pending(fsys)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%d pending migrations\n", len(pending))
				for _, m := range pending {
					fmt.Fprintf(out, "  %03d %s\n", m.Version, m.Name)
				}
				return nil
			}

			applied, err := migrator.Run(cfg.Database.MigrationsDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "applied %d migrations (%s)\n", applied, conn.Dialect())
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.status, "status", false, "list pending migrations without applying them")
	return cmd
}

func migrationSource(d database.Dialect, dir string) (fs.FS, error) {
	if dir != "" {
		return os.DirFS(dir), nil
	}
	return database.EmbeddedMigrations(d)
}
