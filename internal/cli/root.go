// Package cli holds the vst command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/vehicle-service-tracker/internal/config"
	"github.com/garyjia/vehicle-service-tracker/pkg/utils"
)

type rootOptions struct {
	configPath string
}

// NewRootCommand builds the command tree. Each call returns a fresh tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "vst",
		Short: "Vehicle service tracker",
		Long: `vst tracks vehicles through a configurable workshop lifecycle.
It serves the REST API, applies database migrations and seeds the
state catalog.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"path to a YAML config file (environment variables override it)")

	cmd.AddCommand(
		newServeCommand(opts),
		newMigrateCommand(opts),
		newSeedCommand(opts),
	)
	return cmd
}

// load reads configuration and builds the logger every command starts from
func (o *rootOptions) load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.LoggerOptions())
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, logger, nil
}
