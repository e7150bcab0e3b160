package cli

import (
	"github.com/spf13/cobra"

	"contratandoplanos/internal/backend"
	"contratandoplanos/internal/storage"
)

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long:  `Apply the embedded schema migrations for the configured database driver.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			bcfg, err := backend.FromAppConfig(a.cfg)
			if err != nil {
				return err
			}
			if err := storage.RunMigrations(bcfg.DatabaseDriver, bcfg.DatabaseDSN); err != nil {
				return err
			}
			a.logger.Info("Migrations applied", "database", bcfg.DatabaseDriver)
			return nil
		},
	}
}
