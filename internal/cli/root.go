package cli

import (
	"github.com/spf13/cobra"

	"contratandoplanos/internal/config"
	applog "contratandoplanos/internal/log"
)

// app is filled by the root command before any subcommand runs.
type app struct {
	envFile string
	cfg     *config.Config
	logger  *applog.Logger
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "contratandoplanos",
		Short:        "Contratando Planos - health insurance brokerage portal",
		Long:         `Public quote site, broker portal and admin back-office for a health insurance brokerage.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := LoadEnvFile(a.envFile); err != nil {
				return err
			}
			cfg, err := LoadAndValidateConfig()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = SetupLogger(cfg, cmd.ErrOrStderr())
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "Path to a dotenv file loaded before reading the environment")

	root.AddCommand(
		newServeCommand(a),
		newWorkerCommand(a),
		newMigrateCommand(a),
		newCreateAdminCommand(a),
	)
	return root
}
