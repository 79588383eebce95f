package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"fintrack/internal/backend"
	"fintrack/internal/buildinfo"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	"fintrack/internal/log"
)

// app is the state shared by every subcommand, filled in before any of
// them runs.
type app struct {
	cfg    *config.Config
	logger *log.Logger
}

func (a *app) backendConfig() (backend.Config, error) {
	return backend.FromAppConfig(a.cfg)
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:     "fintrack",
		Short:   "Household ledger of people, categories and transactions",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cli.LoadEnvFile()
			cfg, err := cli.LoadAndValidateConfig()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = cli.SetupLogger(cfg, cmd.ErrOrStderr()).WithComponent(log.ComponentCLI)
			return nil
		},
	}

	rootCmd.AddCommand(
		newServeCommand(a),
		newMigrateCommand(a),
		newReportCommand(a),
		newEventsCommand(a),
	)

	return rootCmd
}
