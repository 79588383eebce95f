package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"fintrack/internal/config"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations to the configured SQL backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			switch a.cfg.DataBackend {
			case config.BackendSQLite:
				err = storage.MigrateSQLite(a.cfg.SQLiteDBPath)
			case config.BackendPostgres:
				err = storage.MigratePostgres(a.cfg.DatabaseURL)
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "backend %q has no schema, nothing to migrate\n", a.cfg.DataBackend)
				return nil
			}
			if err != nil {
				return fmt.Errorf("migrate %s: %w", a.cfg.DataBackend, err)
			}

			a.logger.Info("Migrations applied", log.FieldBackend, a.cfg.DataBackend, log.FieldOperation, log.OpMigrate)
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema is up to date\n", a.cfg.DataBackend)
			return nil
		},
	}
}
