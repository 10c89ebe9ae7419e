package commands

import (
	"TodoAPI/internal/app"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|status]",
	Short:     "Run database migrations",
	Long:      `Run the embedded goose migrations against PG_DSN. Defaults to "up".`,
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down", "status"},
	RunE:      runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	command := "up"
	if len(args) == 1 {
		command = args[0]
	}
	cfg, logger, err := loadEnv()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	pool, db, err := app.OpenPostgres(ctx, cfg.PG)
	if err != nil {
		return err
	}
	defer pool.Close()
	defer db.Close()

	return app.Migrate(ctx, db.DB, logger, command)
}
