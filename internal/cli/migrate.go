package cli

import (
	"github.com/spf13/cobra"

	"n8n-ingest/backend/internal/config"
	"n8n-ingest/backend/internal/logging"
	"n8n-ingest/backend/internal/repository"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(opts.envFile)
			if err != nil {
				return err
			}
			logger := logging.New(cfg.Log.Level, cfg.Log.File)
			defer logger.Close()

			if err := repository.Migrate(cfg.DB.URL); err != nil {
				return err
			}
			logger.Info("Migrations applied")
			return nil
		},
	}
}
