package commands

import (
	"github.com/spf13/cobra"

	"github.com/theleywin/talentnest-graph/src/lib"
)

func NewMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := lib.LoadConfig()
			if err != nil {
				return err
			}
			log := lib.NewLogger(cfg.LogLevel)
			defer func() { _ = log.Sync() }()

			db, err := lib.ConnectDB(cfg.DBPath, log)
			if err != nil {
				return err
			}
			if err := lib.AutoMigrate(db); err != nil {
				return err
			}
			log.Info("schema is up to date")
			return nil
		},
	}
}
