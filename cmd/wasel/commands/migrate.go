package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mohmed402/wasel/internal/database"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Applies the database schema.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}

		db, err := database.New(cmd.Context(), database.Config{
			DSN:      cfg.Database.DSN(),
			MaxConns: int32(cfg.Database.MaxConns),
		})
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		if err := db.Migrate(cmd.Context()); err != nil {
			return err
		}
		log.Info("schema applied", "database", cfg.Database.DBName)
		return nil
	},
}
