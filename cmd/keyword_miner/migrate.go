package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/jonathan/keyword-miner/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Database.URL == "" {
			return eris.New("database.url is required")
		}
		return db.RunMigrations(cfg.Database.URL)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
