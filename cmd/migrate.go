package main

import (
	"github.com/maxaizer/job-intake/internal/config"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Get()
		if err != nil {
			return err
		}

		dbContext, err := openDatabase(cfg.DB)
		if err != nil {
			return err
		}
		defer dbContext.Close()

		log.Info("database schema is up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
