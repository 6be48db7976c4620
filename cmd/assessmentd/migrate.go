package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the document, submission log and gradebook tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()
		dbh, err := openSQL(ctx, cfg)
		if err != nil {
			return err
		}
		defer dbh.Close()
		newLogger(cfg).Info("schema applied", "driver", cfg.DBDriver)
		return nil
	},
}
