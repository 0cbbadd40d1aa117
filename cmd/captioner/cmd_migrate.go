package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	sqlitestore "github.com/bnema/captioner/internal/adapter/storage/sqlite"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate [up|down|status|version|redo|reset] [args...]",
	Short: "Run database migrations",
	Long:  `Runs a goose command against the SQLite database in DATA_DIR. Defaults to "up".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}

		command := "up"
		if len(args) > 0 {
			command, args = args[0], args[1:]
		}

		store, err := sqlitestore.Open(cfg.DataDir)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		return store.Migrate(context.Background(), command, args...)
	},
}
