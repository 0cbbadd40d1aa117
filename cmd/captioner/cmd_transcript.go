package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/captioner/internal/adapter/export"
	sqlitestore "github.com/bnema/captioner/internal/adapter/storage/sqlite"
)

var transcriptOutput string

func init() {
	transcriptCmd.Flags().StringVarP(&transcriptOutput, "output", "o", "", "output path (default <session-id>_transcript.docx)")
}

var transcriptCmd = &cobra.Command{
	Use:   "transcript <session-id>",
	Short: "Export a session transcript as a Word document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		db, err := sqlitestore.NewStore(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer func() { _ = db.Close() }()
		store, closeStore, err := openStateStore(cfg, db)
		if err != nil {
			return err
		}
		defer closeStore()

		ctx := context.Background()
		sess, err := store.GetSession(ctx, args[0])
		if err != nil {
			return fmt.Errorf("get session %s: %w", args[0], err)
		}
		segs, err := store.ListSegments(ctx, sess.ID)
		if err != nil {
			return fmt.Errorf("list segments: %w", err)
		}

		path := transcriptOutput
		if path == "" {
			path = sess.ID + "_transcript.docx"
		}
		if err := export.WriteDocx(path, sess, segs); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Transcript written to %s\n", path)
		return nil
	},
}
