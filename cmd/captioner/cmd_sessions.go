package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	sqlitestore "github.com/bnema/captioner/internal/adapter/storage/sqlite"
	"github.com/bnema/captioner/internal/domain"
)

var sessionsAll bool

func init() {
	sessionsCmd.Flags().BoolVar(&sessionsAll, "all", false, "include completed and failed sessions")
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
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
		var list []*domain.Session
		if sessionsAll {
			list, err = store.ListAllSessions(ctx)
		} else {
			list, err = store.ListActiveSessions(ctx)
		}
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}

		if len(list) == 0 {
			fmt.Println("No sessions found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATE\tOWNER\tSTYLE\tSEGMENTS\tUPDATED")
		for _, s := range list {
			style := s.CaptionStyle
			if style == "" {
				style = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
				s.ID,
				s.State,
				s.OwnerID,
				style,
				len(s.SegmentIDs),
				s.UpdatedAt.Format("2006-01-02 15:04:05"),
			)
		}
		return w.Flush()
	},
}
