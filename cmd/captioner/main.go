package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/bnema/captioner/config"
	"github.com/bnema/captioner/internal/infrastructure/logger"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

var rootCmd = &cobra.Command{
	Use:           "captioner",
	Short:         "Caption videos through chat, HTTP or a drop folder",
	Long:          `Splits videos into segments, transcribes them, lets users review captions per segment and renders the captioned video.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, sessionsCmd, transcriptCmd, hashTokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error.Printf("%v", err)
		os.Exit(1)
	}
}

// loadConfig reads the environment and applies the log level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}
