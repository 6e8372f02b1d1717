// Package cmd holds the flibrary CLI: importing metadata dumps into the
// catalog and serving assembled books back out of the archive tree.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"flibrary/pkg/config"
	"flibrary/pkg/logging"
	"flibrary/pkg/services"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "flibrary",
	Short: "Digital library backend for INPX metadata dumps",
	Long: "Import an INPX metadata dump into the catalog, locate the archives\n" +
		"holding each book, and assemble complete FB2 files with covers and\n" +
		"illustrations inlined.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the TOML config file")

	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(resolveCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads the config and builds the logger every command shares.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// openLibrary connects the catalog for commands that need it.
func openLibrary() (*services.Library, error) {
	cfg, logger, err := setup()
	if err != nil {
		return nil, err
	}
	return services.Open(cfg, logger)
}
