// Command izposoja runs the lending service.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/erazemk/izposoja/internal/config"
)

// options are the flags shared by every subcommand.
type options struct {
	configPath string
	dbPath     string
	logPath    string
	debug      bool
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:           "izposoja",
		Short:         "Item lending service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "izposoja.yaml", "configuration file (missing file = defaults)")
	cmd.PersistentFlags().StringVarP(&opts.dbPath, "db", "d", "", "SQLite database path (overrides config)")
	cmd.PersistentFlags().StringVarP(&opts.logPath, "log", "l", "", "log file path (overrides config)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(serveCmd(&opts), initCmd(&opts), sweepCmd(&opts))
	return cmd
}

// load reads the configuration and applies the shared flag overrides.
func (o *options) load() (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return cfg, err
	}
	if o.dbPath != "" {
		cfg.Database = o.dbPath
	}
	if o.logPath != "" {
		cfg.LogFile = o.logPath
	}
	return cfg, cfg.Validate()
}
