package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/erazemk/izposoja/internal/config"
)

func initCmd(opts *options) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file and create the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(opts.configPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", opts.configPath)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}

			cfg := config.Default()
			if opts.dbPath != "" {
				cfg.Database = opts.dbPath
			}
			if opts.logPath != "" {
				cfg.LogFile = opts.logPath
			}

			data, err := cfg.Marshal()
			if err != nil {
				return err
			}
			if err := os.WriteFile(opts.configPath, data, 0644); err != nil {
				return fmt.Errorf("writing config: %w", err)
			}
			fmt.Printf("Configuration written: %s\n", opts.configPath)

			if _, _, err := setupLogger(cfg.LogFile, opts.debug); err != nil {
				return err
			}
			database, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			return database.Close()
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing configuration file")
	return cmd
}

func sweepCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire stale reservations and flag overdue rentals once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			logger, closeLog, err := setupLogger(cfg.LogFile, opts.debug)
			if err != nil {
				return err
			}
			defer closeLog()

			database, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer database.Close()

			e, err := newEngines(cfg, database, logger)
			if err != nil {
				return err
			}
			defer e.telemetry.Shutdown(cmd.Context())

			res := e.sweeper.RunOnce(cmd.Context())
			fmt.Printf("run %s: %d reservations expired, %d rentals overdue\n", res.RunID, res.Expired, res.Overdue)
			return nil
		},
	}
}
