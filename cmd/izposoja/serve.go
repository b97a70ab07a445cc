package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/erazemk/izposoja/internal/api"
	"github.com/erazemk/izposoja/internal/clock"
	"github.com/erazemk/izposoja/internal/imaging"
	"github.com/erazemk/izposoja/internal/store"
)

func serveCmd(opts *options) *cobra.Command {
	var addr string
	var noSweep bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the background sweeper",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if noSweep {
				cfg.Sweep.Enabled = false
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

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			jwtSecret, err := store.GetJWTSecret(ctx, database)
			if err != nil {
				return err
			}

			var workers []func(context.Context)
			if cfg.Sweep.Enabled {
				workers = append(workers, func(ctx context.Context) {
					if err := e.sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
						logger.Error("sweeper stopped", "error", err)
					}
				})
			}

			router := api.NewRouter(api.Services{
				DB:           database,
				JWTSecret:    jwtSecret,
				TokenTTL:     cfg.Auth.TokenTTL,
				Clock:        clock.System(),
				Logger:       logger,
				Audit:        e.audit,
				Registry:     e.registry,
				Reservations: e.reservations,
				Rentals:      e.rentals,
				Sweeper:      e.sweeper,
				Photos:       imaging.Normalizer{},
			})

			server := &http.Server{
				Addr:              cfg.Addr,
				Handler:           otelhttp.NewHandler(router, "http", otelhttp.WithTracerProvider(e.telemetry.TracerProvider())),
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       30 * time.Second,
				WriteTimeout:      60 * time.Second,
				IdleTimeout:       120 * time.Second,
			}

			ln, err := net.Listen("tcp", cfg.Addr)
			if err != nil {
				return err
			}

			slog.Info("server started", "addr", ln.Addr().String(), "sweep", cfg.Sweep.Enabled)
			if err := runServer(ctx, server, ln, e.telemetry.Shutdown, workers...); err != nil {
				return err
			}

			slog.Info("server stopped, closing database")
			return nil
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (overrides config)")
	cmd.Flags().BoolVar(&noSweep, "no-sweep", false, "disable the background sweeper")
	return cmd
}

// shutdownTimeout bounds draining in-flight requests and flushing traces.
const shutdownTimeout = 5 * time.Second

// runServer serves on ln and runs workers until ctx is canceled or serving
// fails. It returns only after in-flight requests have drained, every
// worker has returned and flush has run, so the caller may release shared
// resources such as the database.
func runServer(ctx context.Context, server *http.Server, ln net.Listener,
	flush func(context.Context) error, workers ...func(context.Context),
) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for _, work := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			work(ctx)
		}()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
		wg.Wait()
		if flush != nil {
			if err := flush(shutdownCtx); err != nil {
				slog.Error("tracer shutdown failed", "error", err)
			}
		}
	}()

	err := server.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	cancel()
	<-done
	return err
}
