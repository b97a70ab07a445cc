package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"os"

	"github.com/erazemk/izposoja/internal/audit"
	"github.com/erazemk/izposoja/internal/auth"
	"github.com/erazemk/izposoja/internal/clock"
	"github.com/erazemk/izposoja/internal/config"
	"github.com/erazemk/izposoja/internal/db"
	"github.com/erazemk/izposoja/internal/lending"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
	"github.com/erazemk/izposoja/internal/telemetry"
)

// engines bundles everything built from one configuration.
type engines struct {
	db           *sql.DB
	telemetry    *telemetry.Provider
	audit        audit.Sink
	registry     *lending.Registry
	reservations *lending.Reservations
	rentals      *lending.Rentals
	sweeper      *lending.Sweeper
}

// openDatabase opens the database, creating it and the admin account on
// first run. The generated admin password is printed once.
func openDatabase(cfg config.Config) (*sql.DB, error) {
	_, statErr := os.Stat(cfg.Database)
	fresh := errors.Is(statErr, os.ErrNotExist)

	database, err := db.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := db.EnsureSchema(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}

	if fresh {
		password, err := createAdmin(context.Background(), database, cfg.AdminUser)
		if err != nil {
			database.Close()
			os.Remove(cfg.Database)
			return nil, err
		}
		printInitResult(cfg.Database, cfg.AdminUser, password)
	}

	slog.Info("database ready", "path", cfg.Database)
	return database, nil
}

// newEngines wires the lending engines over database.
func newEngines(cfg config.Config, database *sql.DB, logger *slog.Logger) (*engines, error) {
	tp := telemetry.New(logger, cfg.Tracing.Enabled)

	sink := audit.Multi{
		audit.NewSQLSink(database, logger),
		audit.LogSink{Logger: logger},
	}
	deps := lending.Deps{
		DB:     database,
		Policy: cfg.Policy(),
		Clock:  clock.System(),
		Audit:  sink,
		Logger: logger,
		Tracer: tp.Tracer("github.com/erazemk/izposoja/internal/lending"),
	}

	rentals, err := lending.NewRentals(deps)
	if err != nil {
		return nil, err
	}
	reservations, err := lending.NewReservations(deps, rentals)
	if err != nil {
		return nil, err
	}
	registry, err := lending.NewRegistry(deps)
	if err != nil {
		return nil, err
	}

	return &engines{
		db:           database,
		telemetry:    tp,
		audit:        sink,
		registry:     registry,
		reservations: reservations,
		rentals:      rentals,
		sweeper:      lending.NewSweeper(reservations, rentals, cfg.Sweep.Interval, logger),
	}, nil
}

// createAdmin creates the initial admin user with a random password.
func createAdmin(ctx context.Context, database *sql.DB, username string) (string, error) {
	password, err := generatePassword(16)
	if err != nil {
		return "", fmt.Errorf("generating password: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", err
	}

	if _, err := store.CreateUser(ctx, database, username, hash, model.RoleAdmin); err != nil {
		return "", fmt.Errorf("creating admin user: %w", err)
	}
	return password, nil
}

// printInitResult prints the database initialization result to stdout.
func printInitResult(dbPath, username, password string) {
	fmt.Printf("Database created: %s\n", dbPath)
	fmt.Println()
	fmt.Println("Admin account created:")
	fmt.Printf("  Username: %s\n", username)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
	fmt.Println()
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
