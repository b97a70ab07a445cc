package lending

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/erazemk/izposoja/internal/lifecycle"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
	"github.com/erazemk/izposoja/internal/telemetry"
)

// errStale marks a sweep candidate that vanished between listing and processing.
var errStale = errors.New("record no longer exists")

// SweepExpired moves every OPEN reservation past its expires-at to EXPIRED
// and releases its item. It never fails: per-record errors are logged and
// skipped. The count of reservations actually transitioned is returned.
func (e *Reservations) SweepExpired(ctx context.Context) int {
	return e.sweepExpired(ctx, uuid.NewString())
}

func (e *Reservations) sweepExpired(ctx context.Context, runID string) int {
	ctx, span := e.Tracer.Start(ctx, "sweep.reservations", trace.WithAttributes(attribute.String("run", runID)))
	defer span.End()

	logger := e.Logger.With("run", runID)
	candidates, err := store.ListReservations(ctx, e.DB, store.ReservationFilter{
		States:        []model.ReservationState{model.ReservationOpen},
		ExpiresBefore: e.Clock.Now(),
	})
	if err != nil {
		logger.Error("listing open reservations", "error", err)
		telemetry.Fail(span, err)
		return 0
	}

	count := 0
	for _, c := range candidates {
		ok, err := e.expireOne(ctx, runID, c.ID)
		if err != nil {
			logger.Warn("expiring reservation", "reservation", c.ID, "error", err)
			continue
		}
		if ok {
			count++
		}
	}

	span.SetAttributes(attribute.Int("expired", count))
	if count > 0 {
		logger.Info("reservations expired", "count", count)
	}
	return count
}

// expireOne re-checks the guard on the current record and applies the
// EXPIRED transition. It reports false when the guard no longer holds.
func (e *Reservations) expireOne(ctx context.Context, runID string, id int64) (bool, error) {
	now := e.Clock.Now()
	var next model.Reservation
	var applied bool
	err := store.WithTx(ctx, e.DB, func(tx *sql.Tx) error {
		r, err := store.GetReservation(ctx, tx, id)
		if err != nil {
			return err
		}
		if r == nil {
			return fmt.Errorf("reservation %d: %w", id, errStale)
		}

		t, ok := lifecycle.ExpireReservation(*r, now)
		if !ok {
			return nil
		}
		next = t.Reservation

		applied, err = store.UpdateReservation(ctx, tx, &next, model.ReservationOpen)
		if err != nil || !applied {
			return err
		}
		return applyEffect(ctx, tx, r.ItemID, t.Effect, now)
	})
	if err != nil || !applied {
		return false, err
	}

	e.record(ctx, System(runID), model.ActionReservationExpired, model.TableReservations, next.ID,
		fmt.Sprintf("Reservation %d expired (item %d released)", next.ID, next.ItemID),
		map[string]any{"state": change(model.ReservationOpen, next.State)})
	return true, nil
}

// SweepOverdue moves every ACTIVE rental past its due date to OVERDUE. Items
// stay IN_CUSTODY. It never fails: per-record errors are logged and skipped.
// The count of rentals actually transitioned is returned.
func (e *Rentals) SweepOverdue(ctx context.Context) int {
	return e.sweepOverdue(ctx, uuid.NewString())
}

func (e *Rentals) sweepOverdue(ctx context.Context, runID string) int {
	ctx, span := e.Tracer.Start(ctx, "sweep.rentals", trace.WithAttributes(attribute.String("run", runID)))
	defer span.End()

	logger := e.Logger.With("run", runID)
	candidates, err := store.ListRentals(ctx, e.DB, store.RentalFilter{
		States:    []model.RentalState{model.RentalActive},
		DueBefore: e.Clock.Now(),
	})
	if err != nil {
		logger.Error("listing active rentals", "error", err)
		telemetry.Fail(span, err)
		return 0
	}

	count := 0
	for _, c := range candidates {
		ok, err := e.overdueOne(ctx, runID, c.ID)
		if err != nil {
			logger.Warn("marking rental overdue", "rental", c.ID, "error", err)
			continue
		}
		if ok {
			count++
		}
	}

	span.SetAttributes(attribute.Int("overdue", count))
	if count > 0 {
		logger.Info("rentals overdue", "count", count)
	}
	return count
}

func (e *Rentals) overdueOne(ctx context.Context, runID string, id int64) (bool, error) {
	now := e.Clock.Now()
	var next model.Rental
	var applied bool
	err := store.WithTx(ctx, e.DB, func(tx *sql.Tx) error {
		r, err := store.GetRental(ctx, tx, id)
		if err != nil {
			return err
		}
		if r == nil {
			return fmt.Errorf("rental %d: %w", id, errStale)
		}

		t, ok := lifecycle.MarkOverdue(*r, now)
		if !ok {
			return nil
		}
		next = t.Rental

		applied, err = store.UpdateRental(ctx, tx, &next, model.RentalActive)
		return err
	})
	if err != nil || !applied {
		return false, err
	}

	e.record(ctx, System(runID), model.ActionRentalOverdue, model.TableRentals, next.ID,
		fmt.Sprintf("Rental %d overdue since %s", next.ID, next.DueAt.Format(time.RFC3339)),
		map[string]any{"state": change(model.RentalActive, next.State)})
	return true, nil
}

// SweepResult counts the records one sweep pass transitioned.
type SweepResult struct {
	RunID   string `json:"run_id"`
	Expired int    `json:"expired"`
	Overdue int    `json:"overdue"`
}

// Sweeper drives both sweeps, on demand or on a fixed interval.
type Sweeper struct {
	reservations *Reservations
	rentals      *Rentals
	interval     time.Duration
	logger       *slog.Logger
	tracer       trace.Tracer
}

// NewSweeper returns a sweeper running every interval. A nil logger uses
// slog.Default().
func NewSweeper(reservations *Reservations, rentals *Rentals, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		reservations: reservations,
		rentals:      rentals,
		interval:     interval,
		logger:       logger,
		tracer:       reservations.Tracer,
	}
}

// RunOnce runs one pass of both sweeps under a fresh run ID, which is
// recorded as the correlation ID of every audit record the pass emits.
func (s *Sweeper) RunOnce(ctx context.Context) SweepResult {
	res := SweepResult{RunID: uuid.NewString()}

	ctx, span := s.tracer.Start(ctx, "sweep", trace.WithAttributes(attribute.String("run", res.RunID)))
	defer span.End()

	res.Expired = s.reservations.sweepExpired(ctx, res.RunID)
	res.Overdue = s.rentals.sweepOverdue(ctx, res.RunID)

	s.logger.Debug("sweep finished", "run", res.RunID, "expired", res.Expired, "overdue", res.Overdue)
	return res
}

// Run sweeps immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %s", s.interval)
	}

	s.logger.Info("sweeper started", "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.RunOnce(ctx)
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
