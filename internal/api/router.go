package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/izposoja/internal/audit"
	"github.com/erazemk/izposoja/internal/clock"
	"github.com/erazemk/izposoja/internal/imaging"
	"github.com/erazemk/izposoja/internal/lending"
	"github.com/erazemk/izposoja/internal/model"
)

// Services are the collaborators the router dispatches to.
type Services struct {
	DB           *sql.DB
	JWTSecret    string
	TokenTTL     time.Duration
	Clock        clock.Clock
	Logger       *slog.Logger
	Audit        audit.Sink
	Registry     *lending.Registry
	Reservations *lending.Reservations
	Rentals      *lending.Rentals
	Sweeper      *lending.Sweeper
	Photos       imaging.Normalizer
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(s Services) http.Handler {
	if s.Clock == nil {
		s.Clock = clock.System()
	}
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	if s.Audit == nil {
		s.Audit = audit.Discard
	}

	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: s.DB, JWTSecret: s.JWTSecret, TokenTTL: s.TokenTTL, Clock: s.Clock, Audit: s.Audit}
	usersHandler := &UsersHandler{DB: s.DB, Clock: s.Clock, Audit: s.Audit}
	categoriesHandler := &CategoriesHandler{DB: s.DB, Registry: s.Registry}
	itemsHandler := &ItemsHandler{
		DB:           s.DB,
		Registry:     s.Registry,
		Reservations: s.Reservations,
		Rentals:      s.Rentals,
		Photos:       s.Photos,
	}
	reservationsHandler := &ReservationsHandler{Reservations: s.Reservations}
	rentalsHandler := &RentalsHandler{Rentals: s.Rentals}
	auditHandler := &AuditHandler{DB: s.DB}
	sweepHandler := &SweepHandler{Sweeper: s.Sweeper}

	authMW := AuthMiddleware(s.JWTSecret, s.DB, s.Clock)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireManager := RequireRole(model.RoleManager)

	authed := func(h http.HandlerFunc) http.Handler { return authMW(h) }
	admin := func(h http.HandlerFunc) http.Handler { return authMW(requireAdmin(h)) }
	manager := func(h http.HandlerFunc) http.Handler { return authMW(requireManager(h)) }

	// Public.
	mux.HandleFunc("GET /health", Health(s.DB))
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	mux.Handle("PUT /api/auth/password", authed(authHandler.ChangePassword))
	mux.Handle("POST /api/auth/logout", authed(authHandler.Logout))
	mux.Handle("POST /api/auth/refresh", authed(authHandler.Refresh))
	mux.Handle("GET /api/auth/me", authed(authHandler.Me))

	// Users (admin only).
	mux.Handle("GET /api/users", admin(usersHandler.List))
	mux.Handle("POST /api/users", admin(usersHandler.Create))
	mux.Handle("GET /api/users/{id}", admin(usersHandler.Get))
	mux.Handle("PUT /api/users/{id}", admin(usersHandler.Update))
	mux.Handle("PUT /api/users/{id}/password", admin(usersHandler.ResetPassword))
	mux.Handle("DELETE /api/users/{id}", admin(usersHandler.Delete))

	// Categories: read (all roles), write (manager+).
	mux.Handle("GET /api/categories", authed(categoriesHandler.List))
	mux.Handle("POST /api/categories", manager(categoriesHandler.Create))
	mux.Handle("GET /api/categories/{id}", authed(categoriesHandler.Get))
	mux.Handle("PUT /api/categories/{id}", manager(categoriesHandler.Update))
	mux.Handle("DELETE /api/categories/{id}", manager(categoriesHandler.Delete))

	// Items: read (all roles), write (manager+).
	mux.Handle("GET /api/serials/{serial}", authed(itemsHandler.BySerial))
	mux.Handle("GET /api/items", authed(itemsHandler.List))
	mux.Handle("POST /api/items", manager(itemsHandler.Create))
	mux.Handle("GET /api/items/{id}", authed(itemsHandler.Get))
	mux.Handle("PUT /api/items/{id}", manager(itemsHandler.Update))
	mux.Handle("PUT /api/items/{id}/active", manager(itemsHandler.SetActive))
	mux.Handle("POST /api/items/{id}/withdraw", manager(itemsHandler.Withdraw))
	mux.Handle("POST /api/items/{id}/restore", manager(itemsHandler.Restore))
	mux.Handle("POST /api/items/{id}/recover", manager(itemsHandler.Recover))
	mux.Handle("PUT /api/items/{id}/image", manager(itemsHandler.UploadImage))
	mux.Handle("GET /api/items/{id}/image", authed(itemsHandler.GetImage))
	mux.Handle("GET /api/items/{id}/history", authed(itemsHandler.GetHistory))

	// Reservations: holders manage their own, staff confirm.
	mux.Handle("POST /api/reservations", authed(reservationsHandler.Create))
	mux.Handle("GET /api/reservations", authed(reservationsHandler.List))
	mux.Handle("GET /api/reservations/my", authed(reservationsHandler.My))
	mux.Handle("POST /api/reservations/expire", manager(reservationsHandler.Expire))
	mux.Handle("GET /api/reservations/{id}", authed(reservationsHandler.Get))
	mux.Handle("POST /api/reservations/{id}/confirm", manager(reservationsHandler.Confirm))
	mux.Handle("POST /api/reservations/{id}/cancel", authed(reservationsHandler.Cancel))

	// Rentals: read own (all roles), custody changes (manager+).
	mux.Handle("POST /api/rentals", manager(rentalsHandler.Grant))
	mux.Handle("GET /api/rentals", authed(rentalsHandler.List))
	mux.Handle("GET /api/rentals/my", authed(rentalsHandler.My))
	mux.Handle("POST /api/rentals/overdue", manager(rentalsHandler.Overdue))
	mux.Handle("GET /api/rentals/{id}", authed(rentalsHandler.Get))
	mux.Handle("POST /api/rentals/{id}/return", manager(rentalsHandler.Return))
	mux.Handle("POST /api/rentals/{id}/extend", manager(rentalsHandler.Extend))
	mux.Handle("POST /api/rentals/{id}/lost", manager(rentalsHandler.Lost))

	mux.Handle("POST /api/sweep", manager(sweepHandler.Run))
	mux.Handle("GET /api/audit", admin(auditHandler.List))

	return RequestIDMiddleware(LoggingMiddleware(s.Logger)(mux))
}
