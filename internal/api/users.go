package api

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/erazemk/izposoja/internal/audit"
	"github.com/erazemk/izposoja/internal/auth"
	"github.com/erazemk/izposoja/internal/clock"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
)

// UsersHandler handles user management endpoints (admin only).
type UsersHandler struct {
	DB    *sql.DB
	Clock clock.Clock
	Audit audit.Sink
}

func (h *UsersHandler) audit() accountAudit {
	return accountAudit{sink: h.Audit, clock: h.Clock}
}

type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type updateUserRequest struct {
	Role string `json:"role"`
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

// List handles GET /api/users.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := store.ListUsers(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to list users", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	if users == nil {
		users = []model.User{}
	}
	jsonResponse(w, http.StatusOK, users)
}

// Create handles POST /api/users.
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Username == "" || req.Password == "" || req.Role == "" {
		jsonError(w, http.StatusBadRequest, "username, password, and role required")
		return
	}

	if !validRole(req.Role) {
		jsonError(w, http.StatusBadRequest, "invalid role")
		return
	}

	if err := model.ValidatePassword(req.Password); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	user, err := store.CreateUser(r.Context(), h.DB, req.Username, hash, req.Role)
	if err != nil {
		jsonError(w, http.StatusConflict, "username already exists")
		return
	}

	h.audit().record(r, actorFrom(r), model.ActionUserCreated, user.ID,
		fmt.Sprintf("User %s created with role %s", user.Username, user.Role),
		map[string]any{"role": map[string]any{"old": nil, "new": user.Role}})

	claims := GetClaims(r.Context())
	slog.Info("user created", "user", claims.Username, "new_user", req.Username, "role", req.Role)
	jsonResponse(w, http.StatusCreated, user)
}

// Get handles GET /api/users/{id}.
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	user, err := store.GetUser(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get user", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	if user == nil {
		jsonError(w, http.StatusNotFound, "user not found")
		return
	}

	jsonResponse(w, http.StatusOK, user)
}

// Update handles PUT /api/users/{id}.
func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !validRole(req.Role) {
		jsonError(w, http.StatusBadRequest, "invalid role")
		return
	}

	before, err := store.GetActiveUser(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to update user")
		return
	}
	if before == nil {
		jsonError(w, http.StatusNotFound, "user not found")
		return
	}

	if err := store.UpdateUser(r.Context(), h.DB, id, req.Role); err != nil {
		slog.Error("failed to update user", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update user")
		return
	}

	user, err := store.GetUser(r.Context(), h.DB, id)
	if err != nil || user == nil {
		jsonError(w, http.StatusInternalServerError, "failed to update user")
		return
	}

	h.audit().record(r, actorFrom(r), model.ActionUserUpdated, user.ID,
		fmt.Sprintf("User %s role %s -> %s", user.Username, before.Role, user.Role),
		map[string]any{"role": map[string]any{"old": before.Role, "new": user.Role}})

	claims := GetClaims(r.Context())
	slog.Info("user role updated", "user", claims.Username, "target_user", user.Username, "new_role", req.Role)
	jsonResponse(w, http.StatusOK, user)
}

// ResetPassword handles PUT /api/users/{id}/password.
func (h *UsersHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Password == "" {
		jsonError(w, http.StatusBadRequest, "password required")
		return
	}

	if err := model.ValidatePassword(req.Password); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	target, err := store.GetActiveUser(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to reset password")
		return
	}
	if target == nil {
		jsonError(w, http.StatusNotFound, "user not found")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	if err := store.UpdateUserPassword(r.Context(), h.DB, id, hash); err != nil {
		slog.Error("failed to reset password", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to reset password")
		return
	}

	h.audit().record(r, actorFrom(r), model.ActionUserPasswordReset, id,
		fmt.Sprintf("Password of user %s reset", target.Username), nil)

	claims := GetClaims(r.Context())
	slog.Info("user password reset", "user", claims.Username, "target_user", target.Username)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "password reset"})
}

// Delete handles DELETE /api/users/{id}.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	// Prevent self-deletion.
	claims := GetClaims(r.Context())
	if claims != nil && claims.UserID == id {
		jsonError(w, http.StatusBadRequest, "cannot delete yourself")
		return
	}

	// Items in a user's custody must come back before the account goes.
	open, err := store.ListRentals(r.Context(), h.DB, store.RentalFilter{
		HolderID: id,
		States:   []model.RentalState{model.RentalActive, model.RentalOverdue},
		Page:     store.Page{Limit: 1},
	})
	if err != nil {
		slog.Error("failed to check rentals", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}
	if len(open) > 0 {
		jsonError(w, http.StatusConflict, "user still holds rented items")
		return
	}

	target, err := store.GetActiveUser(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}
	if target == nil {
		jsonError(w, http.StatusNotFound, "user not found")
		return
	}

	if err := store.DeleteUser(r.Context(), h.DB, id); err != nil {
		slog.Error("failed to delete user", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}

	h.audit().record(r, actorFrom(r), model.ActionUserDeleted, id,
		fmt.Sprintf("User %s deleted", target.Username), nil)

	slog.Info("user deleted", "user", claims.Username, "deleted_user", target.Username)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "user deleted"})
}

func validRole(role string) bool {
	return role == model.RoleAdmin || role == model.RoleManager || role == model.RoleUser
}
