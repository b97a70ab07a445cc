package api

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/izposoja/internal/audit"
	"github.com/erazemk/izposoja/internal/auth"
	"github.com/erazemk/izposoja/internal/clock"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	DB        *sql.DB
	JWTSecret string
	TokenTTL  time.Duration
	Clock     clock.Clock
	Audit     audit.Sink
}

func (h *AuthHandler) audit() accountAudit {
	return accountAudit{sink: h.Audit, clock: h.Clock}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Username == "" || req.Password == "" {
		jsonError(w, http.StatusBadRequest, "username and password required")
		return
	}

	user, err := store.GetUserByUsername(r.Context(), h.DB, req.Username)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil || user.DeletedAt != nil {
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		slog.Warn("login failed", "username", req.Username, "remote", r.RemoteAddr)
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := auth.GenerateToken(h.JWTSecret, user.ID, user.Username, user.Role, h.Clock.Now(), h.TokenTTL)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	actor := actorFrom(r)
	actor.UserID = user.ID
	h.audit().record(r, actor, model.ActionLogin, user.ID, fmt.Sprintf("User %s logged in", user.Username), nil)

	slog.Info("user logged in", "user", user.Username, "role", user.Role)
	jsonResponse(w, http.StatusOK, loginResponse{Token: token})
}

// Logout handles POST /api/auth/logout by revoking the presented token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	if err := h.revoke(r, claims); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to revoke token")
		return
	}

	h.audit().record(r, actorFrom(r), model.ActionLogout, claims.UserID, fmt.Sprintf("User %s logged out", claims.Username), nil)
	slog.Info("user logged out", "user", claims.Username)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// ChangePassword handles PUT /api/auth/password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.CurrentPassword == "" || req.NewPassword == "" {
		jsonError(w, http.StatusBadRequest, "current and new password required")
		return
	}
	if err := model.ValidatePassword(req.NewPassword); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := store.GetUser(r.Context(), h.DB, claims.UserID)
	if err != nil || user == nil {
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if !auth.CheckPassword(user.PasswordHash, req.CurrentPassword) {
		jsonError(w, http.StatusUnauthorized, "current password is incorrect")
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	if err := store.UpdateUserPassword(r.Context(), h.DB, claims.UserID, hash); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to update password")
		return
	}

	h.audit().record(r, actorFrom(r), model.ActionPasswordChanged, claims.UserID,
		fmt.Sprintf("User %s changed their password", claims.Username), nil)
	slog.Info("user changed own password", "user", claims.Username)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "password updated"})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	user, err := store.GetActiveUser(r.Context(), h.DB, claims.UserID)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	jsonResponse(w, http.StatusOK, user)
}

// Refresh handles POST /api/auth/refresh: the presented token is revoked
// and a fresh one with a full lifetime is issued.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	user, err := store.GetActiveUser(r.Context(), h.DB, claims.UserID)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	token, err := auth.GenerateToken(h.JWTSecret, user.ID, user.Username, user.Role, h.Clock.Now(), h.TokenTTL)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}
	if err := h.revoke(r, claims); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to revoke token")
		return
	}

	h.audit().record(r, actorFrom(r), model.ActionTokenRefreshed, user.ID, fmt.Sprintf("User %s refreshed their token", user.Username), nil)
	jsonResponse(w, http.StatusOK, loginResponse{Token: token})
}

// revoke blocks the token behind claims until it would have expired anyway.
func (h *AuthHandler) revoke(r *http.Request, claims *auth.Claims) error {
	expires := h.Clock.Now().Add(auth.DefaultTTL)
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}
	return store.RevokeToken(r.Context(), h.DB, claims.ID, expires, h.Clock.Now())
}
