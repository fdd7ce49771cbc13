package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// RouteRegistrar registers a handler for a method and pattern together
// with the route tags the access check consults.
type RouteRegistrar interface {
	Handle(method, pattern string, handler http.HandlerFunc, tags ...string)
}

const (
	// PublicTag marks a route as reachable without authentication or
	// any role requirement.
	PublicTag = "public"

	// AdminTag marks the administrative endpoints. Grant it to a role
	// via the policy (or SetTagRoles) to open them up; until then the
	// fail-closed access check denies everyone.
	AdminTag = "admin"
)

// Handler exposes the auth service over HTTP. Session endpoints
// (login, logout, password recovery, profile) authenticate the bearer
// token themselves and are registered as public routes; user
// management endpoints are tagged AdminTag and rely on the access
// middleware.
type Handler struct {
	svc *Service
	log *slog.Logger
}

func NewHandler(svc *Service, log *slog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Register mounts all auth endpoints under prefix (e.g. "/api/v1").
func (h *Handler) Register(r RouteRegistrar, prefix string) {
	prefix = strings.TrimRight(prefix, "/")

	r.Handle(http.MethodPost, prefix+"/auth/login", h.login, PublicTag)
	r.Handle(http.MethodPost, prefix+"/auth/logout", h.logout, PublicTag)
	r.Handle(http.MethodGet, prefix+"/auth/me", h.me, PublicTag)
	r.Handle(http.MethodPost, prefix+"/auth/password", h.changePassword, PublicTag)
	r.Handle(http.MethodPost, prefix+"/auth/password/reset", h.initiateReset, PublicTag)
	r.Handle(http.MethodPost, prefix+"/auth/password/reset/confirm", h.confirmReset, PublicTag)

	r.Handle(http.MethodPost, prefix+"/auth/admin/users/{id}/roles", h.grantRoles, AdminTag)
	r.Handle(http.MethodDelete, prefix+"/auth/admin/users/{id}/roles", h.revokeRoles, AdminTag)
	r.Handle(http.MethodPost, prefix+"/auth/admin/users/{id}/ban", h.ban, AdminTag)
	r.Handle(http.MethodPost, prefix+"/auth/admin/users/{id}/unban", h.unban, AdminTag)
	r.Handle(http.MethodPost, prefix+"/auth/admin/users/{id}/deactivate", h.deactivate, AdminTag)
	r.Handle(http.MethodPost, prefix+"/auth/admin/users/{id}/refresh", h.refreshCache, AdminTag)
	r.Handle(http.MethodDelete, prefix+"/auth/admin/users/{id}", h.deleteUser, AdminTag)
	r.Handle(http.MethodPut, prefix+"/auth/admin/tags/{tag}", h.setTagRoles, AdminTag)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	if !h.ensureEnabled(w) {
		return
	}
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		h.error(w, http.StatusBadRequest, "email and password are required")
		return
	}
	token, err := h.svc.provider.SignInWithPassword(r.Context(), req.Email, req.Password)
	switch {
	case err == nil:
		h.json(w, http.StatusOK, token)
	case errors.Is(err, ErrInvalidCredentials):
		h.error(w, http.StatusUnauthorized, "invalid credentials")
	default:
		h.log.ErrorContext(r.Context(), "login failed", "error", err)
		h.error(w, http.StatusBadGateway, "authentication provider unavailable")
	}
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if !h.ensureEnabled(w) {
		return
	}
	token := requestBearer(r)
	if token == "" {
		h.error(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	if err := h.svc.Logout(r.Context(), token); err != nil {
		h.log.ErrorContext(r.Context(), "logout failed", "error", err)
		h.error(w, http.StatusInternalServerError, "logout failed")
		return
	}
	h.json(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	profile, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	h.json(w, http.StatusOK, profile)
}

type changePasswordRequest struct {
	NewPassword string `json:"new_password"`
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	profile, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	var req changePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.NewPassword == "" {
		h.error(w, http.StatusBadRequest, "new_password is required")
		return
	}
	if err := h.svc.ChangePassword(r.Context(), profile.ID, req.NewPassword); err != nil {
		h.log.ErrorContext(r.Context(), "password change failed", "error", err, "user_id", profile.ID)
		h.error(w, http.StatusBadGateway, "password change failed")
		return
	}
	h.json(w, http.StatusOK, map[string]string{"status": "password changed"})
}

func (h *Handler) initiateReset(w http.ResponseWriter, r *http.Request) {
	if !h.ensureEnabled(w) {
		return
	}
	var req struct {
		Email string `json:"email"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if req.Email == "" {
		h.error(w, http.StatusBadRequest, "email is required")
		return
	}
	// Success is reported regardless of whether the address exists so
	// the endpoint cannot be used to enumerate accounts.
	if err := h.svc.InitiatePasswordReset(r.Context(), req.Email); err != nil {
		h.log.WarnContext(r.Context(), "password reset initiation failed", "error", err)
	}
	h.json(w, http.StatusOK, map[string]string{"status": "recovery email sent"})
}

func (h *Handler) confirmReset(w http.ResponseWriter, r *http.Request) {
	if !h.ensureEnabled(w) {
		return
	}
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if req.Token == "" || req.NewPassword == "" {
		h.error(w, http.StatusBadRequest, "token and new_password are required")
		return
	}
	if err := h.svc.ConfirmPasswordReset(r.Context(), req.Token, req.NewPassword); err != nil {
		h.error(w, http.StatusUnauthorized, "invalid or expired recovery token")
		return
	}
	h.json(w, http.StatusOK, map[string]string{"status": "password changed"})
}

type rolesRequest struct {
	Roles []string `json:"roles"`
}

func (h *Handler) grantRoles(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	var req rolesRequest
	if !h.decode(w, r, &req) {
		return
	}
	if len(req.Roles) == 0 {
		h.error(w, http.StatusBadRequest, "roles are required")
		return
	}
	if err := h.svc.GrantRoles(r.Context(), userID, req.Roles...); err != nil {
		h.log.ErrorContext(r.Context(), "role grant failed", "error", err, "user_id", userID)
		h.error(w, http.StatusInternalServerError, "role update failed")
		return
	}
	h.json(w, http.StatusOK, map[string]any{"user_id": userID, "roles": h.svc.RolesByUserID(r.Context(), userID)})
}

func (h *Handler) revokeRoles(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	var req rolesRequest
	if !h.decode(w, r, &req) {
		return
	}
	if len(req.Roles) == 0 {
		h.error(w, http.StatusBadRequest, "roles are required")
		return
	}
	if err := h.svc.RevokeRoles(r.Context(), userID, req.Roles...); err != nil {
		h.log.ErrorContext(r.Context(), "role revoke failed", "error", err, "user_id", userID)
		h.error(w, http.StatusInternalServerError, "role update failed")
		return
	}
	h.json(w, http.StatusOK, map[string]any{"user_id": userID, "roles": h.svc.RolesByUserID(r.Context(), userID)})
}

func (h *Handler) ban(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	var req struct {
		Duration string `json:"duration"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	d, err := time.ParseDuration(req.Duration)
	if err != nil || d <= 0 {
		h.error(w, http.StatusBadRequest, "duration must be a positive Go duration string")
		return
	}
	if err := h.svc.Ban(r.Context(), userID, d); err != nil {
		h.userError(w, r, err, "ban failed", userID)
		return
	}
	h.json(w, http.StatusOK, map[string]string{"user_id": userID, "status": "banned"})
}

func (h *Handler) unban(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if err := h.svc.Unban(r.Context(), userID); err != nil {
		h.userError(w, r, err, "unban failed", userID)
		return
	}
	h.json(w, http.StatusOK, map[string]string{"user_id": userID, "status": "active"})
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if err := h.svc.Deactivate(r.Context(), userID); err != nil {
		h.userError(w, r, err, "deactivation failed", userID)
		return
	}
	h.json(w, http.StatusOK, map[string]string{"user_id": userID, "status": "deactivated"})
}

func (h *Handler) refreshCache(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	profile, err := h.svc.RefreshUserCache(r.Context(), userID)
	if err != nil {
		h.userError(w, r, err, "cache refresh failed", userID)
		return
	}
	h.json(w, http.StatusOK, profile)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if err := h.svc.DeleteUser(r.Context(), userID); err != nil {
		h.userError(w, r, err, "user deletion failed", userID)
		return
	}
	h.json(w, http.StatusOK, map[string]string{"user_id": userID, "status": "deleted"})
}

func (h *Handler) setTagRoles(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")
	var req rolesRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.SetTagRoles(r.Context(), tag, req.Roles); err != nil {
		h.log.ErrorContext(r.Context(), "tag role update failed", "error", err, "tag", tag)
		h.error(w, http.StatusInternalServerError, "tag update failed")
		return
	}
	h.json(w, http.StatusOK, map[string]any{"tag": tag, "roles": req.Roles})
}

// authenticate resolves the caller from the bearer token, writing the
// appropriate error response when it cannot.
func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) (*Profile, bool) {
	if !h.ensureEnabled(w) {
		return nil, false
	}
	token := requestBearer(r)
	if token == "" {
		h.error(w, http.StatusUnauthorized, "not authenticated")
		return nil, false
	}
	profile, err := h.svc.AuthenticateToken(r.Context(), token)
	if err != nil || profile == nil {
		h.error(w, http.StatusUnauthorized, "invalid or expired token")
		return nil, false
	}
	return profile, true
}

func (h *Handler) ensureEnabled(w http.ResponseWriter) bool {
	if h.svc == nil || !h.svc.Enabled() {
		h.error(w, http.StatusServiceUnavailable, "authentication is not configured")
		return false
	}
	return true
}

func (h *Handler) userError(w http.ResponseWriter, r *http.Request, err error, msg, userID string) {
	if errors.Is(err, ErrUserNotFound) {
		h.error(w, http.StatusNotFound, "user not found")
		return
	}
	h.log.ErrorContext(r.Context(), msg, "error", err, "user_id", userID)
	h.error(w, http.StatusBadGateway, msg)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		h.error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (h *Handler) json(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) error(w http.ResponseWriter, status int, message string) {
	h.json(w, status, map[string]any{
		"status":      "error",
		"message":     message,
		"status_code": status,
	})
}

func requestBearer(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
