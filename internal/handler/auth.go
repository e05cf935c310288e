package handler

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/aryan0dhankhar/estatebooks/internal/domain"
	"github.com/aryan0dhankhar/estatebooks/internal/security/middleware"
	"github.com/aryan0dhankhar/estatebooks/internal/security/ratelimit"
	"github.com/aryan0dhankhar/estatebooks/internal/service"
	"github.com/aryan0dhankhar/estatebooks/internal/tenant"
)

// Login attempts allowed per client address and window
const (
	loginAttempts = 10
	loginWindow   = time.Minute
)

// Authenticator is the account API the auth endpoints need
type Authenticator interface {
	Register(ctx context.Context, email, username, password string) (*service.RegisterResult, error)
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
	Me(ctx context.Context, userID string) (*domain.User, error)
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
}

// SessionOptions describes the session cookie
type SessionOptions struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
}

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	auth     Authenticator
	limiter  *ratelimit.Limiter
	resolver *tenant.Resolver
	session  SessionOptions
	logger   *slog.Logger
}

// NewAuthHandler creates a new auth handler. limiter may be nil.
func NewAuthHandler(auth Authenticator, limiter *ratelimit.Limiter, resolver *tenant.Resolver, session SessionOptions, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if session.CookieName == "" {
		session.CookieName = "session"
	}
	return &AuthHandler{
		auth:     auth,
		limiter:  limiter,
		resolver: resolver,
		session:  session,
		logger:   logger,
	}
}

// RegisterRequest represents registration request
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required"`
}

// LoginRequest represents login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ChangePasswordRequest represents a password change
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

// UserResponse is the public view of a user
type UserResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	result, err := h.auth.Register(r.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		h.logger.Info("registration failed",
			slog.String("email", req.Email),
			slog.String("error", err.Error()),
		)
		WriteError(w, r, err)
		return
	}

	http.SetCookie(w, h.sessionCookie(result.Token))
	writeJSON(w, http.StatusCreated, DataResponse{Data: result})
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if h.limiter != nil && !h.limiter.AllowStrict("login:"+clientIP(r), loginAttempts, loginWindow) {
		writeError(w, http.StatusTooManyRequests, "rate_limited", "too many login attempts")
		return
	}

	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	result, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	http.SetCookie(w, h.sessionCookie(result.Token))
	writeJSON(w, http.StatusOK, DataResponse{Data: result})
}

// Logout handles POST /api/auth/logout. It clears the session and the tenant
// cookie so the next sign-in resolves the tenant afresh.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.session.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	if h.resolver != nil {
		http.SetCookie(w, h.resolver.ClearCookie())
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not signed in")
		return
	}

	user, err := h.auth.Me(r.Context(), userID)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, DataResponse{Data: UserResponse{
		ID:          user.ID,
		Email:       user.Email,
		Username:    user.Username,
		DisplayName: user.DisplayName,
	}})
}

// ChangePassword handles POST /api/auth/change-password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not signed in")
		return
	}

	var req ChangePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	if err := h.auth.ChangePassword(r.Context(), userID, req.OldPassword, req.NewPassword); err != nil {
		WriteError(w, r, err)
		return
	}
	h.logger.Info("password changed", slog.String("user_id", userID))
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) sessionCookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     h.session.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.session.TTL.Seconds()),
		HttpOnly: true,
		Secure:   h.session.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
