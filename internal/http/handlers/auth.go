package handlers

import (
	"log/slog"
	"net/http"

	"github.com/hongminglow/userauth/internal/auth"
	"github.com/hongminglow/userauth/internal/http/respond"
	"github.com/hongminglow/userauth/internal/logging"
	"github.com/hongminglow/userauth/internal/models/dto"
)

const (
	msgInvalidPayload   = "invalid JSON payload"
	msgRegisteredFlash  = "Registration successful! You can now login."
	msgLoggedOutFlash   = "You have been logged out."
	msgCurrentUserError = "An error occurred while loading your account."
)

// AuthHandler owns registration, login, logout and session endpoints.
type AuthHandler struct {
	svc    *auth.Service
	guard  *auth.Guard
	logger *slog.Logger
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(svc *auth.Service, guard *auth.Guard, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, guard: guard, logger: logger}
}

// Register attaches auth routes to the mux.
func (h *AuthHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /register", h.handleRegister)
	mux.HandleFunc("POST /login", h.handleLogin)
	mux.HandleFunc("POST /logout", h.handleLogout)
	mux.HandleFunc("GET /session", h.handleSession)
	mux.Handle("GET /me", h.guard.Authenticated(http.HandlerFunc(h.handleMe)))
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, msgInvalidPayload)
		return
	}

	out := h.svc.Register(r.Context(), req.Email, req.Password, req.ConfirmPassword)
	if out.Success {
		sessionFrom(r).SetFlash("success", msgRegisteredFlash)
	}
	writeOutcome(w, http.StatusCreated, out)
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if h.svc.Check(sess) {
		auth.Deny(w, auth.Decision{Redirect: h.guard.HomePath})
		return
	}

	var req dto.LoginRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, msgInvalidPayload)
		return
	}

	writeOutcome(w, http.StatusOK, h.svc.Login(r.Context(), sess, req.Email, req.Password))
}

func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	h.svc.Logout(r.Context(), sess)
	sess.SetFlash("success", msgLoggedOutFlash)
	respond.JSON(w, http.StatusOK, msgLoggedOutFlash, nil)
}

func (h *AuthHandler) handleSession(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	resp := dto.SessionResponse{
		Authenticated: h.svc.Check(sess),
		IsAdmin:       h.svc.IsAdmin(sess),
		Flash:         sess.TakeFlashes(),
	}
	if id, ok := sess.CurrentUserID(); ok {
		resp.UserID = id
	}
	if email, ok := sess.CurrentEmail(); ok {
		resp.Email = email
	}
	respond.JSON(w, http.StatusOK, "ok", resp)
}

func (h *AuthHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.CurrentUser(r.Context(), sessionFrom(r))
	if err != nil {
		logging.LogError(r.Context(), h.logger, "load current user", err)
		respond.Error(w, http.StatusInternalServerError, msgCurrentUserError)
		return
	}
	if user == nil {
		respond.Error(w, http.StatusNotFound, "User not found.")
		return
	}
	respond.JSON(w, http.StatusOK, "ok", dto.NewUserView(*user))
}
