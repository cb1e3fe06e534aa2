package handlers

import (
	"net/http"
	"strconv"

	"github.com/hongminglow/userauth/internal/accounts"
	"github.com/hongminglow/userauth/internal/auth"
	"github.com/hongminglow/userauth/internal/http/respond"
	"github.com/hongminglow/userauth/internal/models/dto"
	"github.com/hongminglow/userauth/internal/storage"
)

const msgInvalidOrder = "Unknown sort order."

// AccountsHandler exposes profile editing and the admin user console.
type AccountsHandler struct {
	svc   *accounts.Service
	guard *auth.Guard
}

// NewAccountsHandler constructs the handler.
func NewAccountsHandler(svc *accounts.Service, guard *auth.Guard) *AccountsHandler {
	return &AccountsHandler{svc: svc, guard: guard}
}

// Register attaches profile and admin routes to the mux.
func (h *AccountsHandler) Register(mux *http.ServeMux) {
	mux.Handle("POST /profile", h.guard.Authenticated(http.HandlerFunc(h.handleProfile)))

	admin := func(fn http.HandlerFunc) http.Handler { return h.guard.Admin(fn) }
	mux.Handle("GET /admin/users", admin(h.handleList))
	mux.Handle("PATCH /admin/users/{id}", admin(h.handleEdit))
	mux.Handle("DELETE /admin/users/{id}", admin(h.handleDelete))
	mux.Handle("POST /admin/users/{id}/toggle-admin", admin(h.handleToggle))
}

func (h *AccountsHandler) handleProfile(w http.ResponseWriter, r *http.Request) {
	var req dto.ProfileRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, msgInvalidPayload)
		return
	}

	sess := sessionFrom(r)
	out := h.svc.UpdateProfile(r.Context(), sess, accounts.ProfileInput{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if out.Success {
		sess.SetFlash("success", out.Message)
	}
	writeOutcome(w, http.StatusOK, out)
}

func (h *AccountsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	order, ok := storage.ParseOrderBy(r.URL.Query().Get("order"))
	if !ok {
		respond.Error(w, http.StatusBadRequest, msgInvalidOrder)
		return
	}

	list, out := h.svc.ListUsers(r.Context(), sessionFrom(r), order)
	if !out.Success {
		respond.Error(w, statusFor(out.Kind), out.Message)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", dto.UserListResponse{
		Users: dto.NewUserViews(list.Users),
		Count: list.Count,
	})
}

func (h *AccountsHandler) handleEdit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req dto.EditUserRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, msgInvalidPayload)
		return
	}

	out := h.svc.EditUser(r.Context(), sessionFrom(r), id, accounts.EditInput{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		IsAdmin:         req.IsAdmin,
	})
	writeOutcome(w, http.StatusOK, out)
}

func (h *AccountsHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	writeOutcome(w, http.StatusOK, h.svc.DeleteUser(r.Context(), sessionFrom(r), id))
}

func (h *AccountsHandler) handleToggle(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	writeOutcome(w, http.StatusOK, h.svc.ToggleAdmin(r.Context(), sessionFrom(r), id))
}

// pathID parses the {id} segment. Unparseable ids are reported like
// non-positive ones.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		respond.Error(w, http.StatusBadRequest, accounts.MsgInvalidUserID)
		return 0, false
	}
	return id, true
}
