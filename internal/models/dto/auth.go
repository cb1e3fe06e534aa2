package dto

import (
	"time"

	"github.com/hongminglow/userauth/internal/models"
)

type RegisterRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ProfileRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type EditUserRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	IsAdmin         *bool  `json:"is_admin,omitempty"`
}

// UserView is the client-facing projection of a user.
type UserView struct {
	ID        int64       `json:"id"`
	Email     string      `json:"email"`
	IsAdmin   bool        `json:"is_admin"`
	Role      models.Role `json:"role"`
	CreatedAt string      `json:"created_at"`
}

type SessionResponse struct {
	Authenticated bool              `json:"authenticated"`
	UserID        int64             `json:"user_id,omitempty"`
	Email         string            `json:"email,omitempty"`
	IsAdmin       bool              `json:"is_admin"`
	Flash         map[string]string `json:"flash,omitempty"`
}

type UserListResponse struct {
	Users []UserView `json:"users"`
	Count int64      `json:"count"`
}

// NewUserView projects a user for responses.
func NewUserView(u models.User) UserView {
	return UserView{
		ID:        u.ID,
		Email:     u.Email,
		IsAdmin:   u.IsAdmin,
		Role:      u.Role(),
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// NewUserViews projects a slice of users.
func NewUserViews(users []models.User) []UserView {
	out := make([]UserView, 0, len(users))
	for _, u := range users {
		out = append(out, NewUserView(u))
	}
	return out
}
