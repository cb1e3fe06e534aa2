package storage

import (
	"context"
	"errors"

	"github.com/hongminglow/userauth/internal/models"
)

// ErrNotFound indicates a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict.
var ErrAlreadyExists = errors.New("record already exists")

// OrderBy selects one of the fixed listing orders. Each value maps to a
// complete statement in the store implementations; nothing caller-supplied is
// ever spliced into SQL.
type OrderBy int

const (
	OrderByIDDesc OrderBy = iota
	OrderByIDAsc
	OrderByEmailAsc
	OrderByCreatedDesc
)

var orderNames = map[OrderBy]string{
	OrderByIDDesc:      "id_desc",
	OrderByIDAsc:       "id_asc",
	OrderByEmailAsc:    "email_asc",
	OrderByCreatedDesc: "created_desc",
}

// String returns the wire name of the order.
func (o OrderBy) String() string {
	if name, ok := orderNames[o]; ok {
		return name
	}
	return "unknown"
}

// ParseOrderBy resolves a wire name. An empty name yields the default order.
func ParseOrderBy(name string) (OrderBy, bool) {
	if name == "" {
		return OrderByIDDesc, true
	}
	for order, n := range orderNames {
		if n == name {
			return order, true
		}
	}
	return OrderByIDDesc, false
}

// UserUpdate is a multi-field change applied atomically. Nil fields are left
// untouched.
type UserUpdate struct {
	Email        *string
	PasswordHash *string
	IsAdmin      *bool
}

// IsEmpty reports whether the update changes nothing.
func (u UserUpdate) IsEmpty() bool {
	return u.Email == nil && u.PasswordHash == nil && u.IsAdmin == nil
}

// UserStore captures persistence operations on user records. Emails are
// expected to be normalized by the caller. The store's unique constraint on
// email is the final arbiter of uniqueness: writes that would duplicate an
// email fail with ErrAlreadyExists.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id int64) (models.User, error)
	// ExistsByEmail reports whether another user holds email. A positive
	// excludingID removes that user from consideration.
	ExistsByEmail(ctx context.Context, email string, excludingID int64) (bool, error)
	Create(ctx context.Context, email, passwordHash string) (models.User, error)
	UpdateEmail(ctx context.Context, id int64, email string) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	SetAdmin(ctx context.Context, id int64, isAdmin bool) error
	Update(ctx context.Context, id int64, update UserUpdate) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, order OrderBy) ([]models.User, error)
	Count(ctx context.Context) (int64, error)
}
