// Package storagetest provides test doubles for the storage interfaces.
package storagetest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/hongminglow/userauth/internal/models"
	"github.com/hongminglow/userauth/internal/storage"
)

// Ensure UserStore satisfies the storage.UserStore interface at compile time.
var _ storage.UserStore = (*UserStore)(nil)

// UserStore is a testify mock of storage.UserStore.
type UserStore struct {
	mock.Mock
}

func (m *UserStore) FindByEmail(ctx context.Context, email string) (models.User, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(models.User), args.Error(1)
}

func (m *UserStore) FindByID(ctx context.Context, id int64) (models.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.User), args.Error(1)
}

func (m *UserStore) ExistsByEmail(ctx context.Context, email string, excludingID int64) (bool, error) {
	args := m.Called(ctx, email, excludingID)
	return args.Bool(0), args.Error(1)
}

func (m *UserStore) Create(ctx context.Context, email, passwordHash string) (models.User, error) {
	args := m.Called(ctx, email, passwordHash)
	return args.Get(0).(models.User), args.Error(1)
}

func (m *UserStore) UpdateEmail(ctx context.Context, id int64, email string) error {
	return m.Called(ctx, id, email).Error(0)
}

func (m *UserStore) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	return m.Called(ctx, id, passwordHash).Error(0)
}

func (m *UserStore) SetAdmin(ctx context.Context, id int64, isAdmin bool) error {
	return m.Called(ctx, id, isAdmin).Error(0)
}

func (m *UserStore) Update(ctx context.Context, id int64, update storage.UserUpdate) error {
	return m.Called(ctx, id, update).Error(0)
}

func (m *UserStore) Delete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *UserStore) List(ctx context.Context, order storage.OrderBy) ([]models.User, error) {
	args := m.Called(ctx, order)
	users, _ := args.Get(0).([]models.User)
	return users, args.Error(1)
}

func (m *UserStore) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}
