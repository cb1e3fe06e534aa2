package accounts

import (
	"context"
	"errors"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/hongminglow/userauth/internal/auth"
	"github.com/hongminglow/userauth/internal/models"
	"github.com/hongminglow/userauth/internal/storage"
	"github.com/hongminglow/userauth/internal/storage/storagetest"
)

func TestEnsureAdminCreatesAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, created, err := f.svc.EnsureAdmin(ctx, " Ops@Ex.com ", "Passw0rd!")
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, user.IsAdmin)
	assert.Equal(t, "ops@ex.com", user.Email)
	assert.Empty(t, user.PasswordHash)

	stored, err := f.store.FindByEmail(ctx, "ops@ex.com")
	require.NoError(t, err)
	assert.True(t, stored.IsAdmin)
	assert.True(t, f.hasher.Verify("Passw0rd!", stored.PasswordHash))
}

func TestEnsureAdminPromotesExisting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, created, err := f.svc.EnsureAdmin(ctx, f.member.Email, "")
	require.NoError(t, err)
	assert.False(t, created)
	assert.True(t, user.IsAdmin)

	stored, err := f.store.FindByID(ctx, f.member.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsAdmin)
	assert.True(t, f.hasher.Verify("Passw0rd!", stored.PasswordHash), "password must be untouched")
}

func TestEnsureAdminRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.svc.EnsureAdmin(ctx, "not-an-email", "Passw0rd!")
	require.Error(t, err)

	_, _, err = f.svc.EnsureAdmin(ctx, "fresh@ex.com", "weak")
	require.Error(t, err)

	n, err := f.store.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestEnsureAdminReportsUnpromotedAccount(t *testing.T) {
	users := &storagetest.UserStore{}
	svc, err := NewService(users, auth.NewBcryptHasher(bcrypt.MinCost), nil)
	require.NoError(t, err)

	users.On("FindByEmail", mock.Anything, "ops@ex.com").Return(models.User{}, storage.ErrNotFound)
	users.On("Create", mock.Anything, "ops@ex.com", mock.AnythingOfType("string")).
		Return(models.User{ID: 7, Email: "ops@ex.com"}, nil)
	users.On("SetAdmin", mock.Anything, int64(7), true).Return(errors.New("connection reset"))

	user, created, err := svc.EnsureAdmin(context.Background(), "ops@ex.com", "Passw0rd!")
	require.Error(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(7), user.ID)
	assert.False(t, user.IsAdmin)
	assert.Contains(t, err.Error(), "created but not promoted")

	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok)
	assert.Equal(t, "ADMIN_SEED_PARTIAL", oopsErr.Code())
	users.AssertExpectations(t)
}
