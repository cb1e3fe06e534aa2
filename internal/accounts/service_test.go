package accounts

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/hongminglow/userauth/internal/auth"
	"github.com/hongminglow/userauth/internal/models"
	"github.com/hongminglow/userauth/internal/session"
	"github.com/hongminglow/userauth/internal/storage"
	"github.com/hongminglow/userauth/internal/storage/sqlite"
	"github.com/hongminglow/userauth/internal/storage/storagetest"
)

type fixture struct {
	svc    *Service
	store  *sqlite.Store
	hasher *auth.BcryptHasher
	admin  models.User
	member models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "accounts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	hasher := auth.NewBcryptHasher(bcrypt.MinCost)
	svc, err := NewService(store, hasher, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	f := &fixture{svc: svc, store: store, hasher: hasher}
	f.admin = f.createUser(t, "root@ex.com", true)
	f.member = f.createUser(t, "member@ex.com", false)
	return f
}

func (f *fixture) createUser(t *testing.T, email string, admin bool) models.User {
	t.Helper()
	ctx := context.Background()
	hash, err := f.hasher.Hash("Passw0rd!")
	require.NoError(t, err)
	user, err := f.store.Create(ctx, email, hash)
	require.NoError(t, err)
	if admin {
		require.NoError(t, f.store.SetAdmin(ctx, user.ID, true))
		user.IsAdmin = true
	}
	return user
}

func (f *fixture) reload(t *testing.T, id int64) models.User {
	t.Helper()
	user, err := f.store.FindByID(context.Background(), id)
	require.NoError(t, err)
	return user
}

func loggedIn(user models.User) *session.Session {
	s := session.New()
	s.Login(user.ID, user.Email, user.IsAdmin)
	return s
}

func boolPtr(b bool) *bool { return &b }

func TestAdminOperationsRequireAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for name, actor := range map[string]*session.Session{
		"anonymous": session.New(),
		"member":    loggedIn(f.member),
	} {
		t.Run(name, func(t *testing.T) {
			_, out := f.svc.ListUsers(ctx, actor, storage.OrderByIDDesc)
			assert.Equal(t, auth.KindAuthorization, out.Kind)
			assert.Equal(t, auth.KindAuthorization, f.svc.DeleteUser(ctx, actor, f.admin.ID).Kind)
			assert.Equal(t, auth.KindAuthorization, f.svc.ToggleAdmin(ctx, actor, f.admin.ID).Kind)
			assert.Equal(t, auth.KindAuthorization, f.svc.EditUser(ctx, actor, f.admin.ID, EditInput{Email: "x@ex.com"}).Kind)
		})
	}

	assert.True(t, f.reload(t, f.admin.ID).IsAdmin)
}

func TestListUsers(t *testing.T) {
	f := newFixture(t)
	list, out := f.svc.ListUsers(context.Background(), loggedIn(f.admin), storage.OrderByEmailAsc)

	require.True(t, out.Success)
	assert.Equal(t, int64(2), list.Count)
	require.Len(t, list.Users, 2)
	assert.Equal(t, "member@ex.com", list.Users[0].Email)
	for _, u := range list.Users {
		assert.Empty(t, u.PasswordHash)
	}
}

func TestToggleAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := loggedIn(f.admin)

	out := f.svc.ToggleAdmin(ctx, actor, f.member.ID)
	require.True(t, out.Success)
	assert.Equal(t, "User promoted to admin.", out.Message)
	assert.True(t, f.reload(t, f.member.ID).IsAdmin)

	out = f.svc.ToggleAdmin(ctx, actor, f.member.ID)
	require.True(t, out.Success)
	assert.Equal(t, "Admin rights removed.", out.Message)
	assert.False(t, f.reload(t, f.member.ID).IsAdmin)
}

func TestToggleAdminRefusesSelf(t *testing.T) {
	f := newFixture(t)

	out := f.svc.ToggleAdmin(context.Background(), loggedIn(f.admin), f.admin.ID)
	assert.False(t, out.Success)
	assert.Equal(t, auth.KindRefused, out.Kind)
	assert.Equal(t, "You cannot change your own admin status.", out.Message)
	assert.True(t, f.reload(t, f.admin.ID).IsAdmin)
}

func TestToggleAdminRefusesSelfEvenToPromote(t *testing.T) {
	// A stale admin snapshot on a demoted account still cannot target itself.
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SetAdmin(ctx, f.admin.ID, false))

	out := f.svc.ToggleAdmin(ctx, loggedIn(f.admin), f.admin.ID)
	assert.Equal(t, auth.KindRefused, out.Kind)
	assert.False(t, f.reload(t, f.admin.ID).IsAdmin)
}

func TestIDTargetedOperationsResolveTarget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := loggedIn(f.admin)

	for name, out := range map[string]auth.Outcome{
		"toggle": f.svc.ToggleAdmin(ctx, actor, 999),
		"delete": f.svc.DeleteUser(ctx, actor, 999),
		"edit":   f.svc.EditUser(ctx, actor, 999, EditInput{Email: "x@ex.com"}),
	} {
		assert.Equal(t, auth.KindNotFound, out.Kind, name)
		assert.Equal(t, "User not found.", out.Message, name)
	}

	for name, out := range map[string]auth.Outcome{
		"toggle": f.svc.ToggleAdmin(ctx, actor, 0),
		"delete": f.svc.DeleteUser(ctx, actor, -1),
		"edit":   f.svc.EditUser(ctx, actor, 0, EditInput{}),
	} {
		assert.Equal(t, "Invalid user ID.", out.Message, name)
	}
}

func TestDeleteUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out := f.svc.DeleteUser(ctx, loggedIn(f.admin), f.member.ID)
	require.True(t, out.Success)
	assert.Equal(t, "User deleted successfully.", out.Message)

	_, err := f.store.FindByID(ctx, f.member.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteSelfNeverTouchesStore(t *testing.T) {
	users := &storagetest.UserStore{}
	svc, err := NewService(users, auth.NewBcryptHasher(bcrypt.MinCost), nil)
	require.NoError(t, err)

	actor := session.New()
	actor.Login(1, "root@ex.com", true)
	out := svc.DeleteUser(context.Background(), actor, 1)

	assert.Equal(t, auth.KindRefused, out.Kind)
	assert.Equal(t, "You cannot delete your own account.", out.Message)
	users.AssertExpectations(t)
	users.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	users.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestDeleteSelfKeepsRowCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out := f.svc.DeleteUser(ctx, loggedIn(f.admin), f.admin.ID)
	assert.Equal(t, auth.KindRefused, out.Kind)

	n, err := f.store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestEditUserKeepingOwnEmailIsNotConflict(t *testing.T) {
	f := newFixture(t)

	out := f.svc.EditUser(context.Background(), loggedIn(f.admin), f.member.ID, EditInput{
		Email:           "MEMBER@ex.com",
		Password:        "NewPassw0rd!",
		ConfirmPassword: "NewPassw0rd!",
	})

	require.True(t, out.Success, out.Message)
	assert.Equal(t, "User updated successfully!", out.Message)
	updated := f.reload(t, f.member.ID)
	assert.Equal(t, "member@ex.com", updated.Email)
	assert.True(t, f.hasher.Verify("NewPassw0rd!", updated.PasswordHash))
}

func TestEditUserEmailTakenIsConflict(t *testing.T) {
	f := newFixture(t)

	out := f.svc.EditUser(context.Background(), loggedIn(f.admin), f.member.ID, EditInput{
		Email:           "root@ex.com",
		Password:        "NewPassw0rd!",
		ConfirmPassword: "NewPassw0rd!",
	})

	assert.Equal(t, auth.KindConflict, out.Kind)
	assert.Equal(t, "This email is already used by another account.", out.Message)
	after := f.reload(t, f.member.ID)
	assert.Equal(t, f.member, after)
}

func TestEditUserNoChanges(t *testing.T) {
	f := newFixture(t)
	out := f.svc.EditUser(context.Background(), loggedIn(f.admin), f.member.ID, EditInput{
		Email:   f.member.Email,
		IsAdmin: boolPtr(false),
	})
	assert.Equal(t, auth.KindValidation, out.Kind)
	assert.Equal(t, "No changes to update.", out.Message)
}

func TestEditUserValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := loggedIn(f.admin)

	out := f.svc.EditUser(ctx, actor, f.member.ID, EditInput{Email: "not-an-email"})
	assert.Equal(t, "Invalid email format.", out.Message)

	out = f.svc.EditUser(ctx, actor, f.member.ID, EditInput{Password: "NewPassw0rd!", ConfirmPassword: "nope"})
	assert.Equal(t, "Passwords do not match.", out.Message)

	out = f.svc.EditUser(ctx, actor, f.member.ID, EditInput{Password: "weak", ConfirmPassword: "weak"})
	assert.Equal(t, "Password must be at least 8 characters long.", out.Message)
}

func TestEditUserSetsAdminFlag(t *testing.T) {
	f := newFixture(t)

	out := f.svc.EditUser(context.Background(), loggedIn(f.admin), f.member.ID, EditInput{
		Email:   "renamed@ex.com",
		IsAdmin: boolPtr(true),
	})

	require.True(t, out.Success, out.Message)
	assert.True(t, out.User.IsAdmin)
	updated := f.reload(t, f.member.ID)
	assert.Equal(t, "renamed@ex.com", updated.Email)
	assert.True(t, updated.IsAdmin)
	assert.Equal(t, f.member.PasswordHash, updated.PasswordHash)
}

func TestEditUserRefusesOwnAdminChange(t *testing.T) {
	f := newFixture(t)

	out := f.svc.EditUser(context.Background(), loggedIn(f.admin), f.admin.ID, EditInput{
		Email:   "new-root@ex.com",
		IsAdmin: boolPtr(false),
	})

	assert.Equal(t, auth.KindRefused, out.Kind)
	assert.Equal(t, "You cannot change your own admin status.", out.Message)
	assert.Equal(t, f.admin, f.reload(t, f.admin.ID))
}

func TestEditUserOwnAccountWithoutAdminChange(t *testing.T) {
	f := newFixture(t)

	out := f.svc.EditUser(context.Background(), loggedIn(f.admin), f.admin.ID, EditInput{
		Email:   "new-root@ex.com",
		IsAdmin: boolPtr(true),
	})

	require.True(t, out.Success, out.Message)
	assert.Equal(t, "new-root@ex.com", f.reload(t, f.admin.ID).Email)
}

func TestEditUserWriteConflictIsReported(t *testing.T) {
	users := &storagetest.UserStore{}
	svc, err := NewService(users, auth.NewBcryptHasher(bcrypt.MinCost), nil)
	require.NoError(t, err)

	target := models.User{ID: 2, Email: "b@ex.com"}
	users.On("FindByID", mock.Anything, int64(2)).Return(target, nil)
	users.On("ExistsByEmail", mock.Anything, "c@ex.com", int64(2)).Return(false, nil)
	users.On("Update", mock.Anything, int64(2), mock.AnythingOfType("storage.UserUpdate")).
		Return(storage.ErrAlreadyExists)

	actor := session.New()
	actor.Login(1, "root@ex.com", true)
	out := svc.EditUser(context.Background(), actor, 2, EditInput{Email: "c@ex.com"})

	assert.Equal(t, auth.KindConflict, out.Kind)
	users.AssertExpectations(t)
}

func TestStorageFailuresAreGeneric(t *testing.T) {
	users := &storagetest.UserStore{}
	svc, err := NewService(users, auth.NewBcryptHasher(bcrypt.MinCost), nil)
	require.NoError(t, err)

	users.On("FindByID", mock.Anything, int64(2)).Return(models.User{ID: 2}, nil)
	users.On("SetAdmin", mock.Anything, int64(2), true).Return(errors.New("disk I/O error"))

	actor := session.New()
	actor.Login(1, "root@ex.com", true)
	out := svc.ToggleAdmin(context.Background(), actor, 2)

	assert.Equal(t, auth.KindStorage, out.Kind)
	assert.Equal(t, "Error updating user status.", out.Message)
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := loggedIn(f.member)

	out := f.svc.UpdateProfile(ctx, sess, ProfileInput{
		Email:           "Me@Ex.com",
		Password:        "Fresh.Passw0rd",
		ConfirmPassword: "Fresh.Passw0rd",
	})

	require.True(t, out.Success, out.Message)
	assert.Equal(t, "Profile updated successfully!", out.Message)
	email, _ := sess.CurrentEmail()
	assert.Equal(t, "me@ex.com", email)

	updated := f.reload(t, f.member.ID)
	assert.Equal(t, "me@ex.com", updated.Email)
	assert.False(t, updated.IsAdmin)
	assert.True(t, f.hasher.Verify("Fresh.Passw0rd", updated.PasswordHash))
}

func TestUpdateProfileRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out := f.svc.UpdateProfile(ctx, session.New(), ProfileInput{Email: "x@ex.com"})
	assert.Equal(t, auth.KindAuthorization, out.Kind)

	sess := loggedIn(f.member)
	out = f.svc.UpdateProfile(ctx, sess, ProfileInput{Email: "root@ex.com"})
	assert.Equal(t, auth.KindConflict, out.Kind)
	assert.Equal(t, "This email is already used by another account.", out.Message)

	out = f.svc.UpdateProfile(ctx, sess, ProfileInput{Email: f.member.Email})
	assert.Equal(t, "No changes to update.", out.Message)

	// A bad password blocks the email change too.
	out = f.svc.UpdateProfile(ctx, sess, ProfileInput{Email: "new@ex.com", Password: "weak", ConfirmPassword: "weak"})
	assert.Equal(t, auth.KindValidation, out.Kind)
	assert.Equal(t, f.member.Email, f.reload(t, f.member.ID).Email)
	email, _ := sess.CurrentEmail()
	assert.Equal(t, f.member.Email, email)
}
