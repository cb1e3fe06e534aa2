package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/hongminglow/userauth/internal/models"
	"github.com/hongminglow/userauth/internal/session"
	"github.com/hongminglow/userauth/internal/storage"
	"github.com/hongminglow/userauth/internal/storage/sqlite"
	"github.com/hongminglow/userauth/internal/storage/storagetest"
)

// spySession counts identifier rotations.
type spySession struct {
	*session.Session
	renewed int
}

func (s *spySession) Renew() {
	s.renewed++
	s.Session.Renew()
}

func newSpySession() *spySession {
	return &spySession{Session: session.New()}
}

type spyRecorder struct {
	mu      sync.Mutex
	results map[string][]string
}

func (r *spyRecorder) RecordOutcome(operation, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.results == nil {
		r.results = make(map[string][]string)
	}
	r.results[operation] = append(r.results[operation], result)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSQLiteService(t *testing.T, opts ...Option) (*Service, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	svc, err := NewService(store, NewBcryptHasher(bcrypt.MinCost), discardLogger(), opts...)
	require.NoError(t, err)
	return svc, store
}

func newMockService(t *testing.T) (*Service, *storagetest.UserStore) {
	t.Helper()
	users := &storagetest.UserStore{}
	t.Cleanup(func() { users.AssertExpectations(t) })

	svc, err := NewService(users, NewBcryptHasher(bcrypt.MinCost), discardLogger())
	require.NoError(t, err)
	return svc, users
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, NewBcryptHasher(bcrypt.MinCost), nil)
	assert.Error(t, err)

	_, err = NewService(&storagetest.UserStore{}, nil, nil)
	assert.Error(t, err)
}

func TestRegisterSuccess(t *testing.T) {
	ctx := context.Background()
	svc, store := newSQLiteService(t)

	out := svc.Register(ctx, "  A@Ex.com ", "Passw0rd!", "Passw0rd!")

	require.True(t, out.Success, out.Message)
	assert.Equal(t, "Registration successful!", out.Message)
	require.NotNil(t, out.User)
	assert.Equal(t, "a@ex.com", out.User.Email)
	assert.Empty(t, out.User.PasswordHash)
	assert.False(t, out.User.IsAdmin)

	stored, err := store.FindByEmail(ctx, "a@ex.com")
	require.NoError(t, err)
	assert.NotEqual(t, "Passw0rd!", stored.PasswordHash)
	assert.True(t, NewBcryptHasher(bcrypt.MinCost).Verify("Passw0rd!", stored.PasswordHash))
}

func TestRegisterValidationSurfacesFirstMessage(t *testing.T) {
	tests := []struct {
		name                     string
		email, password, confirm string
		want                     string
	}{
		{"missing email", "", "Passw0rd!", "Passw0rd!", "Email is required."},
		{"bad email beats bad password", "nope", "x", "y", "Invalid email format."},
		{"weak password", "a@ex.com", "password", "password", "Password must contain at least one uppercase letter."},
		{"mismatch", "a@ex.com", "Passw0rd!", "Passw0rd?", "Passwords do not match."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newMockService(t)
			out := svc.Register(context.Background(), tt.email, tt.password, tt.confirm)
			assert.False(t, out.Success)
			assert.Equal(t, KindValidation, out.Kind)
			assert.Equal(t, tt.want, out.Message)
		})
	}
}

func TestRegisterDuplicateIsConflict(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSQLiteService(t)

	require.True(t, svc.Register(ctx, "a@ex.com", "Passw0rd!", "Passw0rd!").Success)

	out := svc.Register(ctx, "A@EX.COM", "Other0ne!", "Other0ne!")
	assert.False(t, out.Success)
	assert.Equal(t, KindConflict, out.Kind)
	assert.Equal(t, "This email is already registered.", out.Message)
}

func TestConcurrentRegistrationHasOneWinner(t *testing.T) {
	ctx := context.Background()
	svc, store := newSQLiteService(t)

	const attempts = 8
	outcomes := make([]Outcome, attempts)
	var wg sync.WaitGroup
	for i := range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = svc.Register(ctx, "race@ex.com", "Passw0rd!", "Passw0rd!")
		}()
	}
	wg.Wait()

	var wins int
	for _, out := range outcomes {
		if out.Success {
			wins++
			continue
		}
		assert.Equal(t, KindConflict, out.Kind)
	}
	assert.Equal(t, 1, wins)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRegisterWriteTimeDuplicateMatchesCheckTime(t *testing.T) {
	svc, users := newMockService(t)
	users.On("ExistsByEmail", mock.Anything, "a@ex.com", int64(0)).Return(false, nil)
	users.On("Create", mock.Anything, "a@ex.com", mock.Anything).
		Return(models.User{}, oops.Code("USER_EMAIL_TAKEN").Wrap(storage.ErrAlreadyExists))

	out := svc.Register(context.Background(), "a@ex.com", "Passw0rd!", "Passw0rd!")
	assert.Equal(t, KindConflict, out.Kind)
	assert.Equal(t, "This email is already registered.", out.Message)
}

func TestRegisterStorageFailureIsGeneric(t *testing.T) {
	svc, users := newMockService(t)
	users.On("ExistsByEmail", mock.Anything, "a@ex.com", int64(0)).
		Return(false, errors.New("dial tcp 10.0.0.1:5432: connection refused"))

	out := svc.Register(context.Background(), "a@ex.com", "Passw0rd!", "Passw0rd!")
	assert.False(t, out.Success)
	assert.Equal(t, KindStorage, out.Kind)
	assert.Equal(t, "An error occurred during registration.", out.Message)
	assert.NotContains(t, out.Message, "connection refused")
}

func TestLoginRejectsEmptyWithoutStore(t *testing.T) {
	svc, _ := newMockService(t)
	sess := newSpySession()

	out := svc.Login(context.Background(), sess, "   ", "Passw0rd!")
	assert.Equal(t, KindValidation, out.Kind)
	assert.Equal(t, "Email is required.", out.Message)

	out = svc.Login(context.Background(), sess, "a@ex.com", "")
	assert.Equal(t, KindValidation, out.Kind)
	assert.Equal(t, "Password is required.", out.Message)

	assert.False(t, sess.IsAuthenticated())
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSQLiteService(t)
	require.True(t, svc.Register(ctx, "a@ex.com", "Passw0rd!", "Passw0rd!").Success)

	unknown := svc.Login(ctx, newSpySession(), "x@y.com", "bad")
	wrong := svc.Login(ctx, newSpySession(), "a@ex.com", "wrong")

	assert.False(t, unknown.Success)
	assert.Equal(t, KindAuthentication, unknown.Kind)
	assert.Equal(t, "Invalid email or password", unknown.Message)
	assert.Equal(t, unknown, wrong)
}

func TestLoginSuccessRotatesSession(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSQLiteService(t)
	reg := svc.Register(ctx, "A@Ex.com", "Passw0rd!", "Passw0rd!")
	require.True(t, reg.Success)

	sess := newSpySession()
	out := svc.Login(ctx, sess, "a@ex.com", "Passw0rd!")

	require.True(t, out.Success, out.Message)
	assert.Equal(t, "Login successful!", out.Message)
	assert.Empty(t, out.User.PasswordHash)
	assert.Equal(t, 1, sess.renewed)

	id, ok := sess.CurrentUserID()
	assert.True(t, ok)
	assert.Equal(t, reg.User.ID, id)
	email, _ := sess.CurrentEmail()
	assert.Equal(t, "a@ex.com", email)
	assert.False(t, sess.IsAdmin())
}

func TestLoginStorageFailure(t *testing.T) {
	svc, users := newMockService(t)
	users.On("FindByEmail", mock.Anything, "a@ex.com").Return(models.User{}, errors.New("timeout"))

	sess := newSpySession()
	out := svc.Login(context.Background(), sess, "a@ex.com", "Passw0rd!")
	assert.Equal(t, KindStorage, out.Kind)
	assert.False(t, sess.IsAuthenticated())
	assert.Zero(t, sess.renewed)
}

func TestSessionSnapshotsGoStaleUntilRelogin(t *testing.T) {
	ctx := context.Background()
	svc, store := newSQLiteService(t)
	reg := svc.Register(ctx, "a@ex.com", "Passw0rd!", "Passw0rd!")
	require.True(t, reg.Success)

	sess := newSpySession()
	require.True(t, svc.Login(ctx, sess, "a@ex.com", "Passw0rd!").Success)
	require.NoError(t, store.SetAdmin(ctx, reg.User.ID, true))

	assert.False(t, svc.IsAdmin(sess), "snapshot is taken at login")

	require.True(t, svc.Login(ctx, sess, "a@ex.com", "Passw0rd!").Success)
	assert.True(t, svc.IsAdmin(sess))
}

func TestLogoutAndCheck(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSQLiteService(t)
	require.True(t, svc.Register(ctx, "a@ex.com", "Passw0rd!", "Passw0rd!").Success)

	sess := newSpySession()
	require.True(t, svc.Login(ctx, sess, "a@ex.com", "Passw0rd!").Success)
	assert.True(t, svc.Check(sess))

	svc.Logout(ctx, sess)
	assert.False(t, svc.Check(sess))

	// No precondition: logging out an anonymous session is fine.
	assert.NotPanics(t, func() { svc.Logout(ctx, newSpySession()) })
}

func TestCurrentUser(t *testing.T) {
	ctx := context.Background()
	svc, store := newSQLiteService(t)

	user, err := svc.CurrentUser(ctx, newSpySession())
	require.NoError(t, err)
	assert.Nil(t, user)

	reg := svc.Register(ctx, "a@ex.com", "Passw0rd!", "Passw0rd!")
	require.True(t, reg.Success)
	sess := newSpySession()
	require.True(t, svc.Login(ctx, sess, "a@ex.com", "Passw0rd!").Success)

	user, err = svc.CurrentUser(ctx, sess)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "a@ex.com", user.Email)
	assert.Empty(t, user.PasswordHash)

	require.NoError(t, store.Delete(ctx, reg.User.ID))
	user, err = svc.CurrentUser(ctx, sess)
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestOutcomesAreRecorded(t *testing.T) {
	ctx := context.Background()
	rec := &spyRecorder{}
	svc, _ := newSQLiteService(t, WithRecorder(rec))

	svc.Register(ctx, "a@ex.com", "Passw0rd!", "Passw0rd!")
	svc.Register(ctx, "a@ex.com", "Passw0rd!", "Passw0rd!")
	svc.Login(ctx, newSpySession(), "a@ex.com", "nope")

	assert.Equal(t, []string{"success", "conflict"}, rec.results["register"])
	assert.Equal(t, []string{"authentication"}, rec.results["login"])
}
