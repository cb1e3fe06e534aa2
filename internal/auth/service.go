// Package auth implements credential checks, registration, login, and the
// guards that gate authenticated and administrative operations.
package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"

	"github.com/hongminglow/userauth/internal/logging"
	"github.com/hongminglow/userauth/internal/models"
	"github.com/hongminglow/userauth/internal/storage"
)

// Messages surfaced to clients.
const (
	MsgRegistered         = "Registration successful!"
	MsgEmailRegistered    = "This email is already registered."
	MsgRegistrationFailed = "An error occurred during registration."
	MsgLoggedIn           = "Login successful!"
	MsgInvalidCredentials = "Invalid email or password"
	MsgLoginFailed        = "An error occurred during login."
	MsgLoginRequired      = "Please log in to access this page."
	MsgAdminRequired      = "Administrator access required."
)

// dummyPassword is hashed once so unknown-user logins cost one bcrypt verify.
const dummyPassword = "dummy-password-for-timing-equalization"

// Service orchestrates registration and login.
type Service struct {
	users     storage.UserStore
	hasher    PasswordHasher
	logger    *slog.Logger
	recorder  Recorder
	dummyHash string
}

// Option configures a Service.
type Option func(*Service)

// WithRecorder reports every outcome to r.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// NewService creates an auth service.
func NewService(users storage.UserStore, hasher PasswordHasher, logger *slog.Logger, opts ...Option) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("user store is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password hasher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	dummyHash, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Wrap(err)
	}

	s := &Service{
		users:     users,
		hasher:    hasher,
		logger:    logger,
		recorder:  nopRecorder{},
		dummyHash: dummyHash,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register creates a member account.
func (s *Service) Register(ctx context.Context, email, password, confirmPassword string) Outcome {
	return s.record("register", s.register(ctx, email, password, confirmPassword))
}

func (s *Service) register(ctx context.Context, email, password, confirmPassword string) Outcome {
	email = NormalizeEmail(email)

	v := new(Validator).Email(email).Password(password).Match(password, confirmPassword).Result()
	if !v.Valid() {
		return Failed(KindValidation, v.First())
	}

	exists, err := s.users.ExistsByEmail(ctx, email, 0)
	if err != nil {
		logging.LogError(ctx, s.logger, "registration email check failed", err)
		return Failed(KindStorage, MsgRegistrationFailed)
	}
	if exists {
		return Failed(KindConflict, MsgEmailRegistered)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		logging.LogError(ctx, s.logger, "registration hash failed", err)
		return Failed(KindStorage, MsgRegistrationFailed)
	}

	user, err := s.users.Create(ctx, email, hash)
	if errors.Is(err, storage.ErrAlreadyExists) {
		return Failed(KindConflict, MsgEmailRegistered)
	}
	if err != nil {
		logging.LogError(ctx, s.logger, "registration insert failed", err)
		return Failed(KindStorage, MsgRegistrationFailed)
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID)
	return Succeeded(MsgRegistered, &user)
}

// Login verifies credentials and, on success, establishes identity in sess
// under a fresh session identifier.
func (s *Service) Login(ctx context.Context, sess Session, email, password string) Outcome {
	return s.record("login", s.login(ctx, sess, email, password))
}

func (s *Service) login(ctx context.Context, sess Session, email, password string) Outcome {
	email = NormalizeEmail(email)

	v := new(Validator).Required(email, "Email").Required(password, "Password").Result()
	if !v.Valid() {
		return Failed(KindValidation, v.First())
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		logging.LogError(ctx, s.logger, "login lookup failed", err)
		return Failed(KindStorage, MsgLoginFailed)
	}

	if err != nil {
		s.hasher.Verify(password, s.dummyHash)
		s.logger.InfoContext(ctx, "login failed", "reason", "unknown_user")
		return Failed(KindAuthentication, MsgInvalidCredentials)
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		s.logger.InfoContext(ctx, "login failed", "reason", "bad_password", "user_id", user.ID)
		return Failed(KindAuthentication, MsgInvalidCredentials)
	}

	sess.Login(user.ID, user.Email, user.IsAdmin)
	sess.Renew()

	s.logger.InfoContext(ctx, "user logged in", "user_id", user.ID)
	return Succeeded(MsgLoggedIn, &user)
}

// Logout ends the session unconditionally.
func (s *Service) Logout(ctx context.Context, sess Session) {
	if id, ok := sess.CurrentUserID(); ok {
		s.logger.InfoContext(ctx, "user logged out", "user_id", id)
	}
	sess.Logout()
	s.recorder.RecordOutcome("logout", KindNone.String())
}

// Check reports whether sess is authenticated.
func (s *Service) Check(sess Session) bool {
	return sess.IsAuthenticated()
}

// IsAdmin reports the session's admin snapshot.
func (s *Service) IsAdmin(sess Session) bool {
	return sess.IsAdmin()
}

// CurrentUser loads the record behind sess. It returns nil when anonymous or
// when the account no longer exists.
func (s *Service) CurrentUser(ctx context.Context, sess Session) (*models.User, error) {
	id, ok := sess.CurrentUserID()
	if !ok {
		return nil, nil
	}
	user, err := s.users.FindByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.Code("CURRENT_USER_FAILED").With("user_id", id).Wrap(err)
	}
	public := user.Public()
	return &public, nil
}

func (s *Service) record(operation string, o Outcome) Outcome {
	s.recorder.RecordOutcome(operation, o.Kind.String())
	return o
}
