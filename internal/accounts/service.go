// Package accounts implements administrative user management and
// self-service profile editing.
package accounts

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"

	"github.com/hongminglow/userauth/internal/auth"
	"github.com/hongminglow/userauth/internal/logging"
	"github.com/hongminglow/userauth/internal/models"
	"github.com/hongminglow/userauth/internal/storage"
)

// Messages surfaced to clients.
const (
	MsgInvalidUserID   = "Invalid user ID."
	MsgUserNotFound    = "User not found."
	MsgEmailInUse      = "This email is already used by another account."
	MsgNoChanges       = "No changes to update."
	MsgUserUpdated     = "User updated successfully!"
	MsgUpdateFailed    = "Error updating user."
	MsgSelfDelete      = "You cannot delete your own account."
	MsgUserDeleted     = "User deleted successfully."
	MsgDeleteFailed    = "Error deleting user."
	MsgSelfAdminChange = "You cannot change your own admin status."
	MsgPromoted        = "User promoted to admin."
	MsgDemoted         = "Admin rights removed."
	MsgStatusFailed    = "Error updating user status."
	MsgProfileUpdated  = "Profile updated successfully!"
	MsgProfileFailed   = "Error updating profile."
	MsgListFailed      = "Error loading users."
)

// Service performs account mutations on behalf of an acting session.
type Service struct {
	users    storage.UserStore
	hasher   auth.PasswordHasher
	logger   *slog.Logger
	recorder auth.Recorder
}

// Option configures a Service.
type Option func(*Service)

// WithRecorder reports every outcome to r.
func WithRecorder(r auth.Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

type nopRecorder struct{}

func (nopRecorder) RecordOutcome(string, string) {}

// NewService creates an accounts service.
func NewService(users storage.UserStore, hasher auth.PasswordHasher, logger *slog.Logger, opts ...Option) (*Service, error) {
	if users == nil {
		return nil, oops.Code("ACCOUNTS_INVALID_CONFIG").Errorf("user store is required")
	}
	if hasher == nil {
		return nil, oops.Code("ACCOUNTS_INVALID_CONFIG").Errorf("password hasher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{users: users, hasher: hasher, logger: logger, recorder: nopRecorder{}}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// UserList is a page of users with the total count.
type UserList struct {
	Users []models.User
	Count int64
}

// ListUsers returns every user in the given order, without password hashes.
func (s *Service) ListUsers(ctx context.Context, actor auth.Session, order storage.OrderBy) (UserList, auth.Outcome) {
	if o, ok := requireAdmin(actor); !ok {
		return UserList{}, s.record("list_users", o)
	}

	users, err := s.users.List(ctx, order)
	if err != nil {
		logging.LogError(ctx, s.logger, "list users failed", err)
		return UserList{}, s.record("list_users", auth.Failed(auth.KindStorage, MsgListFailed))
	}
	count, err := s.users.Count(ctx)
	if err != nil {
		logging.LogError(ctx, s.logger, "count users failed", err)
		return UserList{}, s.record("list_users", auth.Failed(auth.KindStorage, MsgListFailed))
	}

	for i := range users {
		users[i] = users[i].Public()
	}
	return UserList{Users: users, Count: count}, s.record("list_users", auth.Succeeded("", nil))
}

// EditInput carries the optional fields of an administrative edit. Empty
// strings and a nil IsAdmin mean "leave unchanged".
type EditInput struct {
	Email           string
	Password        string
	ConfirmPassword string
	IsAdmin         *bool
}

// EditUser applies every changed field of in to user id in one write.
func (s *Service) EditUser(ctx context.Context, actor auth.Session, id int64, in EditInput) auth.Outcome {
	return s.record("edit_user", s.editUser(ctx, actor, id, in))
}

func (s *Service) editUser(ctx context.Context, actor auth.Session, id int64, in EditInput) auth.Outcome {
	if o, ok := requireAdmin(actor); !ok {
		return o
	}
	if id <= 0 {
		return auth.Failed(auth.KindValidation, MsgInvalidUserID)
	}

	target, o, ok := s.resolve(ctx, id)
	if !ok {
		return o
	}

	var update storage.UserUpdate

	if in.IsAdmin != nil && *in.IsAdmin != target.IsAdmin {
		if self(actor, id) {
			return auth.Failed(auth.KindRefused, MsgSelfAdminChange)
		}
		update.IsAdmin = in.IsAdmin
	}

	email, o, ok := s.changedEmail(ctx, target, in.Email)
	if !ok {
		return o
	}
	if email != "" {
		update.Email = &email
	}

	hash, o, ok := s.changedPassword(ctx, in.Password, in.ConfirmPassword, MsgUpdateFailed)
	if !ok {
		return o
	}
	if hash != "" {
		update.PasswordHash = &hash
	}

	if update.IsEmpty() {
		return auth.Failed(auth.KindValidation, MsgNoChanges)
	}

	if err := s.users.Update(ctx, id, update); err != nil {
		return s.writeFailure(ctx, "edit user", err, MsgUpdateFailed)
	}

	if update.Email != nil {
		target.Email = *update.Email
	}
	if update.IsAdmin != nil {
		target.IsAdmin = *update.IsAdmin
	}
	s.logger.InfoContext(ctx, "user updated", "user_id", id, "actor_id", actorID(actor),
		"email_changed", update.Email != nil,
		"password_changed", update.PasswordHash != nil,
		"admin_changed", update.IsAdmin != nil)
	return auth.Succeeded(MsgUserUpdated, &target)
}

// DeleteUser removes user id. Deleting oneself is refused before any store access.
func (s *Service) DeleteUser(ctx context.Context, actor auth.Session, id int64) auth.Outcome {
	return s.record("delete_user", s.deleteUser(ctx, actor, id))
}

func (s *Service) deleteUser(ctx context.Context, actor auth.Session, id int64) auth.Outcome {
	if o, ok := requireAdmin(actor); !ok {
		return o
	}
	if id <= 0 {
		return auth.Failed(auth.KindValidation, MsgInvalidUserID)
	}
	if self(actor, id) {
		return auth.Failed(auth.KindRefused, MsgSelfDelete)
	}

	target, o, ok := s.resolve(ctx, id)
	if !ok {
		return o
	}

	if err := s.users.Delete(ctx, id); err != nil {
		return s.writeFailure(ctx, "delete user", err, MsgDeleteFailed)
	}

	s.logger.InfoContext(ctx, "user deleted", "user_id", id, "actor_id", actorID(actor))
	return auth.Succeeded(MsgUserDeleted, &target)
}

// ToggleAdmin flips the admin flag of user id. Targeting oneself is refused
// in either direction.
func (s *Service) ToggleAdmin(ctx context.Context, actor auth.Session, id int64) auth.Outcome {
	return s.record("toggle_admin", s.toggleAdmin(ctx, actor, id))
}

func (s *Service) toggleAdmin(ctx context.Context, actor auth.Session, id int64) auth.Outcome {
	if o, ok := requireAdmin(actor); !ok {
		return o
	}
	if id <= 0 {
		return auth.Failed(auth.KindValidation, MsgInvalidUserID)
	}
	if self(actor, id) {
		return auth.Failed(auth.KindRefused, MsgSelfAdminChange)
	}

	target, o, ok := s.resolve(ctx, id)
	if !ok {
		return o
	}

	next := target.Role().Toggled() == models.RoleAdmin
	if err := s.users.SetAdmin(ctx, id, next); err != nil {
		return s.writeFailure(ctx, "toggle admin", err, MsgStatusFailed)
	}
	target.IsAdmin = next

	s.logger.InfoContext(ctx, "admin status changed", "user_id", id, "actor_id", actorID(actor), "is_admin", next)
	if next {
		return auth.Succeeded(MsgPromoted, &target)
	}
	return auth.Succeeded(MsgDemoted, &target)
}

// ProfileInput carries the optional fields of a self-service edit.
type ProfileInput struct {
	Email           string
	Password        string
	ConfirmPassword string
}

// UpdateProfile changes the acting user's own email and/or password. The
// admin flag is never touched. A new email refreshes the session snapshot.
func (s *Service) UpdateProfile(ctx context.Context, sess auth.Session, in ProfileInput) auth.Outcome {
	return s.record("update_profile", s.updateProfile(ctx, sess, in))
}

func (s *Service) updateProfile(ctx context.Context, sess auth.Session, in ProfileInput) auth.Outcome {
	id, ok := sess.CurrentUserID()
	if !ok {
		return auth.Failed(auth.KindAuthorization, auth.MsgLoginRequired)
	}

	user, o, ok := s.resolve(ctx, id)
	if !ok {
		return o
	}

	email, o, ok := s.changedEmail(ctx, user, in.Email)
	if !ok {
		return o
	}
	hash, o, ok := s.changedPassword(ctx, in.Password, in.ConfirmPassword, MsgProfileFailed)
	if !ok {
		return o
	}
	if email == "" && hash == "" {
		return auth.Failed(auth.KindValidation, MsgNoChanges)
	}

	if email != "" {
		if err := s.users.UpdateEmail(ctx, id, email); err != nil {
			return s.writeFailure(ctx, "update profile email", err, MsgProfileFailed)
		}
		sess.UpdateEmail(email)
		user.Email = email
	}
	if hash != "" {
		if err := s.users.UpdatePassword(ctx, id, hash); err != nil {
			return s.writeFailure(ctx, "update profile password", err, MsgProfileFailed)
		}
	}

	s.logger.InfoContext(ctx, "profile updated", "user_id", id,
		"email_changed", email != "", "password_changed", hash != "")
	return auth.Succeeded(MsgProfileUpdated, &user)
}

// resolve loads the target user, mapping absence and store failures to outcomes.
func (s *Service) resolve(ctx context.Context, id int64) (models.User, auth.Outcome, bool) {
	user, err := s.users.FindByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return models.User{}, auth.Failed(auth.KindNotFound, MsgUserNotFound), false
	}
	if err != nil {
		logging.LogError(ctx, s.logger, "resolve user failed", err, "user_id", id)
		return models.User{}, auth.Failed(auth.KindStorage, MsgUpdateFailed), false
	}
	return user, auth.Outcome{}, true
}

// changedEmail validates a requested email. It returns "" when raw is empty
// or equal to the user's current email.
func (s *Service) changedEmail(ctx context.Context, user models.User, raw string) (string, auth.Outcome, bool) {
	email := auth.NormalizeEmail(raw)
	if email == "" || email == user.Email {
		return "", auth.Outcome{}, true
	}

	if v := new(auth.Validator).Email(email).Result(); !v.Valid() {
		return "", auth.Failed(auth.KindValidation, v.First()), false
	}

	taken, err := s.users.ExistsByEmail(ctx, email, user.ID)
	if err != nil {
		logging.LogError(ctx, s.logger, "email check failed", err, "user_id", user.ID)
		return "", auth.Failed(auth.KindStorage, MsgUpdateFailed), false
	}
	if taken {
		return "", auth.Failed(auth.KindConflict, MsgEmailInUse), false
	}
	return email, auth.Outcome{}, true
}

// changedPassword validates and hashes a requested password. It returns ""
// when no password was supplied.
func (s *Service) changedPassword(ctx context.Context, password, confirm, failure string) (string, auth.Outcome, bool) {
	if password == "" {
		return "", auth.Outcome{}, true
	}

	if v := new(auth.Validator).Password(password).Match(password, confirm).Result(); !v.Valid() {
		return "", auth.Failed(auth.KindValidation, v.First()), false
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		logging.LogError(ctx, s.logger, "hash password failed", err)
		return "", auth.Failed(auth.KindStorage, failure), false
	}
	return hash, auth.Outcome{}, true
}

func (s *Service) writeFailure(ctx context.Context, operation string, err error, generic string) auth.Outcome {
	switch {
	case errors.Is(err, storage.ErrAlreadyExists):
		return auth.Failed(auth.KindConflict, MsgEmailInUse)
	case errors.Is(err, storage.ErrNotFound):
		return auth.Failed(auth.KindNotFound, MsgUserNotFound)
	}
	logging.LogError(ctx, s.logger, operation+" failed", err)
	return auth.Failed(auth.KindStorage, generic)
}

func (s *Service) record(operation string, o auth.Outcome) auth.Outcome {
	s.recorder.RecordOutcome(operation, o.Kind.String())
	return o
}

func requireAdmin(actor auth.Session) (auth.Outcome, bool) {
	if !actor.IsAuthenticated() {
		return auth.Failed(auth.KindAuthorization, auth.MsgLoginRequired), false
	}
	if !actor.IsAdmin() {
		return auth.Failed(auth.KindAuthorization, auth.MsgAdminRequired), false
	}
	return auth.Outcome{}, true
}

func self(actor auth.Session, id int64) bool {
	current, ok := actor.CurrentUserID()
	return ok && current == id
}

func actorID(actor auth.Session) int64 {
	id, _ := actor.CurrentUserID()
	return id
}
