package accounts

import (
	"context"
	"errors"

	"github.com/samber/oops"

	"github.com/hongminglow/userauth/internal/auth"
	"github.com/hongminglow/userauth/internal/models"
	"github.com/hongminglow/userauth/internal/storage"
)

// EnsureAdmin makes email an administrator, creating the account with
// password if it does not exist. An existing account keeps its password.
// It reports whether the account was created, including when promoting the
// new account fails; rerunning then promotes it.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) (models.User, bool, error) {
	email = auth.NormalizeEmail(email)
	if v := new(auth.Validator).Email(email).Result(); !v.Valid() {
		return models.User{}, false, oops.Code("ADMIN_SEED_INVALID").Errorf("%s", v.First())
	}

	user, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if !user.IsAdmin {
			if err := s.users.SetAdmin(ctx, user.ID, true); err != nil {
				return models.User{}, false, err
			}
			user.IsAdmin = true
			s.logger.InfoContext(ctx, "existing user promoted to admin", "user_id", user.ID)
		}
		return user.Public(), false, nil
	case !errors.Is(err, storage.ErrNotFound):
		return models.User{}, false, err
	}

	if v := new(auth.Validator).Password(password).Result(); !v.Valid() {
		return models.User{}, false, oops.Code("ADMIN_SEED_INVALID").Errorf("%s", v.First())
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.User{}, false, oops.Code("ADMIN_SEED_FAILED").Wrap(err)
	}
	user, err = s.users.Create(ctx, email, hash)
	if err != nil {
		return models.User{}, false, err
	}
	if err := s.users.SetAdmin(ctx, user.ID, true); err != nil {
		return user.Public(), true, oops.Code("ADMIN_SEED_PARTIAL").
			With("user_id", user.ID).
			Wrapf(err, "account %s created but not promoted; rerun to promote it", email)
	}
	user.IsAdmin = true

	s.logger.InfoContext(ctx, "admin account created", "user_id", user.ID)
	return user.Public(), true, nil
}
