package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"

	"github.com/hongminglow/userauth/internal/models"
	"github.com/hongminglow/userauth/internal/storage"
)

// Ensure UserStore satisfies the storage.UserStore interface at compile time.
var _ storage.UserStore = (*UserStore)(nil)

// pgxPool is the subset of *pgxpool.Pool used by the stores. pgxmock's pool
// satisfies it as well.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Connect parses the database URL and opens a connection pool.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// UserStore provides Postgres-backed persistence for users.
type UserStore struct {
	pool pgxPool
}

// NewUserStore creates a UserStore over an open pool.
func NewUserStore(pool pgxPool) *UserStore {
	return &UserStore{pool: pool}
}

const userColumns = `id, email, password_hash, is_admin, created_at`

var listQueries = map[storage.OrderBy]string{
	storage.OrderByIDDesc:      `SELECT ` + userColumns + ` FROM users ORDER BY id DESC`,
	storage.OrderByIDAsc:       `SELECT ` + userColumns + ` FROM users ORDER BY id ASC`,
	storage.OrderByEmailAsc:    `SELECT ` + userColumns + ` FROM users ORDER BY email ASC, id ASC`,
	storage.OrderByCreatedDesc: `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC, id DESC`,
}

// Create inserts a new member row. The unique index on email decides races.
func (s *UserStore) Create(ctx context.Context, email, passwordHash string) (models.User, error) {
	const query = `
		INSERT INTO users (email, password_hash)
		VALUES ($1, $2)
		RETURNING ` + userColumns
	row := s.pool.QueryRow(ctx, query, email, passwordHash)
	created, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, oops.Code("USER_EMAIL_TAKEN").
				With("operation", "insert user").
				Wrap(storage.ErrAlreadyExists)
		}
		return models.User{}, oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			Wrap(err)
	}
	return created, nil
}

// FindByEmail fetches a user by email address.
func (s *UserStore) FindByEmail(ctx context.Context, email string) (models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`
	user, err := scanUser(s.pool.QueryRow(ctx, query, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, oops.Code("USER_NOT_FOUND").Wrap(storage.ErrNotFound)
	}
	if err != nil {
		return models.User{}, oops.Code("USER_GET_BY_EMAIL_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}
	return user, nil
}

// FindByID fetches a user by id.
func (s *UserStore) FindByID(ctx context.Context, id int64) (models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, oops.Code("USER_NOT_FOUND").With("id", id).Wrap(storage.ErrNotFound)
	}
	if err != nil {
		return models.User{}, oops.Code("USER_GET_BY_ID_FAILED").
			With("operation", "get user by id").
			With("id", id).
			Wrap(err)
	}
	return user, nil
}

// ExistsByEmail reports whether a user other than excludingID holds email.
func (s *UserStore) ExistsByEmail(ctx context.Context, email string, excludingID int64) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE LOWER(email) = LOWER($1) AND id <> $2)`
	var exists bool
	if err := s.pool.QueryRow(ctx, query, email, excludingID).Scan(&exists); err != nil {
		return false, oops.Code("USER_EXISTS_CHECK_FAILED").
			With("operation", "check email exists").
			Wrap(err)
	}
	return exists, nil
}

// UpdateEmail changes only the email column.
func (s *UserStore) UpdateEmail(ctx context.Context, id int64, email string) error {
	return s.exec(ctx, "update email", id, `UPDATE users SET email = $2 WHERE id = $1`, id, email)
}

// UpdatePassword changes only the password hash column.
func (s *UserStore) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	return s.exec(ctx, "update password", id, `UPDATE users SET password_hash = $2 WHERE id = $1`, id, passwordHash)
}

// SetAdmin changes only the admin flag.
func (s *UserStore) SetAdmin(ctx context.Context, id int64, isAdmin bool) error {
	return s.exec(ctx, "set admin", id, `UPDATE users SET is_admin = $2 WHERE id = $1`, id, isAdmin)
}

// Update applies every non-nil field of update in one statement.
func (s *UserStore) Update(ctx context.Context, id int64, update storage.UserUpdate) error {
	if update.IsEmpty() {
		return nil
	}
	const query = `
		UPDATE users SET
			email = COALESCE($2, email),
			password_hash = COALESCE($3, password_hash),
			is_admin = COALESCE($4, is_admin)
		WHERE id = $1`
	return s.exec(ctx, "update user", id, query, id, update.Email, update.PasswordHash, update.IsAdmin)
}

// Delete removes a user row.
func (s *UserStore) Delete(ctx context.Context, id int64) error {
	return s.exec(ctx, "delete user", id, `DELETE FROM users WHERE id = $1`, id)
}

// List returns every user in the requested order.
func (s *UserStore) List(ctx context.Context, order storage.OrderBy) ([]models.User, error) {
	query, ok := listQueries[order]
	if !ok {
		query = listQueries[storage.OrderByIDDesc]
	}
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, oops.Code("USER_LIST_FAILED").With("order", order.String()).Wrap(err)
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, oops.Code("USER_LIST_FAILED").With("operation", "scan user row").Wrap(err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("USER_LIST_FAILED").With("operation", "iterate users").Wrap(err)
	}
	return users, nil
}

// Count returns the number of user rows.
func (s *UserStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, oops.Code("USER_COUNT_FAILED").Wrap(err)
	}
	return n, nil
}

func (s *UserStore) exec(ctx context.Context, operation string, id int64, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("USER_EMAIL_TAKEN").
				With("operation", operation).
				With("id", id).
				Wrap(storage.ErrAlreadyExists)
		}
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", operation).
			With("id", id).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").With("id", id).Wrap(storage.ErrNotFound)
	}
	return nil
}

// scanUser scans a single row into a User.
// Callers are responsible for handling pgx.ErrNoRows.
func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	if err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.IsAdmin, &user.CreatedAt); err != nil {
		return models.User{}, err
	}
	return user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
