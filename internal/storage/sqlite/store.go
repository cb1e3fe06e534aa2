// Package sqlite implements the user store on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"strings"
	"time"

	"github.com/samber/oops"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/hongminglow/userauth/internal/models"
	"github.com/hongminglow/userauth/internal/storage"
)

//go:embed schema.sql
var schema string

// Ensure Store satisfies the storage.UserStore interface at compile time.
var _ storage.UserStore = (*Store)(nil)

// Store provides SQLite-backed persistence for users.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, oops.Code("SQLITE_OPEN_FAILED").With("path", path).Wrap(err)
	}

	// SQLite allows one writer; a single connection serializes access.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, oops.Code("SQLITE_PRAGMA_FAILED").With("pragma", pragma).Wrap(err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, oops.Code("SQLITE_SCHEMA_FAILED").Wrap(err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const userColumns = `id, email, password_hash, is_admin, created_at`

var listQueries = map[storage.OrderBy]string{
	storage.OrderByIDDesc:      `SELECT ` + userColumns + ` FROM users ORDER BY id DESC`,
	storage.OrderByIDAsc:       `SELECT ` + userColumns + ` FROM users ORDER BY id ASC`,
	storage.OrderByEmailAsc:    `SELECT ` + userColumns + ` FROM users ORDER BY email COLLATE NOCASE ASC, id ASC`,
	storage.OrderByCreatedDesc: `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC, id DESC`,
}

// Create inserts a new member row.
func (s *Store) Create(ctx context.Context, email, passwordHash string) (models.User, error) {
	const query = `INSERT INTO users (email, password_hash) VALUES (?, ?) RETURNING ` + userColumns
	user, err := scanUser(s.db.QueryRowContext(ctx, query, email, passwordHash))
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
	return user, nil
}

// FindByEmail fetches a user by email, ignoring case.
func (s *Store) FindByEmail(ctx context.Context, email string) (models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = ? COLLATE NOCASE`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, oops.Code("USER_NOT_FOUND").Wrap(storage.ErrNotFound)
	}
	if err != nil {
		return models.User{}, oops.Code("USER_GET_BY_EMAIL_FAILED").Wrap(err)
	}
	return user, nil
}

// FindByID fetches a user by id.
func (s *Store) FindByID(ctx context.Context, id int64) (models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, oops.Code("USER_NOT_FOUND").With("id", id).Wrap(storage.ErrNotFound)
	}
	if err != nil {
		return models.User{}, oops.Code("USER_GET_BY_ID_FAILED").With("id", id).Wrap(err)
	}
	return user, nil
}

// ExistsByEmail reports whether a user other than excludingID holds email.
func (s *Store) ExistsByEmail(ctx context.Context, email string, excludingID int64) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE email = ? COLLATE NOCASE AND id <> ?)`
	var exists bool
	if err := s.db.QueryRowContext(ctx, query, email, excludingID).Scan(&exists); err != nil {
		return false, oops.Code("USER_EXISTS_CHECK_FAILED").Wrap(err)
	}
	return exists, nil
}

// UpdateEmail changes only the email column.
func (s *Store) UpdateEmail(ctx context.Context, id int64, email string) error {
	return s.exec(ctx, "update email", id, `UPDATE users SET email = ? WHERE id = ?`, email, id)
}

// UpdatePassword changes only the password hash column.
func (s *Store) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	return s.exec(ctx, "update password", id, `UPDATE users SET password_hash = ? WHERE id = ?`, passwordHash, id)
}

// SetAdmin changes only the admin flag.
func (s *Store) SetAdmin(ctx context.Context, id int64, isAdmin bool) error {
	return s.exec(ctx, "set admin", id, `UPDATE users SET is_admin = ? WHERE id = ?`, isAdmin, id)
}

// Update applies every non-nil field of update in one statement.
func (s *Store) Update(ctx context.Context, id int64, update storage.UserUpdate) error {
	if update.IsEmpty() {
		return nil
	}
	const query = `
		UPDATE users SET
			email = COALESCE(?, email),
			password_hash = COALESCE(?, password_hash),
			is_admin = COALESCE(?, is_admin)
		WHERE id = ?`
	return s.exec(ctx, "update user", id, query, update.Email, update.PasswordHash, update.IsAdmin, id)
}

// Delete removes a user row.
func (s *Store) Delete(ctx context.Context, id int64) error {
	return s.exec(ctx, "delete user", id, `DELETE FROM users WHERE id = ?`, id)
}

// List returns every user in the requested order.
func (s *Store) List(ctx context.Context, order storage.OrderBy) ([]models.User, error) {
	query, ok := listQueries[order]
	if !ok {
		query = listQueries[storage.OrderByIDDesc]
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, oops.Code("USER_LIST_FAILED").With("order", order.String()).Wrap(err)
	}
	defer func() { _ = rows.Close() }()

	users := make([]models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, oops.Code("USER_LIST_FAILED").With("operation", "scan user row").Wrap(err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("USER_LIST_FAILED").Wrap(err)
	}
	return users, nil
}

// Count returns the number of user rows.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, oops.Code("USER_COUNT_FAILED").Wrap(err)
	}
	return n, nil
}

func (s *Store) exec(ctx context.Context, operation string, id int64, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("USER_EMAIL_TAKEN").With("operation", operation).With("id", id).Wrap(storage.ErrAlreadyExists)
		}
		return oops.Code("USER_UPDATE_FAILED").With("operation", operation).With("id", id).Wrap(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").With("operation", operation).With("id", id).Wrap(err)
	}
	if affected == 0 {
		return oops.Code("USER_NOT_FOUND").With("id", id).Wrap(storage.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (models.User, error) {
	var (
		user    models.User
		created int64
	)
	if err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.IsAdmin, &created); err != nil {
		return models.User{}, err
	}
	user.CreatedAt = time.Unix(created, 0).UTC()
	return user, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(sqliteErr.Error(), "UNIQUE")
	}
	return false
}
