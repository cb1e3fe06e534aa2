package auth

import (
	"strings"
	"unicode/utf8"

	"github.com/samber/oops"
	"golang.org/x/crypto/bcrypt"
)

const (
	// MinPasswordLength is counted in characters.
	MinPasswordLength = 8
	// MaxPasswordBytes is the longest input bcrypt accepts.
	MaxPasswordBytes = 72

	specialCharacters = `!@#$%^&*(),.?":{}|<>`
)

// Validation is the result of checking input. It is valid when it holds no errors.
type Validation struct {
	Errors []string
}

// Valid reports whether no rule failed.
func (v Validation) Valid() bool {
	return len(v.Errors) == 0
}

// First returns the first failure message, or "" when valid.
func (v Validation) First() string {
	if len(v.Errors) == 0 {
		return ""
	}
	return v.Errors[0]
}

// Policy validates password strength.
type Policy struct{}

// Validate checks the rules in a fixed order and stops at the first failure.
func (Policy) Validate(password string) Validation {
	if msg := checkPassword("Password", password); msg != "" {
		return Validation{Errors: []string{msg}}
	}
	return Validation{}
}

func checkPassword(field, password string) string {
	switch {
	case password == "":
		return field + " is required."
	case utf8.RuneCountInString(password) < MinPasswordLength:
		return field + " must be at least 8 characters long."
	case !strings.ContainsFunc(password, isASCIIUpper):
		return field + " must contain at least one uppercase letter."
	case !strings.ContainsAny(password, specialCharacters):
		return field + " must contain at least one special character."
	case len(password) > MaxPasswordBytes:
		return field + " must be at most 72 bytes long."
	}
	return ""
}

func isASCIIUpper(r rune) bool {
	return r >= 'A' && r <= 'Z'
}

// PasswordHasher computes and verifies irreversible password hashes.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// BcryptHasher hashes passwords with bcrypt. Every hash carries a fresh salt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a hasher using cost, or bcrypt.DefaultCost when cost
// is out of range.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash returns the bcrypt hash of password.
func (h *BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", oops.Code("PASSWORD_EMPTY").Errorf("password cannot be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", oops.Code("PASSWORD_HASH_FAILED").Wrap(err)
	}
	return string(hash), nil
}

// Verify reports whether password matches hash. A malformed hash never matches.
func (h *BcryptHasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
