package auth

import (
	"net/mail"
	"strings"
)

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validator accumulates field errors in the order checks are made. Each
// check stops at its own first failure.
type Validator struct {
	errors []string
}

// Email requires a bare, well-formed address.
func (v *Validator) Email(email string) *Validator {
	switch {
	case email == "":
		v.add("Email is required.")
	case !validEmail(email):
		v.add("Invalid email format.")
	}
	return v
}

// Password applies the password policy.
func (v *Validator) Password(password string) *Validator {
	if msg := checkPassword("Password", password); msg != "" {
		v.add(msg)
	}
	return v
}

// Match requires the confirmation to equal the password.
func (v *Validator) Match(password, confirm string) *Validator {
	if password != confirm {
		v.add("Passwords do not match.")
	}
	return v
}

// Required requires a non-empty value.
func (v *Validator) Required(value, field string) *Validator {
	if value == "" {
		v.add(field + " is required.")
	}
	return v
}

// Result returns the accumulated outcome.
func (v *Validator) Result() Validation {
	return Validation{Errors: append([]string(nil), v.errors...)}
}

func (v *Validator) add(msg string) {
	v.errors = append(v.errors, msg)
}

func validEmail(email string) bool {
	if strings.ContainsAny(email, " \t\r\n") {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return false
	}
	at := strings.LastIndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return false
	}
	domain := email[at+1:]
	return strings.Contains(domain, ".") &&
		!strings.HasPrefix(domain, ".") &&
		!strings.HasSuffix(domain, ".") &&
		!strings.Contains(domain, "..")
}
