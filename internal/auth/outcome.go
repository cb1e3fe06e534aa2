package auth

import "github.com/hongminglow/userauth/internal/models"

// Kind classifies why an operation failed.
type Kind int

const (
	KindNone Kind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindConflict
	KindStorage
	// KindRefused marks a self-protection refusal.
	KindRefused
)

var kindNames = map[Kind]string{
	KindNone:           "success",
	KindValidation:     "validation",
	KindAuthentication: "authentication",
	KindAuthorization:  "authorization",
	KindNotFound:       "not_found",
	KindConflict:       "conflict",
	KindStorage:        "storage",
	KindRefused:        "refused",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Outcome is the result of a core operation: a success flag and one
// human-readable message. Expected failures are reported here, not as errors.
type Outcome struct {
	Success bool
	Message string
	Kind    Kind
	// User is set on success by operations that produce a user. It never
	// carries a password hash.
	User *models.User
}

// Succeeded builds a successful outcome.
func Succeeded(message string, user *models.User) Outcome {
	if user != nil {
		public := user.Public()
		user = &public
	}
	return Outcome{Success: true, Message: message, Kind: KindNone, User: user}
}

// Failed builds a failed outcome.
func Failed(kind Kind, message string) Outcome {
	return Outcome{Message: message, Kind: kind}
}

// Recorder observes operation outcomes, e.g. for metrics.
type Recorder interface {
	RecordOutcome(operation, result string)
}

type nopRecorder struct{}

func (nopRecorder) RecordOutcome(string, string) {}
