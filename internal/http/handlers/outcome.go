package handlers

import (
	"net/http"

	"github.com/hongminglow/userauth/internal/auth"
	"github.com/hongminglow/userauth/internal/http/respond"
	"github.com/hongminglow/userauth/internal/models/dto"
	"github.com/hongminglow/userauth/internal/session"
)

var kindStatus = map[auth.Kind]int{
	auth.KindValidation:     http.StatusBadRequest,
	auth.KindAuthentication: http.StatusUnauthorized,
	auth.KindAuthorization:  http.StatusForbidden,
	auth.KindNotFound:       http.StatusNotFound,
	auth.KindConflict:       http.StatusConflict,
	auth.KindStorage:        http.StatusInternalServerError,
	auth.KindRefused:        http.StatusForbidden,
}

func statusFor(kind auth.Kind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// writeOutcome renders an operation outcome. Successful outcomes carrying a
// user include its public view.
func writeOutcome(w http.ResponseWriter, successStatus int, out auth.Outcome) {
	if !out.Success {
		respond.Error(w, statusFor(out.Kind), out.Message)
		return
	}
	if out.User != nil {
		respond.JSON(w, successStatus, out.Message, dto.NewUserView(*out.User))
		return
	}
	respond.JSON(w, successStatus, out.Message, nil)
}

// sessionFrom returns the request's session, or a throwaway anonymous one.
func sessionFrom(r *http.Request) *session.Session {
	if s, ok := session.FromContext(r.Context()); ok {
		return s
	}
	return session.New()
}
