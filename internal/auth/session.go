package auth

// Session is the per-request authentication context the service reads and
// mutates. Email and admin flag are snapshots taken at login.
type Session interface {
	Login(userID int64, email string, isAdmin bool)
	Renew()
	Logout()
	IsAuthenticated() bool
	IsAdmin() bool
	CurrentUserID() (int64, bool)
	CurrentEmail() (string, bool)
	UpdateEmail(email string)
	SetFlash(key, message string)
}
