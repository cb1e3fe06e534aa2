// Package session holds the per-request authentication context and the
// machinery that loads it from, and commits it back to, a session store.
package session

// Data is the persisted part of a session.
type Data struct {
	UserID  int64             `json:"user_id,omitempty"`
	Email   string            `json:"email,omitempty"`
	IsAdmin bool              `json:"is_admin,omitempty"`
	Flash   map[string]string `json:"flash,omitempty"`
}

// Empty reports whether the data carries neither identity nor flashes.
func (d Data) Empty() bool {
	return d.UserID == 0 && len(d.Flash) == 0
}

// clone returns a copy that shares no map with d.
func (d Data) clone() Data {
	if d.Flash != nil {
		flash := make(map[string]string, len(d.Flash))
		for k, v := range d.Flash {
			flash[k] = v
		}
		d.Flash = flash
	}
	return d
}

// Session is the authentication context of one request. It is not safe for
// concurrent use; each request owns its own Session.
type Session struct {
	id        string
	data      Data
	renew     bool
	destroyed bool
	modified  bool

	// stale marks a request whose cookie no longer maps to a live session.
	stale bool
}

// New returns an anonymous session with no identifier.
func New() *Session {
	return &Session{}
}

func loaded(id string, data Data) *Session {
	return &Session{id: id, data: data}
}

// ID returns the current session identifier, empty for a fresh session.
func (s *Session) ID() string {
	return s.id
}

// Login records the authenticated identity. The email and admin flag are
// snapshots and are not refreshed until the next login.
func (s *Session) Login(userID int64, email string, isAdmin bool) {
	s.data.UserID = userID
	s.data.Email = email
	s.data.IsAdmin = isAdmin
	s.modified = true
}

// Renew requests a fresh identifier at commit; the previous one is dropped.
func (s *Session) Renew() {
	s.renew = true
	s.modified = true
}

// Logout clears all state and invalidates the current identifier.
func (s *Session) Logout() {
	s.data = Data{}
	s.destroyed = true
	s.modified = true
}

// IsAuthenticated reports whether a user is logged in.
func (s *Session) IsAuthenticated() bool {
	return s.data.UserID > 0
}

// IsAdmin reports the admin snapshot; false when anonymous.
func (s *Session) IsAdmin() bool {
	return s.IsAuthenticated() && s.data.IsAdmin
}

// CurrentUserID returns the logged in user's id.
func (s *Session) CurrentUserID() (int64, bool) {
	if !s.IsAuthenticated() {
		return 0, false
	}
	return s.data.UserID, true
}

// CurrentEmail returns the email snapshot.
func (s *Session) CurrentEmail() (string, bool) {
	if !s.IsAuthenticated() {
		return "", false
	}
	return s.data.Email, true
}

// UpdateEmail refreshes the email snapshot after a self-service change.
func (s *Session) UpdateEmail(email string) {
	if !s.IsAuthenticated() {
		return
	}
	s.data.Email = email
	s.modified = true
}

// SetFlash stores a message for exactly one later read.
func (s *Session) SetFlash(key, message string) {
	if s.data.Flash == nil {
		s.data.Flash = make(map[string]string)
	}
	s.data.Flash[key] = message
	s.modified = true
}

// TakeFlash returns and removes the message stored under key.
func (s *Session) TakeFlash(key string) (string, bool) {
	message, ok := s.data.Flash[key]
	if !ok {
		return "", false
	}
	delete(s.data.Flash, key)
	if len(s.data.Flash) == 0 {
		s.data.Flash = nil
	}
	s.modified = true
	return message, true
}

// TakeFlashes returns and removes every pending message.
func (s *Session) TakeFlashes() map[string]string {
	if len(s.data.Flash) == 0 {
		return map[string]string{}
	}
	out := s.data.Flash
	s.data.Flash = nil
	s.modified = true
	return out
}

func (s *Session) reset() {
	s.renew = false
	s.destroyed = false
	s.modified = false
	s.stale = false
}

// Data returns a copy of the session's persisted state.
func (s *Session) Data() Data {
	return s.data.clone()
}
