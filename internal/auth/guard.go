package auth

import (
	"net/http"

	"github.com/hongminglow/userauth/internal/http/respond"
	"github.com/hongminglow/userauth/internal/session"
)

// Decision is a guard verdict. A denied request goes to Redirect.
type Decision struct {
	Allowed  bool
	Redirect string
	Kind     Kind
}

// Guard gates operations on authentication and the admin flag.
type Guard struct {
	LoginPath string
	HomePath  string
}

// NewGuard creates a guard. Empty paths default to /login and /.
func NewGuard(loginPath, homePath string) *Guard {
	if loginPath == "" {
		loginPath = "/login"
	}
	if homePath == "" {
		homePath = "/"
	}
	return &Guard{LoginPath: loginPath, HomePath: homePath}
}

// RequireAuthenticated denies anonymous sessions, leaving a flash that
// explains the redirect to the login page.
func (g *Guard) RequireAuthenticated(sess Session) Decision {
	if sess.IsAuthenticated() {
		return Decision{Allowed: true}
	}
	sess.SetFlash("error", MsgLoginRequired)
	return Decision{Redirect: g.LoginPath, Kind: KindAuthorization}
}

// RequireAdmin enforces RequireAuthenticated first, then silently sends
// non-admins home.
func (g *Guard) RequireAdmin(sess Session) Decision {
	if d := g.RequireAuthenticated(sess); !d.Allowed {
		return d
	}
	if !sess.IsAdmin() {
		return Decision{Redirect: g.HomePath, Kind: KindAuthorization}
	}
	return Decision{Allowed: true}
}

// Authenticated wraps next so it only runs for logged in sessions.
func (g *Guard) Authenticated(next http.Handler) http.Handler {
	return g.wrap(g.RequireAuthenticated, next)
}

// Admin wraps next so it only runs for administrators.
func (g *Guard) Admin(next http.Handler) http.Handler {
	return g.wrap(g.RequireAdmin, next)
}

func (g *Guard) wrap(check func(Session) Decision, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := session.FromContext(r.Context())
		if !ok {
			sess = session.New()
		}
		d := check(sess)
		if !d.Allowed {
			Deny(w, d)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Deny writes the redirect-class response for a denied decision.
func Deny(w http.ResponseWriter, d Decision) {
	w.Header().Set("Location", d.Redirect)
	respond.JSON(w, http.StatusFound, "redirect", map[string]string{"redirect": d.Redirect})
}
