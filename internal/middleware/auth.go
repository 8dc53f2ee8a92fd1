package middleware

import (
	"net/http"
	"net/url"

	"github.com/dukerupert/fileflow/internal/auth"
	"github.com/dukerupert/fileflow/internal/store"
)

// SessionCookieName holds the login session token.
const SessionCookieName = "fileflow_session"

// LoginPath is where unauthenticated requests are sent.
const LoginPath = "/accounts/login"

// LoadSession attaches the AuthContext of a valid session cookie, if any,
// and always calls next.
func LoadSession(sessionStore *store.SessionStore, userStore *store.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ac, ok := lookupSession(r, sessionStore, userStore); ok {
				r = r.WithContext(auth.WithAuth(r.Context(), ac))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth redirects to the login page unless LoadSession found a user.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.User(r.Context()) == nil {
			redirectToLogin(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func lookupSession(r *http.Request, sessionStore *store.SessionStore, userStore *store.UserStore) (auth.AuthContext, bool) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return auth.AuthContext{}, false
	}

	sess, err := sessionStore.GetByToken(cookie.Value)
	if err != nil || sess == nil {
		return auth.AuthContext{}, false
	}

	user, err := userStore.GetByID(sess.UserID)
	if err != nil || user == nil || !user.IsActive {
		return auth.AuthContext{}, false
	}

	return auth.AuthContext{User: user, SessionID: sess.ID}, true
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	target := LoginPath
	if r.Method == http.MethodGet && r.URL.Path != "/" {
		target += "?next=" + url.QueryEscape(r.URL.RequestURI())
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
