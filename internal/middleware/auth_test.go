package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukerupert/fileflow/internal/auth"
	"github.com/dukerupert/fileflow/internal/database"
	"github.com/dukerupert/fileflow/internal/store"
)

func setupAuthMiddlewareDB(t *testing.T) (*store.SessionStore, *store.UserStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return store.NewSessionStore(db), store.NewUserStore(db)
}

func protected(ss *store.SessionStore, us *store.UserStore, h http.Handler) http.Handler {
	return LoadSession(ss, us)(RequireAuth(h))
}

func TestRequireAuthNoCookie(t *testing.T) {
	ss, us := setupAuthMiddlewareDB(t)

	handler := protected(ss, us, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/file/all", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if loc := rec.Header().Get("Location"); loc != "/accounts/login?next=%2Ffile%2Fall" {
		t.Errorf("Location = %q, want %q", loc, "/accounts/login?next=%2Ffile%2Fall")
	}
}

func TestRequireAuthRootRedirectHasNoNext(t *testing.T) {
	ss, us := setupAuthMiddlewareDB(t)
	handler := protected(ss, us, http.NotFoundHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if loc := rec.Header().Get("Location"); loc != LoginPath {
		t.Errorf("Location = %q, want %q", loc, LoginPath)
	}
}

func TestRequireAuthInvalidToken(t *testing.T) {
	ss, us := setupAuthMiddlewareDB(t)

	handler := protected(ss, us, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "invalid-token"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
}

func TestRequireAuthValidSession(t *testing.T) {
	ss, us := setupAuthMiddlewareDB(t)

	u, _ := us.Create(store.CreateUserParams{Email: "alice@example.com", Username: "alice", PasswordHash: "x"})
	sess, _ := ss.Create(u.ID)

	var gotAC auth.AuthContext
	handler := protected(ss, us, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, ok := auth.FromContext(r.Context())
		if !ok {
			t.Fatal("expected AuthContext in request context")
		}
		gotAC = ac
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: sess.Token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotAC.User == nil || gotAC.User.ID != u.ID {
		t.Errorf("User = %v, want id %d", gotAC.User, u.ID)
	}
	if gotAC.SessionID != sess.ID {
		t.Errorf("SessionID = %d, want %d", gotAC.SessionID, sess.ID)
	}
}

func TestRequireAuthInactiveUser(t *testing.T) {
	ss, us := setupAuthMiddlewareDB(t)

	u, _ := us.Create(store.CreateUserParams{Email: "alice@example.com", Username: "alice", PasswordHash: "x"})
	sess, _ := ss.Create(u.ID)

	handler := protected(ss, us, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: sess.Token})

	if err := us.SetActive(u.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
}

func TestLoadSessionAnonymousPassesThrough(t *testing.T) {
	ss, us := setupAuthMiddlewareDB(t)

	reached := false
	handler := LoadSession(ss, us)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		if auth.User(r.Context()) != nil {
			t.Error("expected anonymous request")
		}
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/accounts/login", nil))
	if !reached {
		t.Error("expected handler to run")
	}
}
