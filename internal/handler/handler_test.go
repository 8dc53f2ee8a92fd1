package handler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/dukerupert/fileflow/internal/access"
	"github.com/dukerupert/fileflow/internal/auth"
	"github.com/dukerupert/fileflow/internal/blob"
	"github.com/dukerupert/fileflow/internal/database"
	"github.com/dukerupert/fileflow/internal/entitlement"
	"github.com/dukerupert/fileflow/internal/flash"
	"github.com/dukerupert/fileflow/internal/metrics"
	"github.com/dukerupert/fileflow/internal/model"
	"github.com/dukerupert/fileflow/internal/password"
	"github.com/dukerupert/fileflow/internal/payment"
	"github.com/dukerupert/fileflow/internal/store"
	"github.com/dukerupert/fileflow/internal/upload"
	"github.com/dukerupert/fileflow/internal/web"
)

type fakeProcessor struct {
	sessions map[string]*payment.CheckoutSession
	fail     bool
}

func (f *fakeProcessor) CreateCheckoutSession(_ context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error) {
	if f.fail {
		return nil, errors.New("processor unavailable")
	}
	id := "cs_test_" + req.Metadata[payment.MetaUserID]
	sess := &payment.CheckoutSession{ID: id, URL: "https://checkout.example/" + id, Metadata: req.Metadata}
	f.sessions[id] = sess
	return sess, nil
}

func (f *fakeProcessor) GetCheckoutSession(_ context.Context, id string) (*payment.CheckoutSession, error) {
	sess, ok := f.sessions[id]
	if !ok {
		return nil, errors.New("no such checkout session")
	}
	return sess, nil
}

func (f *fakeProcessor) CreateRecurringPrice(_ context.Context, plan model.SubscriptionPlan) (string, error) {
	return "price_" + plan.Name, nil
}

func (f *fakeProcessor) VerifyWebhook(_ []byte, signature string) (payment.WebhookEvent, error) {
	if signature != "valid" {
		return payment.WebhookEvent{}, payment.ErrInvalidWebhook
	}
	return payment.WebhookEvent{ID: "evt_1", Type: "checkout.session.completed"}, nil
}

type testEnv struct {
	users    *store.UserStore
	sessions *store.SessionStore
	files    *store.FileStore
	plans    *store.PlanStore
	subs     *store.SubscriptionStore
	flash    *flash.Store
	metrics  *metrics.Metrics
	proc     *fakeProcessor

	accounts *AccountHandler
	fileH    *FileHandler
	payments *PaymentHandler
	webhook  *WebhookHandler
}

func setupTest(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	blobs, err := blob.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("new local blob store: %v", err)
	}
	templates, err := web.Templates()
	if err != nil {
		t.Fatalf("parse templates: %v", err)
	}

	logger := slog.New(slog.DiscardHandler)
	env := &testEnv{
		users:    store.NewUserStore(db),
		sessions: store.NewSessionStore(db),
		files:    store.NewFileStore(db),
		plans:    store.NewPlanStore(db),
		subs:     store.NewSubscriptionStore(db),
		flash:    flash.NewStore([]byte("0123456789abcdef0123456789abcdef"), false, logger),
		metrics:  metrics.New(),
		proc:     &fakeProcessor{sessions: make(map[string]*payment.CheckoutSession)},
	}
	resolver := entitlement.NewResolver(env.subs)
	uploads := upload.NewService(env.files, blobs, resolver, access.Policy{}, logger)
	payments := payment.NewService(env.plans, env.subs, env.users, resolver, env.proc, logger)

	env.accounts = NewAccountHandler(env.users, env.sessions, env.files, resolver, env.metrics, false, templates, env.flash, logger)
	env.fileH = NewFileHandler(uploads, resolver, env.metrics, templates, env.flash, logger)
	env.payments = NewPaymentHandler(payments, env.plans, resolver, env.metrics, "http://localhost:8080/", templates, env.flash, logger)
	env.webhook = NewWebhookHandler(payments, env.metrics, logger)
	return env
}

func (env *testEnv) createUser(t *testing.T, username, pass string) *model.User {
	t.Helper()
	hash, err := password.Hash(pass)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u, err := env.users.Create(store.CreateUserParams{
		Email:        username + "@example.com",
		Username:     username,
		PasswordHash: hash,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

// asUser attaches user to the request context the way LoadSession does.
func asUser(r *http.Request, user *model.User) *http.Request {
	return r.WithContext(auth.WithAuth(r.Context(), auth.AuthContext{User: user}))
}

func formRequest(method, target string, values url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func multipartRequest(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		part, err := mw.CreateFormFile(field, filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		part.Write(content)
	}
	mw.Close()
	req := httptest.NewRequest("POST", "/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// popNotices replays the response cookies and returns the queued notices.
func (env *testEnv) popNotices(t *testing.T, rec *httptest.ResponseRecorder) []flash.Notice {
	t.Helper()
	req := httptest.NewRequest("GET", "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return env.flash.Pop(httptest.NewRecorder(), req)
}

func assertNotice(t *testing.T, notices []flash.Notice, level flash.Level, message string) {
	t.Helper()
	for _, n := range notices {
		if n.Level == level && n.Message == message {
			return
		}
	}
	t.Errorf("notices = %+v, want %s %q", notices, level, message)
}

func assertRedirect(t *testing.T, rec *httptest.ResponseRecorder, location string) {
	t.Helper()
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if got := rec.Header().Get("Location"); got != location {
		t.Errorf("Location = %q, want %q", got, location)
	}
}
