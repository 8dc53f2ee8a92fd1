package payment

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/fileflow/internal/database"
	"github.com/dukerupert/fileflow/internal/entitlement"
	"github.com/dukerupert/fileflow/internal/model"
	"github.com/dukerupert/fileflow/internal/store"
)

type fakeProcessor struct {
	sessions  map[string]*CheckoutSession
	created   []CheckoutRequest
	createErr error
	prices    int
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{sessions: make(map[string]*CheckoutSession)}
}

func (f *fakeProcessor) CreateCheckoutSession(_ context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, req)
	id := "cs_test_" + req.Metadata[MetaUserID]
	sess := &CheckoutSession{ID: id, URL: "https://checkout.example/" + id, Metadata: req.Metadata}
	f.sessions[id] = sess
	return sess, nil
}

func (f *fakeProcessor) GetCheckoutSession(_ context.Context, id string) (*CheckoutSession, error) {
	sess, ok := f.sessions[id]
	if !ok {
		return nil, errors.New("no such checkout session")
	}
	return sess, nil
}

func (f *fakeProcessor) CreateRecurringPrice(_ context.Context, plan model.SubscriptionPlan) (string, error) {
	f.prices++
	return "price_" + plan.Name, nil
}

func (f *fakeProcessor) VerifyWebhook(payload []byte, signature string) (WebhookEvent, error) {
	if signature != "ok" {
		return WebhookEvent{}, ErrInvalidWebhook
	}
	return WebhookEvent{ID: "evt_1", Type: "ping"}, nil
}

type testEnv struct {
	svc   *Service
	proc  *fakeProcessor
	users *store.UserStore
	plans *store.PlanStore
	subs  *store.SubscriptionStore
	user  *model.User
	plan  *model.SubscriptionPlan
}

func setupTest(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	env := &testEnv{
		proc:  newFakeProcessor(),
		users: store.NewUserStore(db),
		plans: store.NewPlanStore(db),
		subs:  store.NewSubscriptionStore(db),
	}
	env.svc = NewService(env.plans, env.subs, env.users, entitlement.NewResolver(env.subs), env.proc, slog.New(slog.DiscardHandler))

	env.user, err = env.users.Create(store.CreateUserParams{Email: "alice@example.com", Username: "alice", PasswordHash: "x"})
	require.NoError(t, err)
	env.plan, err = env.plans.Create(&model.SubscriptionPlan{Name: "Basic Subscription", PriceCents: 500, DurationDays: 30, IsActive: true})
	require.NoError(t, err)
	return env
}

func TestStartCheckout(t *testing.T) {
	env := setupTest(t)

	url, err := env.svc.StartCheckout(context.Background(), env.user, env.plan.ID, "https://app/success", "https://app/cancel")
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example/cs_test_1", url)

	require.Len(t, env.proc.created, 1)
	req := env.proc.created[0]
	assert.Equal(t, int64(500), req.Plan.PriceCents)
	assert.Equal(t, "1", req.Metadata[MetaUserID])
	assert.Equal(t, "1", req.Metadata[MetaPlanID])
	assert.Equal(t, "alice@example.com", req.CustomerEmail)
}

func TestStartCheckoutUnknownPlan(t *testing.T) {
	env := setupTest(t)
	inactive, _ := env.plans.Create(&model.SubscriptionPlan{Name: "Old", PriceCents: 100, DurationDays: 7})

	_, err := env.svc.StartCheckout(context.Background(), env.user, 999, "s", "c")
	assert.ErrorIs(t, err, ErrPlanNotFound)
	_, err = env.svc.StartCheckout(context.Background(), env.user, inactive.ID, "s", "c")
	assert.ErrorIs(t, err, ErrPlanNotFound)
	assert.Empty(t, env.proc.created)
}

func TestStartCheckoutAlreadySubscribed(t *testing.T) {
	env := setupTest(t)
	_, err := env.subs.Create(store.CreateSubscriptionParams{UserID: env.user.ID, PlanID: env.plan.ID})
	require.NoError(t, err)

	_, err = env.svc.StartCheckout(context.Background(), env.user, env.plan.ID, "s", "c")
	assert.ErrorIs(t, err, ErrAlreadySubscribed)
	assert.Empty(t, env.proc.created)
}

func TestStartCheckoutIgnoresPlanFlag(t *testing.T) {
	env := setupTest(t)
	require.NoError(t, env.users.SetPlan(env.user.ID, model.PlanPremium))
	user, _ := env.users.GetByID(env.user.ID)

	_, err := env.svc.StartCheckout(context.Background(), user, env.plan.ID, "s", "c")
	assert.NoError(t, err)
}

func TestStartCheckoutProcessorError(t *testing.T) {
	env := setupTest(t)
	env.proc.createErr = errors.New("stripe unavailable")

	_, err := env.svc.StartCheckout(context.Background(), env.user, env.plan.ID, "s", "c")
	assert.Error(t, err)
}

func TestConfirmPaymentPaid(t *testing.T) {
	env := setupTest(t)
	now := time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)
	env.svc.now = func() time.Time { return now }
	env.proc.sessions["cs_paid"] = &CheckoutSession{
		ID: "cs_paid", Paid: true,
		Metadata: map[string]string{MetaUserID: "1", MetaPlanID: "1"},
	}

	sub, err := env.svc.ConfirmPayment(context.Background(), "cs_paid")
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionStatusActive, sub.Status)
	assert.True(t, sub.IsActive)
	assert.Equal(t, "cs_paid", sub.StripeSessionID)
	assert.True(t, sub.EndDate.Equal(now.AddDate(0, 0, 30)), "end_date = %v", sub.EndDate)

	user, _ := env.users.GetByID(env.user.ID)
	assert.Equal(t, model.PlanPremium, user.Plan)
}

func TestConfirmPaymentTwiceCreatesTwoRows(t *testing.T) {
	env := setupTest(t)
	env.proc.sessions["cs_paid"] = &CheckoutSession{
		ID: "cs_paid", Paid: true,
		Metadata: map[string]string{MetaUserID: "1", MetaPlanID: "1"},
	}

	var logs bytes.Buffer
	env.svc.logger = slog.New(slog.NewTextHandler(&logs, nil))

	first, err := env.svc.ConfirmPayment(context.Background(), "cs_paid")
	require.NoError(t, err)
	assert.NotContains(t, logs.String(), "already confirmed")

	second, err := env.svc.ConfirmPayment(context.Background(), "cs_paid")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Contains(t, logs.String(), "checkout session already confirmed")
	assert.Contains(t, logs.String(), "prior_subscriptions=1")

	n, err := env.subs.CountBySession("cs_paid")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestHistoryNewestFirst(t *testing.T) {
	env := setupTest(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"cs_old", "cs_new"} {
		env.proc.sessions[id] = &CheckoutSession{
			ID: id, Paid: true,
			Metadata: map[string]string{MetaUserID: "1", MetaPlanID: "1"},
		}
		at := base.AddDate(0, i, 0)
		env.svc.now = func() time.Time { return at }
		_, err := env.svc.ConfirmPayment(context.Background(), id)
		require.NoError(t, err)
	}

	history, err := env.svc.History(env.user)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "cs_new", history[0].StripeSessionID)
	assert.Equal(t, "cs_old", history[1].StripeSessionID)
}

func TestConfirmPaymentUnpaid(t *testing.T) {
	env := setupTest(t)
	env.proc.sessions["cs_open"] = &CheckoutSession{
		ID: "cs_open", Metadata: map[string]string{MetaUserID: "1", MetaPlanID: "1"},
	}

	_, err := env.svc.ConfirmPayment(context.Background(), "cs_open")
	assert.ErrorIs(t, err, ErrNotPaid)

	subs, _ := env.subs.ListByUser(env.user.ID)
	assert.Empty(t, subs)
	user, _ := env.users.GetByID(env.user.ID)
	assert.Equal(t, model.PlanNone, user.Plan)
}

func TestConfirmPaymentErrors(t *testing.T) {
	env := setupTest(t)
	env.proc.sessions["cs_bad"] = &CheckoutSession{ID: "cs_bad", Paid: true, Metadata: map[string]string{MetaUserID: "x"}}
	env.proc.sessions["cs_ghost"] = &CheckoutSession{ID: "cs_ghost", Paid: true, Metadata: map[string]string{MetaUserID: "42", MetaPlanID: "1"}}
	ctx := context.Background()

	_, err := env.svc.ConfirmPayment(ctx, "")
	assert.ErrorIs(t, err, ErrNoSession)
	_, err = env.svc.ConfirmPayment(ctx, "cs_missing")
	assert.Error(t, err)
	_, err = env.svc.ConfirmPayment(ctx, "cs_bad")
	assert.ErrorIs(t, err, ErrInvalidMetadata)
	_, err = env.svc.ConfirmPayment(ctx, "cs_ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestSyncPlan(t *testing.T) {
	env := setupTest(t)

	created, err := env.svc.SyncPlan(context.Background(), env.plan)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "price_Basic Subscription", env.plan.StripePriceID)

	stored, _ := env.plans.GetByID(env.plan.ID)
	assert.Equal(t, "price_Basic Subscription", stored.StripePriceID)

	created, err = env.svc.SyncPlan(context.Background(), env.plan)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 1, env.proc.prices)
}
