// Package stripe implements payment.Processor on top of the Stripe API.
package stripe

import (
	"context"
	"fmt"
	"strings"

	stripe "github.com/stripe/stripe-go/v82"
	checksession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/price"
	"github.com/stripe/stripe-go/v82/product"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/dukerupert/fileflow/internal/model"
	"github.com/dukerupert/fileflow/internal/payment"
)

type Config struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
}

type Client struct {
	cfg Config
}

func NewClient(cfg Config) *Client {
	stripe.Key = cfg.SecretKey
	if cfg.Currency == "" {
		cfg.Currency = string(stripe.CurrencyUSD)
	}
	cfg.Currency = strings.ToLower(cfg.Currency)
	return &Client{cfg: cfg}
}

// CreateCheckoutSession creates a one-off payment session with inline price data.
func (c *Client) CreateCheckoutSession(ctx context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(c.cfg.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Plan.Name),
					},
					UnitAmount: stripe.Int64(req.Plan.PriceCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	sess, err := checksession.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return toSession(sess), nil
}

func (c *Client) GetCheckoutSession(ctx context.Context, id string) (*payment.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := checksession.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("retrieve checkout session: %w", err)
	}
	return toSession(sess), nil
}

// CreateRecurringPrice creates a product and a monthly price for plan and
// returns the price ID.
func (c *Client) CreateRecurringPrice(ctx context.Context, plan model.SubscriptionPlan) (string, error) {
	prodParams := &stripe.ProductParams{
		Name: stripe.String(plan.Name),
	}
	if plan.Description != "" {
		prodParams.Description = stripe.String(plan.Description)
	}
	prodParams.Context = ctx
	prod, err := product.New(prodParams)
	if err != nil {
		return "", fmt.Errorf("create stripe product: %w", err)
	}

	priceParams := &stripe.PriceParams{
		Product:    stripe.String(prod.ID),
		UnitAmount: stripe.Int64(plan.PriceCents),
		Currency:   stripe.String(c.cfg.Currency),
		Recurring: &stripe.PriceRecurringParams{
			Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
		},
	}
	priceParams.Context = ctx
	pr, err := price.New(priceParams)
	if err != nil {
		return "", fmt.Errorf("create stripe price: %w", err)
	}
	return pr.ID, nil
}

// VerifyWebhook verifies the signature and returns the parsed event.
func (c *Client) VerifyWebhook(payload []byte, signature string) (payment.WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, c.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return payment.WebhookEvent{}, fmt.Errorf("%w: %v", payment.ErrInvalidWebhook, err)
	}
	return payment.WebhookEvent{ID: event.ID, Type: string(event.Type)}, nil
}

func toSession(s *stripe.CheckoutSession) *payment.CheckoutSession {
	out := &payment.CheckoutSession{
		ID:       s.ID,
		URL:      s.URL,
		Paid:     s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		Metadata: s.Metadata,
	}
	if s.Subscription != nil {
		out.SubscriptionID = s.Subscription.ID
	}
	return out
}
