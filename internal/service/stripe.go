package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"
)

var ErrInvalidSignature = errors.New("no signatures found matching the expected signature for payload")

// CheckoutRequest carries everything needed to open a hosted checkout page.
type CheckoutRequest struct {
	OrderID       string
	AmountCents   int64
	ProductName   string
	Description   string
	CustomerName  string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
}

// PaymentLinkRequest describes a reusable hosted payment link.
type PaymentLinkRequest struct {
	OrderID      string
	AmountCents  int64
	ProductName  string
	CustomerName string
	RedirectURL  string
}

// Hosted is a vendor-hosted payment page.
type Hosted struct {
	ID  string
	URL string
}

// PaymentGateway is the subset of the Stripe API the payment flows use.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*Hosted, error)
	CreatePaymentLink(ctx context.Context, req PaymentLinkRequest) (*Hosted, error)
	GetPaymentLink(ctx context.Context, id string) (*stripe.PaymentLink, error)
	GetCheckoutSession(ctx context.Context, id string) (*stripe.CheckoutSession, error)
}

const currencyBRL = "brl"

// StripeClient implements PaymentGateway against the Stripe API.
type StripeClient struct {
	api *client.API
}

func NewStripeClient(secretKey string) *StripeClient {
	return &StripeClient{api: client.New(secretKey, nil)}
}

func (c *StripeClient) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*Hosted, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.OrderID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(currencyBRL),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(req.ProductName),
						Description: stripe.String(req.Description),
					},
					UnitAmount: stripe.Int64(req.AmountCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{
				"order_id":      req.OrderID,
				"customer_name": req.CustomerName,
			},
		},
	}
	params.Context = ctx
	params.AddMetadata("order_id", req.OrderID)
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}

	s, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, err
	}
	return &Hosted{ID: s.ID, URL: s.URL}, nil
}

// CreatePaymentLink creates a one-off price for the order and a payment link
// selling it.
func (c *StripeClient) CreatePaymentLink(ctx context.Context, req PaymentLinkRequest) (*Hosted, error) {
	priceParams := &stripe.PriceParams{
		Currency:   stripe.String(currencyBRL),
		UnitAmount: stripe.Int64(req.AmountCents),
		ProductData: &stripe.PriceProductDataParams{
			Name: stripe.String(req.ProductName),
		},
	}
	priceParams.Context = ctx
	priceParams.AddMetadata("order_id", req.OrderID)

	p, err := c.api.Prices.New(priceParams)
	if err != nil {
		return nil, fmt.Errorf("create price: %w", err)
	}

	params := &stripe.PaymentLinkParams{
		LineItems: []*stripe.PaymentLinkLineItemParams{
			{Price: stripe.String(p.ID), Quantity: stripe.Int64(1)},
		},
		AfterCompletion: &stripe.PaymentLinkAfterCompletionParams{
			Type: stripe.String(string(stripe.PaymentLinkAfterCompletionTypeRedirect)),
			Redirect: &stripe.PaymentLinkAfterCompletionRedirectParams{
				URL: stripe.String(req.RedirectURL),
			},
		},
		AllowPromotionCodes: stripe.Bool(false),
	}
	params.Context = ctx
	params.AddMetadata("order_id", req.OrderID)
	// payment_intent_data.metadata has no typed field in this API version.
	params.AddExtra("payment_intent_data[metadata][order_id]", req.OrderID)
	params.AddExtra("payment_intent_data[metadata][customer_name]", req.CustomerName)

	l, err := c.api.PaymentLinks.New(params)
	if err != nil {
		return nil, err
	}
	return &Hosted{ID: l.ID, URL: l.URL}, nil
}

func (c *StripeClient) GetPaymentLink(ctx context.Context, id string) (*stripe.PaymentLink, error) {
	params := &stripe.PaymentLinkParams{}
	params.Context = ctx
	return c.api.PaymentLinks.Get(id, params)
}

func (c *StripeClient) GetCheckoutSession(ctx context.Context, id string) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("payment_intent")
	return c.api.CheckoutSessions.Get(id, params)
}

// VerifyWebhook checks payload against each secret in turn and returns the
// event for the first one that matches. Trying several secrets lets the
// signing secret be rotated without dropping deliveries.
func VerifyWebhook(payload []byte, sigHeader string, secrets []string) (stripe.Event, error) {
	lastErr := ErrInvalidSignature
	for _, secret := range secrets {
		evt, err := webhook.ConstructEventWithOptions(payload, sigHeader, secret, webhook.ConstructEventOptions{
			Tolerance:                webhook.DefaultTolerance,
			IgnoreAPIVersionMismatch: true,
		})
		if err == nil {
			return evt, nil
		}
		lastErr = err
	}
	return stripe.Event{}, lastErr
}
