package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/stripe/stripe-go/v74"

	"fastpay/internal/model"
	"fastpay/internal/money"
)

var (
	ErrStripeNotConfigured        = errors.New("STRIPE_SECRET_KEY not configured")
	ErrWebhookSecretNotConfigured = errors.New("STRIPE_WEBHOOK_SECRET not configured")
	ErrDatabaseNotConfigured      = errors.New("database not configured")
	ErrOrderAndAmountRequired     = errors.New("orderId and amount are required")
	ErrSessionIDRequired          = errors.New("sessionId is required")
	ErrOrderIDNotInSession        = errors.New("order_id not found in checkout session")
)

const (
	EventPaymentIntentSucceeded        = "payment_intent.succeeded"
	EventCheckoutCompleted             = "checkout.session.completed"
	EventCheckoutAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	EventChargeRefunded                = "charge.refunded"
)

// OrderStore is the persistence the payment flows need.
type OrderStore interface {
	PaymentState(ctx context.Context, orderID string) (*model.PaymentState, error)
	UpdatePayment(ctx context.Context, orderID string, upd model.PaymentUpdate) error
	MarkRefunded(ctx context.Context, orderID string) error
}

// PaymentOptions configures hosted-page URLs and labels.
type PaymentOptions struct {
	StoreName      string
	SuccessURL     string
	CancelURL      string
	WhatsAppNumber string
	WebhookSecrets []string
}

// EventObserver is notified of every processed webhook event outcome.
type EventObserver func(eventType, outcome string)

type PaymentService struct {
	gateway PaymentGateway
	orders  OrderStore
	opts    PaymentOptions
	observe EventObserver
}

// NewPaymentService wires the payment flows. gateway and orders may be nil
// when the corresponding vendor is not configured; the affected operations
// then fail with a configuration error.
func NewPaymentService(gateway PaymentGateway, orders OrderStore, opts PaymentOptions) *PaymentService {
	if opts.StoreName == "" {
		opts.StoreName = "Fast Savory's"
	}
	return &PaymentService{
		gateway: gateway,
		orders:  orders,
		opts:    opts,
		observe: func(string, string) {},
	}
}

// OnEvent registers an observer for webhook outcomes.
func (s *PaymentService) OnEvent(fn EventObserver) {
	if fn != nil {
		s.observe = fn
	}
}

func (s *PaymentService) StripeConfigured() bool   { return s.gateway != nil }
func (s *PaymentService) DatabaseConfigured() bool { return s.orders != nil }
func (s *PaymentService) WebhookConfigured() bool  { return len(s.opts.WebhookSecrets) > 0 }

// IntakeRequest is the storefront's request to start a payment.
type IntakeRequest struct {
	OrderID       model.ID `json:"orderId"`
	Amount        float64  `json:"amount"`
	CustomerEmail string   `json:"customerEmail,omitempty"`
	CustomerName  string   `json:"customerName,omitempty"`
}

func (r IntakeRequest) validate() error {
	if strings.TrimSpace(r.OrderID.String()) == "" || r.Amount == 0 {
		return ErrOrderAndAmountRequired
	}
	return nil
}

func (r IntakeRequest) customerName() string {
	if r.CustomerName == "" {
		return "Cliente"
	}
	return r.CustomerName
}

func (s *PaymentService) productName(orderID string) string {
	return fmt.Sprintf("Pedido %s #%s", s.opts.StoreName, orderID)
}

func (s *PaymentService) CreateCheckoutSession(ctx context.Context, req IntakeRequest) (*Hosted, error) {
	if s.gateway == nil {
		return nil, ErrStripeNotConfigured
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	orderID := req.OrderID.String()

	slog.Info("creating checkout session", "order", orderID, "amount", req.Amount)

	return s.gateway.CreateCheckoutSession(ctx, CheckoutRequest{
		OrderID:       orderID,
		AmountCents:   money.ToMinor(req.Amount),
		ProductName:   s.productName(orderID),
		Description:   "Pedido para " + req.customerName(),
		CustomerName:  req.customerName(),
		CustomerEmail: req.CustomerEmail,
		SuccessURL:    s.opts.SuccessURL,
		CancelURL:     CancelURL(s.opts.CancelURL, orderID),
	})
}

func (s *PaymentService) CreatePaymentLink(ctx context.Context, req IntakeRequest) (*Hosted, error) {
	if s.gateway == nil {
		return nil, ErrStripeNotConfigured
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	orderID := req.OrderID.String()

	slog.Info("creating payment link", "order", orderID, "amount", req.Amount)

	link, err := s.gateway.CreatePaymentLink(ctx, PaymentLinkRequest{
		OrderID:      orderID,
		AmountCents:  money.ToMinor(req.Amount),
		ProductName:  s.productName(orderID),
		CustomerName: req.customerName(),
		RedirectURL:  WhatsAppURL(s.opts.WhatsAppNumber, "Ola! Paguei o pedido #"+orderID),
	})
	if err != nil {
		return nil, err
	}
	slog.Info("payment link created", "order", orderID, "url", link.URL)
	return link, nil
}

func (s *PaymentService) GetPaymentLink(ctx context.Context, id string) (*stripe.PaymentLink, error) {
	if s.gateway == nil {
		return nil, ErrStripeNotConfigured
	}
	return s.gateway.GetPaymentLink(ctx, id)
}

// CancelURL fills the order id into the cancel URL template. The template
// may carry an {ORDER_ID} or {order_id} placeholder or end in "order_id=";
// otherwise the parameter is appended.
func CancelURL(template, orderID string) string {
	esc := url.QueryEscape(orderID)
	switch {
	case strings.Contains(template, "{ORDER_ID}"):
		return strings.Replace(template, "{ORDER_ID}", esc, 1)
	case strings.Contains(template, "{order_id}"):
		return strings.Replace(template, "{order_id}", esc, 1)
	case strings.HasSuffix(template, "order_id="):
		return template + esc
	case strings.Contains(template, "?"):
		return template + "&order_id=" + esc
	}
	return template + "?order_id=" + esc
}

// WhatsAppURL builds a wa.me deep link with a pre-filled message.
func WhatsAppURL(number, text string) string {
	return "https://wa.me/" + number + "?text=" + url.PathEscape(text)
}

// Event is a verified webhook event.
type Event struct {
	ID   string
	Type string
	Raw  json.RawMessage
}

// VerifyEvent authenticates a raw webhook delivery.
func (s *PaymentService) VerifyEvent(payload []byte, sigHeader string) (*Event, error) {
	evt, err := VerifyWebhook(payload, sigHeader, s.opts.WebhookSecrets)
	if err != nil {
		return nil, err
	}
	e := &Event{ID: evt.ID, Type: string(evt.Type)}
	if evt.Data != nil {
		e.Raw = evt.Data.Raw
	}
	return e, nil
}

// HandleEvent applies a verified event to the order it references. Events
// without an order id and unknown event types are ignored. Replaying an
// event recomputes the same state.
func (s *PaymentService) HandleEvent(ctx context.Context, evt *Event) error {
	if s.orders == nil {
		return ErrDatabaseNotConfigured
	}

	slog.Info("webhook received", "type", evt.Type, "id", evt.ID)

	var err error
	outcome := "applied"
	switch evt.Type {
	case EventPaymentIntentSucceeded:
		var pi stripe.PaymentIntent
		if err = json.Unmarshal(evt.Raw, &pi); err != nil {
			return fmt.Errorf("decode payment intent: %w", err)
		}
		orderID := pi.Metadata["order_id"]
		if orderID == "" {
			slog.Warn("payment_intent.succeeded without metadata.order_id; ignoring", "id", evt.ID)
			outcome = "ignored"
			break
		}
		_, err = s.applyPayment(ctx, orderID, money.FromMinor(pi.AmountReceived), pi.ID)

	case EventCheckoutCompleted, EventCheckoutAsyncPaymentSucceeded:
		var cs stripe.CheckoutSession
		if err = json.Unmarshal(evt.Raw, &cs); err != nil {
			return fmt.Errorf("decode checkout session: %w", err)
		}
		orderID := cs.Metadata["order_id"]
		if orderID == "" {
			orderID = cs.ClientReferenceID
		}
		if orderID == "" {
			slog.Warn("checkout session without order id; ignoring", "id", evt.ID)
			outcome = "ignored"
			break
		}
		_, err = s.applyPayment(ctx, orderID, money.FromMinor(cs.AmountTotal), sessionReference(&cs))

	case EventChargeRefunded:
		var ch stripe.Charge
		if err = json.Unmarshal(evt.Raw, &ch); err != nil {
			return fmt.Errorf("decode charge: %w", err)
		}
		orderID := ch.Metadata["order_id"]
		if orderID == "" {
			slog.Warn("charge.refunded without metadata.order_id; ignoring", "id", evt.ID)
			outcome = "ignored"
			break
		}
		if err = s.orders.MarkRefunded(ctx, orderID); err == nil {
			slog.Info("order marked as refunded", "order", orderID)
		}

	default:
		outcome = "ignored"
	}

	if err != nil {
		s.observe(evt.Type, "failed")
		return err
	}
	s.observe(evt.Type, outcome)
	return nil
}

// applyPayment classifies amountPaid against the stored total and persists
// the result.
func (s *PaymentService) applyPayment(ctx context.Context, orderID string, amountPaid float64, reference string) (model.PaymentStatus, error) {
	state, err := s.orders.PaymentState(ctx, orderID)
	if err != nil {
		return "", err
	}

	status := money.Classify(amountPaid, state.Total)
	err = s.orders.UpdatePayment(ctx, orderID, model.PaymentUpdate{
		PaymentStatus:   status,
		AmountPaid:      amountPaid,
		StripePaymentID: reference,
	})
	if err != nil {
		return "", err
	}

	slog.Info("order updated", "order", orderID, "status", status, "amount_paid", amountPaid)
	return status, nil
}

func sessionReference(cs *stripe.CheckoutSession) string {
	if cs.PaymentIntent != nil && cs.PaymentIntent.ID != "" {
		return cs.PaymentIntent.ID
	}
	return cs.ID
}

// SyncResult reports an order's payment state after a sync.
type SyncResult struct {
	OrderID       string              `json:"orderId"`
	PaymentStatus model.PaymentStatus `json:"payment_status"`
	AmountPaid    float64             `json:"amount_paid"`
}

// SyncCheckoutSession re-reads a checkout session from Stripe and applies it
// when it is paid. Unpaid sessions leave the stored order untouched, so a
// sync never moves an order back to awaiting payment.
func (s *PaymentService) SyncCheckoutSession(ctx context.Context, sessionID string) (*SyncResult, error) {
	if s.gateway == nil {
		return nil, ErrStripeNotConfigured
	}
	if s.orders == nil {
		return nil, ErrDatabaseNotConfigured
	}
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrSessionIDRequired
	}

	cs, err := s.gateway.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("retrieve session: %w", err)
	}

	orderID := cs.Metadata["order_id"]
	if orderID == "" {
		orderID = cs.ClientReferenceID
	}
	if orderID == "" && cs.PaymentIntent != nil {
		orderID = cs.PaymentIntent.Metadata["order_id"]
	}
	if orderID == "" {
		return nil, ErrOrderIDNotInSession
	}

	res := &SyncResult{OrderID: orderID}

	if cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid {
		amountPaid := money.FromMinor(cs.AmountTotal)
		status, err := s.applyPayment(ctx, orderID, amountPaid, sessionReference(cs))
		if err != nil {
			return nil, err
		}
		res.PaymentStatus = status
		res.AmountPaid = amountPaid
	} else {
		state, err := s.orders.PaymentState(ctx, orderID)
		if err != nil {
			return nil, err
		}
		res.PaymentStatus = state.PaymentStatus
		res.AmountPaid = state.AmountPaid
	}

	slog.Info("checkout synced", "session", sessionID, "order", orderID, "status", res.PaymentStatus)
	return res, nil
}
