package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"

	"fastpay/internal/config"
	"fastpay/internal/format"
	"fastpay/internal/model"
	"fastpay/internal/mw"
	"fastpay/internal/repository"
	"fastpay/internal/service"
)

const testWebhookSecret = "whsec_test"

type mockGateway struct {
	CreateCheckoutSessionFunc func(ctx context.Context, req service.CheckoutRequest) (*service.Hosted, error)
	GetCheckoutSessionFunc    func(ctx context.Context, id string) (*stripe.CheckoutSession, error)
}

func (m *mockGateway) CreateCheckoutSession(ctx context.Context, req service.CheckoutRequest) (*service.Hosted, error) {
	if m.CreateCheckoutSessionFunc != nil {
		return m.CreateCheckoutSessionFunc(ctx, req)
	}
	return &service.Hosted{ID: "cs_1", URL: "https://checkout.stripe.com/c/cs_1"}, nil
}

func (m *mockGateway) CreatePaymentLink(_ context.Context, req service.PaymentLinkRequest) (*service.Hosted, error) {
	return &service.Hosted{ID: "plink_" + req.OrderID, URL: "https://buy.stripe.com/" + req.OrderID}, nil
}

func (m *mockGateway) GetPaymentLink(_ context.Context, id string) (*stripe.PaymentLink, error) {
	if id == "missing" {
		return nil, errors.New("No such payment_link: 'missing'")
	}
	return &stripe.PaymentLink{ID: id, Active: true, URL: "https://buy.stripe.com/x"}, nil
}

func (m *mockGateway) GetCheckoutSession(ctx context.Context, id string) (*stripe.CheckoutSession, error) {
	if m.GetCheckoutSessionFunc != nil {
		return m.GetCheckoutSessionFunc(ctx, id)
	}
	return nil, errors.New("No such checkout.session")
}

type testEnv struct {
	store   *repository.Memory
	gateway *mockGateway
	router  http.Handler
	metrics *mw.Metrics
}

func newTestEnv(t *testing.T, mutate func(d *Deps)) *testEnv {
	t.Helper()

	store := repository.NewMemory()
	gw := &mockGateway{}
	payments := service.NewPaymentService(gw, store, service.PaymentOptions{
		StoreName:      "Fast Savory's",
		SuccessURL:     "https://shop.test/ok",
		CancelURL:      "https://shop.test/cancel?order_id=",
		WhatsAppNumber: "5573999366554",
		WebhookSecrets: []string{testWebhookSecret},
	})
	metrics := mw.NewMetrics(prometheus.NewRegistry())
	payments.OnEvent(metrics.ObserveWebhook)

	d := Deps{
		Payments: payments,
		Notifier: service.NewNotifier(nil, config.ManyChat{}, format.Formatter{Prefix: "FAST"}),
		Clients:  service.NewClientService(store, store, "FAST"),
		Metrics:  metrics,
		Env:      "test",
	}
	if mutate != nil {
		mutate(&d)
	}
	return &testEnv{store: store, gateway: gw, router: NewRouter(d), metrics: metrics}
}

func (e *testEnv) do(method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestCreateCheckoutSessionHandler(t *testing.T) {
	e := newTestEnv(t, nil)

	rec := e.do(http.MethodPost, "/api/create-checkout-session", `{"orderId":7,"amount":42.5}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "cs_1", body["sessionId"])

	rec = e.do(http.MethodPost, "/api/create-checkout-session", `{"orderId":"7"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "orderId e amount são obrigatórios", decode(t, rec)["error"])

	rec = e.do(http.MethodGet, "/api/create-checkout-session", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "Use POST")
}

func TestCreateCheckoutSessionVendorError(t *testing.T) {
	e := newTestEnv(t, nil)
	e.gateway.CreateCheckoutSessionFunc = func(context.Context, service.CheckoutRequest) (*service.Hosted, error) {
		return nil, errors.New("Invalid API Key provided: sk_test_***")
	}

	rec := e.do(http.MethodPost, "/api/create-checkout-session", `{"orderId":"7","amount":10}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Erro ao criar sessão de checkout", decode(t, rec)["error"])

	dev := newTestEnv(t, func(d *Deps) { d.Dev = true })
	dev.gateway.CreateCheckoutSessionFunc = e.gateway.CreateCheckoutSessionFunc
	rec = dev.do(http.MethodPost, "/api/create-checkout-session", `{"orderId":"7","amount":10}`, nil)
	assert.Contains(t, decode(t, rec)["error"], "Invalid API Key")
}

func TestStripeNotConfigured(t *testing.T) {
	e := newTestEnv(t, func(d *Deps) {
		d.Payments = service.NewPaymentService(nil, nil, service.PaymentOptions{})
	})

	for _, path := range []string{"/api/create-checkout-session", "/api/create-payment-link", "/api/webhook-stripe", "/api/sync-checkout-session"} {
		rec := e.do(http.MethodPost, path, `{}`, nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code, path)
	}
}

func TestCreatePaymentLinkHandler(t *testing.T) {
	e := newTestEnv(t, nil)

	rec := e.do(http.MethodPost, "/api/create-payment-link", `{"orderId":"12","amount":30}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "plink_12", body["paymentLinkId"])
	assert.Equal(t, "https://buy.stripe.com/12", body["url"])
}

func TestPaymentLinkStatusHandler(t *testing.T) {
	e := newTestEnv(t, nil)

	rec := e.do(http.MethodGet, "/api/payment-link/plink_1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "plink_1", decode(t, rec)["id"])

	rec = e.do(http.MethodGet, "/api/payment-link/missing", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func signature(payload, secret string) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    secret,
		Timestamp: time.Now(),
	}).Header
}

func signedWebhook(t *testing.T, e *testEnv, payload string, secret string) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(http.MethodPost, "/api/webhook-stripe", payload, map[string]string{"Stripe-Signature": signature(payload, secret)})
}

func TestStripeWebhookHandler(t *testing.T) {
	e := newTestEnv(t, nil)
	e.store.PutOrder(&model.Order{ID: "7", Total: 50})

	payload := `{"id":"evt_1","object":"event","type":"payment_intent.succeeded",
		"data":{"object":{"id":"pi_7","object":"payment_intent","amount_received":5000,"metadata":{"order_id":"7"}}}}`

	rec := signedWebhook(t, e, payload, testWebhookSecret)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())

	o, _ := e.store.Order("7")
	assert.Equal(t, model.StatusPaidFull, o.PaymentStatus)
	assert.Equal(t, 50.0, o.AmountPaid)

	rec = e.do(http.MethodGet, "/metrics", "", nil)
	assert.Contains(t, rec.Body.String(), `fastpay_stripe_webhook_events_total{outcome="applied",type="payment_intent.succeeded"} 1`)
}

func TestStripeWebhookAlias(t *testing.T) {
	e := newTestEnv(t, nil)
	e.store.PutOrder(&model.Order{ID: "3", Total: 10, PaymentStatus: model.StatusPaidFull})

	payload := `{"id":"evt_2","object":"event","type":"charge.refunded","data":{"object":{"id":"ch_3","object":"charge","metadata":{"order_id":"3"}}}}`
	rec := e.do(http.MethodPost, "/webhook/stripe", payload, map[string]string{"Stripe-Signature": signature(payload, testWebhookSecret)})
	require.Equal(t, http.StatusOK, rec.Code)

	o, _ := e.store.Order("3")
	assert.Equal(t, model.StatusRefunded, o.PaymentStatus)
}

func TestStripeWebhookBadSignature(t *testing.T) {
	e := newTestEnv(t, nil)

	rec := signedWebhook(t, e, `{"id":"evt_1","object":"event","type":"charge.refunded"}`, "whsec_wrong")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, strings.HasPrefix(decode(t, rec)["error"].(string), "Webhook Error: "))
}

func TestStripeWebhookDownstreamFailure(t *testing.T) {
	e := newTestEnv(t, nil)

	payload := `{"id":"evt_1","object":"event","type":"payment_intent.succeeded",
		"data":{"object":{"id":"pi_1","amount_received":100,"metadata":{"order_id":"404"}}}}`
	rec := signedWebhook(t, e, payload, testWebhookSecret)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Webhook handler failed", decode(t, rec)["error"])
}

func TestSyncCheckoutSessionHandler(t *testing.T) {
	e := newTestEnv(t, nil)
	e.store.PutOrder(&model.Order{ID: "21", Total: 30, AmountPaid: 30, PaymentStatus: model.StatusPaidFull})
	e.gateway.GetCheckoutSessionFunc = func(_ context.Context, id string) (*stripe.CheckoutSession, error) {
		switch id {
		case "cs_unpaid":
			return &stripe.CheckoutSession{ID: id, PaymentStatus: stripe.CheckoutSessionPaymentStatusUnpaid, ClientReferenceID: "21"}, nil
		case "cs_orphan":
			return &stripe.CheckoutSession{ID: id}, nil
		}
		return nil, errors.New("No such checkout.session")
	}

	rec := e.do(http.MethodPost, "/api/sync-checkout-session", `{"sessionId":"cs_unpaid"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "21", body["orderId"])
	assert.Equal(t, "paid_full", body["payment_status"])
	assert.Equal(t, 30.0, body["amount_paid"])

	rec = e.do(http.MethodPost, "/api/sync-checkout-session", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(http.MethodPost, "/api/sync-checkout-session", `{"sessionId":"cs_orphan"}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(http.MethodPost, "/api/sync-checkout-session", `{"sessionId":"cs_gone"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Falha ao sincronizar checkout", decode(t, rec)["error"])
}

func TestNotifyManyChatHandler(t *testing.T) {
	e := newTestEnv(t, nil)

	rec := e.do(http.MethodPost, "/api/notify-manychat", `{"order":{"id":1}}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"ManyChat not configured"}`, rec.Body.String())

	rec = e.do(http.MethodGet, "/api/notify-manychat", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Method not allowed. Use POST.", decode(t, rec)["error"])
}

type recordingManyChat struct {
	flows int
}

func (r *recordingManyChat) SetCustomFields(context.Context, string, []service.CustomField) error {
	return nil
}

func (r *recordingManyChat) SendFlow(context.Context, string, string) error {
	r.flows++
	return nil
}

func TestNotifyManyChatConfigured(t *testing.T) {
	mc := &recordingManyChat{}
	e := newTestEnv(t, func(d *Deps) {
		d.Notifier = service.NewNotifier(mc, config.ManyChat{OperatorID: "op", FlowID: "flow"}, format.Formatter{Prefix: "FAST"})
	})

	rec := e.do(http.MethodPost, "/api/notify-manychat", `{}`, nil)
	assert.Equal(t, "No order data provided", decode(t, rec)["error"])

	rec = e.do(http.MethodPost, "/api/notify-manychat", `{"order":{"total":10}}`, nil)
	assert.Equal(t, "Order missing identifier (id or order_code)", decode(t, rec)["error"])

	rec = e.do(http.MethodPost, "/api/notify-manychat",
		`{"order":{"id":42,"order_code":"FAST-0042","total":12.5,"items":"[{\"name\":\"Coxinha\",\"quantity\":2}]"}}`, nil)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
	assert.Equal(t, 1, mc.flows)
}

func TestNotifyManyChatStringAmounts(t *testing.T) {
	mc := &recordingManyChat{}
	e := newTestEnv(t, func(d *Deps) {
		d.Notifier = service.NewNotifier(mc, config.ManyChat{OperatorID: "op", FlowID: "flow"}, format.Formatter{Prefix: "FAST"})
	})

	rec := e.do(http.MethodPost, "/api/notify-manychat",
		`{"order":{"id":"43","total":"12.50","items":[{"name":"Coxinha","quantity":2,"price":"5.50"},{"name":"Suco","quantity":1,"price":4}]}}`, nil)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
	assert.Equal(t, 1, mc.flows)
}

func TestManyChatClientHandler(t *testing.T) {
	e := newTestEnv(t, nil)
	e.store.PutClient(&model.Client{Phone: "73999366554", Name: "Maria"})
	e.store.PutOrder(&model.Order{ID: "42", OrderCode: "FAST-0042", ClientPhone: "73999366554", ClientName: "Maria Souza", Total: 12.5, CreatedAt: time.Now()})

	rec := e.do(http.MethodGet, "/api/manychat-client?id_manychat=123", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"Client not found","registered":false}`, rec.Body.String())

	rec = e.do(http.MethodPost, "/api/manychat-client", `{"id_manychat":123,"mensagem_do_pedido":"Código: FAST-0042"}`, nil)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["newly_registered"])
	assert.Equal(t, "FAST-0042", body["order_code"])
	assert.Equal(t, "73999366554", body["client_phone"])
	assert.Equal(t, "R$ 12,50", body["order"].(map[string]any)["order_total"])

	rec = e.do(http.MethodPost, "/api/manychat-client", `{"id_manychat":"123"}`, nil)
	assert.Equal(t, true, decode(t, rec)["already_registered"])

	rec = e.do(http.MethodGet, "/api/manychat-client?manychat_id=123", "", nil)
	body = decode(t, rec)
	assert.Equal(t, true, body["registered"])
	assert.Equal(t, "Maria", body["client_name"])
	assert.Equal(t, 1.0, body["total_orders"])

	rec = e.do(http.MethodPost, "/api/manychat-client", `{"id_manychat":"999","mensagem_do_pedido":"oi"}`, nil)
	assert.Equal(t, "Could not extract order code (FAST-XXXX) from message", decode(t, rec)["error"])

	rec = e.do(http.MethodPost, "/api/manychat-client", `{"id_manychat":"999","mensagem_do_pedido":"FAST-9999"}`, nil)
	assert.Equal(t, "Order FAST-9999 not found", decode(t, rec)["error"])

	rec = e.do(http.MethodPut, "/api/manychat-client", `{}`, nil)
	assert.Equal(t, "Use GET or POST method", decode(t, rec)["error"])
}

func TestManyChatClientWithoutDatabase(t *testing.T) {
	e := newTestEnv(t, func(d *Deps) { d.Clients = service.NewClientService(nil, nil, "FAST") })

	rec := e.do(http.MethodGet, "/api/manychat-client?id_manychat=1", "", nil)
	assert.JSONEq(t, `{"success":false,"error":"Database not configured"}`, rec.Body.String())
}

func TestAutomationRoutesRequireToken(t *testing.T) {
	e := newTestEnv(t, func(d *Deps) { d.AutomationSecret = "s3cret" })

	rec := e.do(http.MethodGet, "/api/manychat-client?id_manychat=1", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"unauthorized"}`, rec.Body.String())

	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	token, err := mw.IssueToken("s3cret", "manychat", time.Hour)
	require.NoError(t, err)
	rec = e.do(http.MethodGet, "/api/manychat-client?id_manychat=1", "", map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, "Client not found", decode(t, rec)["error"])
	assert.Contains(t, logs.String(), `"caller":"manychat"`)
}

func TestHealthAndPreflight(t *testing.T) {
	e := newTestEnv(t, nil)

	for _, path := range []string{"/api/health", "/health"} {
		rec := e.do(http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "OK", body["status"])
		assert.Equal(t, "test", body["environment"])
		assert.Contains(t, body["routes"], "webhookStripe")
	}

	rec := e.do(http.MethodGet, "/", "", nil)
	assert.Contains(t, decode(t, rec)["routes"], "manychatClient")

	rec = e.do(http.MethodOptions, "/api/create-checkout-session", "", map[string]string{
		"Origin":                        "https://fastsavorys.vercel.app",
		"Access-Control-Request-Method": "POST",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = e.do(http.MethodOptions, "/api/notify-manychat", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestResultJSON(t *testing.T) {
	raw, err := json.Marshal(Ok(map[string]any{"order": nil}).With("total_orders", 2))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"order":null,"total_orders":2}`, string(raw))

	raw, err = json.Marshal(Fail("nope"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"error":"nope"}`, string(raw))
}
