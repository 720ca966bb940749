package handler

import (
	"net/http"
	"time"
)

type route struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

var routes = map[string]route{
	"health":                {http.MethodGet, "/api/health"},
	"webhookStripe":         {http.MethodPost, "/api/webhook-stripe"},
	"syncCheckoutSession":   {http.MethodPost, "/api/sync-checkout-session"},
	"createCheckoutSession": {http.MethodPost, "/api/create-checkout-session"},
	"createPaymentLink":     {http.MethodPost, "/api/create-payment-link"},
	"paymentLinkStatus":     {http.MethodGet, "/api/payment-link/{id}"},
	"notifyManyChat":        {http.MethodPost, "/api/notify-manychat"},
	"manychatClient":        {"GET,POST", "/api/manychat-client"},
	"metrics":               {http.MethodGet, "/metrics"},
}

func HealthHandler(env string, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":      "OK",
			"timestamp":   now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
			"environment": env,
			"routes":      routes,
		})
	}
}

func RootHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"service": "fastpay",
			"routes":  routes,
		})
	}
}
