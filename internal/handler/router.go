package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"fastpay/internal/mw"
	"fastpay/internal/service"
)

type Deps struct {
	Payments *service.PaymentService
	Notifier *service.Notifier
	Clients  *service.ClientService
	Metrics  *mw.Metrics

	Env              string
	Dev              bool
	AutomationSecret string
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Stripe-Signature", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(preflight)

	health := HealthHandler(d.Env, time.Now)
	r.Get("/", RootHandler())
	r.Get("/api/health", health)
	r.Get("/health", health)
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics.Handler())
	}

	// Payment initiation answers other methods itself with a usage hint.
	r.HandleFunc("/api/create-checkout-session", CreateCheckoutSessionHandler(d.Payments, d.Dev))
	r.HandleFunc("/api/create-payment-link", CreatePaymentLinkHandler(d.Payments, d.Dev))
	r.Get("/api/payment-link/{id}", PaymentLinkStatusHandler(d.Payments, d.Dev))
	r.Post("/api/sync-checkout-session", SyncCheckoutSessionHandler(d.Payments, d.Dev))

	webhook := StripeWebhookHandler(d.Payments)
	r.Post("/api/webhook-stripe", webhook)
	r.Post("/webhook/stripe", webhook)

	r.Group(func(r chi.Router) {
		r.Use(mw.AutomationAuth(d.AutomationSecret))

		r.HandleFunc("/api/notify-manychat", NotifyManyChatHandler(d.Notifier))
		r.HandleFunc("/api/manychat-client", ManyChatClientHandler(d.Clients))
	})

	return r
}

// preflight answers bare OPTIONS requests that the CORS handler passes on.
func preflight(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
