package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"fastpay/internal/config"
	"fastpay/internal/database"
	"fastpay/internal/format"
	"fastpay/internal/repository"
	"fastpay/internal/service"
)

type app struct {
	cfg      *config.Config
	db       *sql.DB
	payments *service.PaymentService
	notifier *service.Notifier
	clients  *service.ClientService
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	cfg, err := config.New(envFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// newApp builds the services from cfg. Vendors without credentials are left
// unset so the routes that need them report it instead of failing startup.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	var (
		gateway service.PaymentGateway
		orders  service.OrderStore
		clients service.ClientStore
		lookups service.ClientOrderStore
	)

	if cfg.DatabaseURI != "" {
		db, err := database.NewDB(ctx, cfg.DatabaseURI)
		if err != nil {
			return nil, err
		}
		a.db = db
		o := repository.NewOrders(db)
		orders, lookups = o, o
		clients = repository.NewClients(db)
	} else {
		slog.Warn("DATABASE_URL not set; order updates are disabled")
	}

	if cfg.Stripe.SecretKey != "" {
		gateway = service.NewStripeClient(cfg.Stripe.SecretKey)
	} else {
		slog.Warn("STRIPE_SECRET_KEY not set; payment routes are disabled")
	}

	a.payments = service.NewPaymentService(gateway, orders, service.PaymentOptions{
		StoreName:      cfg.StoreName,
		SuccessURL:     cfg.Stripe.SuccessURL,
		CancelURL:      cfg.Stripe.CancelURL,
		WhatsAppNumber: cfg.WhatsAppNumber,
		WebhookSecrets: cfg.Stripe.WebhookSecrets,
	})

	var mc service.ManyChatAPI
	if cfg.ManyChat.APIKey != "" {
		mc = service.NewManyChatClient(cfg.ManyChat.BaseURL, cfg.ManyChat.APIKey, cfg.ManyChat.RateLimit)
	}
	a.notifier = service.NewNotifier(mc, cfg.ManyChat, format.Formatter{Prefix: cfg.OrderCodePrefix})
	a.clients = service.NewClientService(clients, lookups, cfg.OrderCodePrefix)

	return a, nil
}

func (a *app) Close() {
	database.CloseDB(a.db)
}
