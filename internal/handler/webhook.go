package handler

import (
	"io"
	"log/slog"
	"net/http"

	"fastpay/internal/service"
)

const maxWebhookBody = 1 << 20

func StripeWebhookHandler(svc *service.PaymentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		switch {
		case !svc.StripeConfigured():
			writeError(w, http.StatusInternalServerError, service.ErrStripeNotConfigured.Error())
			return
		case !svc.WebhookConfigured():
			writeError(w, http.StatusInternalServerError, service.ErrWebhookSecretNotConfigured.Error())
			return
		case !svc.DatabaseConfigured():
			writeError(w, http.StatusInternalServerError, service.ErrDatabaseNotConfigured.Error())
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
		if err != nil {
			writeError(w, http.StatusBadRequest, "Webhook Error: "+err.Error())
			return
		}

		evt, err := svc.VerifyEvent(payload, r.Header.Get("Stripe-Signature"))
		if err != nil {
			slog.Warn("webhook signature verification failed", "error", err)
			writeError(w, http.StatusBadRequest, "Webhook Error: "+err.Error())
			return
		}

		if err := svc.HandleEvent(r.Context(), evt); err != nil {
			slog.Error("webhook processing failed", "type", evt.Type, "id", evt.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "Webhook handler failed")
			return
		}

		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
	}
}
