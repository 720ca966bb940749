package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"fastpay/internal/service"
)

type intakeFunc func(ctx context.Context, req service.IntakeRequest) (*service.Hosted, error)

// intakeHandler serves the storefront's payment-initiation routes. idKey is
// the response field carrying the vendor object id.
func intakeHandler(svc *service.PaymentService, dev bool, path, idKey, fallback string, create intakeFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "Use POST "+path+" (JSON body).")
			return
		}
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		if !svc.StripeConfigured() {
			writeError(w, http.StatusInternalServerError, service.ErrStripeNotConfigured.Error())
			return
		}

		var req service.IntakeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}

		hosted, err := create(r.Context(), req)
		if err != nil {
			if errors.Is(err, service.ErrOrderAndAmountRequired) {
				writeError(w, http.StatusBadRequest, "orderId e amount são obrigatórios")
				return
			}
			slog.Error("stripe request failed", "path", path, "order", req.OrderID, "error", err)
			writeError(w, http.StatusBadRequest, safeErrorMessage(dev, err, fallback))
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"url":     hosted.URL,
			idKey:     hosted.ID,
		})
	}
}

func CreateCheckoutSessionHandler(svc *service.PaymentService, dev bool) http.HandlerFunc {
	return intakeHandler(svc, dev, "/api/create-checkout-session", "sessionId",
		"Erro ao criar sessão de checkout", svc.CreateCheckoutSession)
}

func CreatePaymentLinkHandler(svc *service.PaymentService, dev bool) http.HandlerFunc {
	return intakeHandler(svc, dev, "/api/create-payment-link", "paymentLinkId",
		"Erro ao gerar link de pagamento", svc.CreatePaymentLink)
}

func PaymentLinkStatusHandler(svc *service.PaymentService, dev bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !svc.StripeConfigured() {
			writeError(w, http.StatusInternalServerError, service.ErrStripeNotConfigured.Error())
			return
		}

		id := chi.URLParam(r, "id")
		if id == "" {
			writeError(w, http.StatusBadRequest, "Payment link ID is required")
			return
		}

		link, err := svc.GetPaymentLink(r.Context(), id)
		if err != nil {
			slog.Error("payment link lookup failed", "id", id, "error", err)
			writeError(w, http.StatusBadRequest, safeErrorMessage(dev, err, "Erro ao consultar link de pagamento"))
			return
		}

		writeJSON(w, http.StatusOK, link)
	}
}

type syncRequest struct {
	SessionID string `json:"sessionId"`
}

func SyncCheckoutSessionHandler(svc *service.PaymentService, dev bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		var req syncRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}

		res, err := svc.SyncCheckoutSession(r.Context(), req.SessionID)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrStripeNotConfigured), errors.Is(err, service.ErrDatabaseNotConfigured):
				writeError(w, http.StatusInternalServerError, err.Error())
			case errors.Is(err, service.ErrSessionIDRequired):
				writeError(w, http.StatusBadRequest, "sessionId é obrigatório")
			case errors.Is(err, service.ErrOrderIDNotInSession):
				writeError(w, http.StatusNotFound, "order_id não encontrado na Checkout Session")
			default:
				slog.Error("sync checkout failed", "session", req.SessionID, "error", err)
				writeError(w, http.StatusBadRequest, safeErrorMessage(dev, err, "Falha ao sincronizar checkout"))
			}
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"success":        true,
			"orderId":        res.OrderID,
			"payment_status": res.PaymentStatus,
			"amount_paid":    res.AmountPaid,
		})
	}
}
