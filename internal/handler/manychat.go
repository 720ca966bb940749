package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"fastpay/internal/model"
	"fastpay/internal/mw"
	"fastpay/internal/service"
)

type notifyRequest struct {
	Order *model.Order `json:"order"`
}

func NotifyManyChatHandler(notifier *service.Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeResult(w, Fail("Method not allowed. Use POST."))
			return
		}
		if !notifier.Configured() {
			slog.Info("manychat not configured, skipping notification")
			writeResult(w, Fail("ManyChat not configured"))
			return
		}

		var req notifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeResult(w, Fail("Internal error: "+err.Error()))
			return
		}
		if req.Order == nil {
			slog.Warn("no order data in request body")
			writeResult(w, Fail("No order data provided"))
			return
		}
		if req.Order.ID == "" && req.Order.OrderCode == "" {
			slog.Warn("order missing id/order_code")
			writeResult(w, Fail("Order missing identifier (id or order_code)"))
			return
		}

		slog.Info("notifying manychat", "caller", mw.Subject(r.Context()), "order_id", req.Order.ID.String(), "order_code", req.Order.OrderCode)
		res := notifier.Notify(r.Context(), req.Order)
		if !res.Success {
			writeResult(w, Fail(res.Error))
			return
		}
		writeResult(w, Ok(nil))
	}
}

type registerClientRequest struct {
	ManychatID model.ID `json:"id_manychat"`
	Message    string   `json:"mensagem_do_pedido"`
}

func ManyChatClientHandler(clients *service.ClientService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !clients.Configured() {
			slog.Error("manychat-client called without a database")
			writeResult(w, Fail("Database not configured"))
			return
		}

		slog.Info("manychat-client request", "caller", mw.Subject(r.Context()), "method", r.Method)
		switch r.Method {
		case http.MethodGet:
			writeResult(w, lookupClient(clients, r))
		case http.MethodPost:
			writeResult(w, registerClient(clients, r))
		default:
			writeResult(w, Fail("Use GET or POST method"))
		}
	}
}

func lookupClient(clients *service.ClientService, r *http.Request) Result {
	id := r.URL.Query().Get("id_manychat")
	if id == "" {
		id = r.URL.Query().Get("manychat_id")
	}

	res, err := clients.Lookup(r.Context(), id)
	if err != nil {
		return clientFailure(clients, err)
	}

	out := Ok(map[string]any{
		"registered":   true,
		"client_name":  res.Client.Name,
		"order":        res.Order,
		"total_orders": res.TotalOrders,
	})
	if res.Order == nil {
		out = out.With("message", "No orders found for this client")
	}
	return out
}

func registerClient(clients *service.ClientService, r *http.Request) Result {
	var req registerClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return Fail("Internal error: " + err.Error())
	}

	reg, err := clients.Register(r.Context(), req.ManychatID.String(), req.Message)
	if err != nil {
		return clientFailure(clients, err)
	}

	if reg.AlreadyRegistered {
		return Ok(map[string]any{
			"client_registered":  true,
			"already_registered": true,
			"client_name":        reg.ClientName,
			"order":              reg.Order,
			"total_orders":       reg.TotalOrders,
		})
	}
	return Ok(map[string]any{
		"client_registered": true,
		"newly_registered":  true,
		"order_code":        reg.OrderCode,
		"client_phone":      reg.ClientPhone,
		"order":             reg.Order,
		"total_orders":      reg.TotalOrders,
	})
}

func clientFailure(clients *service.ClientService, err error) Result {
	var unknown *service.UnknownOrderError
	switch {
	case errors.Is(err, service.ErrManychatIDRequired):
		return Fail("id_manychat is required")
	case errors.Is(err, service.ErrClientNotFound):
		return Fail("Client not found").With("registered", false)
	case errors.Is(err, service.ErrOrderMessageRequired):
		return Fail("mensagem_do_pedido is required for new client registration")
	case errors.Is(err, service.ErrNoOrderCode):
		return Fail(fmt.Sprintf("Could not extract order code (%s-XXXX) from message", clients.CodePrefix()))
	case errors.As(err, &unknown):
		return Fail(fmt.Sprintf("Order %s not found", unknown.Code))
	case errors.Is(err, service.ErrDatabaseNotConfigured):
		return Fail("Database not configured")
	}
	slog.Error("manychat-client failed", "error", err)
	return Fail("Internal error: " + err.Error())
}
