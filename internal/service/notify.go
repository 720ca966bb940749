package service

import (
	"context"
	"log/slog"

	"fastpay/internal/config"
	"fastpay/internal/format"
	"fastpay/internal/model"
)

// NotifyResult is the outcome of a notification attempt. Notify never fails
// outward; problems are reported here instead.
type NotifyResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Notifier pushes new-order summaries to the operator's ManyChat subscriber.
type Notifier struct {
	api        ManyChatAPI
	operatorID string
	flowID     string
	fields     config.FieldIDs
	formatter  format.Formatter
}

func NewNotifier(api ManyChatAPI, cfg config.ManyChat, formatter format.Formatter) *Notifier {
	return &Notifier{
		api:        api,
		operatorID: cfg.OperatorID,
		flowID:     cfg.FlowID,
		fields:     cfg.Fields,
		formatter:  formatter,
	}
}

// Configured reports whether there is a client and a subscriber to notify.
func (n *Notifier) Configured() bool {
	return n != nil && n.api != nil && n.operatorID != ""
}

func (n *Notifier) Notify(ctx context.Context, o *model.Order) NotifyResult {
	if !n.Configured() {
		slog.Warn("manychat not configured; skipping notification")
		return NotifyResult{Error: "Not configured"}
	}
	if o == nil {
		slog.Warn("no order data; skipping notification")
		return NotifyResult{Error: "No order data"}
	}

	code := n.formatter.Code(o)

	if fields := n.customFields(o); len(fields) > 0 {
		if err := n.api.SetCustomFields(ctx, n.operatorID, fields); err != nil {
			slog.Warn("manychat custom fields update failed", "order", code, "error", err)
		}
	} else {
		slog.Warn("no manychat custom field ids configured; skipping fields update")
	}

	if n.flowID == "" {
		slog.Warn("manychat flow not configured; skipping flow trigger")
	} else if err := n.api.SendFlow(ctx, n.operatorID, n.flowID); err != nil {
		slog.Warn("manychat flow send failed", "order", code, "error", err)
		return NotifyResult{Error: err.Error()}
	}

	slog.Info("manychat notification completed", "order", code)
	return NotifyResult{Success: true}
}

func (n *Notifier) customFields(o *model.Order) []CustomField {
	s := n.formatter.Summary(o)

	var fields []CustomField
	add := func(id int, value string) {
		if id > 0 {
			fields = append(fields, CustomField{FieldID: id, Value: value})
		}
	}

	add(n.fields.OrderNumber, s.OrderCode)
	add(n.fields.OrderTotal, s.OrderTotal)
	add(n.fields.OrderDescription, s.OrderDescription)
	add(n.fields.OrderDate, s.OrderDate)
	add(n.fields.OrderDeliveryMethod, s.DeliveryMethod)
	add(n.fields.ClientFirstName, s.ClientFirstName)
	add(n.fields.PaymentMethod, s.PaymentMethod)
	add(n.fields.ClientPhone, s.ClientPhone)

	return fields
}
