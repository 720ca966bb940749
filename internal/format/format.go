// Package format renders stored orders into the display strings used by the
// ManyChat message templates. The output must stay byte-compatible with the
// templates configured on the ManyChat side.
package format

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"fastpay/internal/model"
	"fastpay/internal/money"
)

const (
	NoItems       = "Sem itens"
	NotInformed   = "Não informado"
	DefaultClient = "Cliente"
	ASAP          = "Hoje - o mais breve possível"
	itemSeparator = " • "
)

var paymentLabels = map[string]string{
	"dinheiro": "💵 Dinheiro",
	"cartao1x": "💳 Cartão",
	"pix":      "📱 PIX",
}

var nonDigits = regexp.MustCompile(`\D`)

// Items renders "2x Coxinha (R$ 10,00) _sem cebola_ • 1x Suco".
func Items(items []model.Item) string {
	if len(items) == 0 {
		return NoItems
	}
	parts := make([]string, 0, len(items))
	for _, it := range items {
		qty := it.Quantity
		if qty == 0 {
			qty = 1
		}
		name := it.Name
		if name == "" {
			name = "Item"
		}
		var b strings.Builder
		b.WriteString(strconv.Itoa(qty))
		b.WriteString("x ")
		b.WriteString(name)
		if it.Price != 0 {
			b.WriteString(" (")
			b.WriteString(money.FormatBRL(it.Price))
			b.WriteString(")")
		}
		if it.Note != "" {
			b.WriteString(" _")
			b.WriteString(it.Note)
			b.WriteString("_")
		}
		parts = append(parts, b.String())
	}
	return strings.Join(parts, itemSeparator)
}

// Phone formats Brazilian numbers with area code. Anything that is not 10 or
// 11 digits long is returned as given.
func Phone(phone string) string {
	if phone == "" {
		return NotInformed
	}
	d := nonDigits.ReplaceAllString(phone, "")
	switch len(d) {
	case 11:
		return "(" + d[:2] + ") " + d[2:7] + "-" + d[7:]
	case 10:
		return "(" + d[:2] + ") " + d[2:6] + "-" + d[6:]
	}
	return phone
}

// DeliveryDate renders the scheduled date (YYYY-MM-DD) as DD/MM/YYYY.
func DeliveryDate(o *model.Order) string {
	if o.ScheduledDate == "" {
		return ASAP
	}
	parts := strings.Split(o.ScheduledDate, "-")
	if len(parts) != 3 {
		return o.ScheduledDate
	}
	date := parts[2] + "/" + parts[1] + "/" + parts[0]
	if o.ScheduledTime != "" {
		return date + " às " + o.ScheduledTime
	}
	return date + " (Encomenda)"
}

func DeliveryMethod(o *model.Order) string {
	if o.IsDelivery() {
		return "🚚 Entrega"
	}
	return "🏪 Retirada"
}

// PaymentInfo renders the payment method and where it is collected.
func PaymentInfo(o *model.Order) string {
	method, ok := paymentLabels[o.PaymentMethod]
	if !ok {
		method = o.PaymentMethod
	}
	if method == "" {
		method = NotInformed
	}
	location := "na retirada"
	if o.IsDelivery() {
		location = "na entrega"
	}
	return method + " (" + location + ")"
}

func FirstName(full string) string {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return DefaultClient
	}
	return fields[0]
}

// Summary is the formatted view of an order handed to ManyChat.
type Summary struct {
	OrderCode        string     `json:"order_code"`
	OrderTotal       string     `json:"order_total"`
	OrderDescription string     `json:"order_description"`
	OrderDate        string     `json:"order_date"`
	DeliveryMethod   string     `json:"delivery_method"`
	ClientFirstName  string     `json:"client_first_name"`
	PaymentMethod    string     `json:"payment_method"`
	ClientPhone      string     `json:"client_phone"`
	ClientName       string     `json:"client_name"`
	Status           string     `json:"status"`
	CreatedAt        *time.Time `json:"created_at,omitempty"`
}

// Formatter renders summaries for a given order-code prefix.
type Formatter struct {
	Prefix string
}

// Code returns the order's public code, falling back to one built from the
// order sequence and finally to the raw id.
func (f Formatter) Code(o *model.Order) string {
	switch {
	case o.OrderCode != "":
		return o.OrderCode
	case o.OrderSequence > 0:
		return model.SequenceCode(f.Prefix, o.OrderSequence)
	case o.ID != "":
		return o.ID.String()
	}
	return "N/A"
}

func (f Formatter) Summary(o *model.Order) *Summary {
	if o == nil {
		return nil
	}
	s := &Summary{
		OrderCode:        f.Code(o),
		OrderTotal:       money.FormatBRL(o.Total),
		OrderDescription: Items(o.Items),
		OrderDate:        DeliveryDate(o),
		DeliveryMethod:   DeliveryMethod(o),
		ClientFirstName:  FirstName(o.ClientName),
		PaymentMethod:    PaymentInfo(o),
		ClientPhone:      Phone(o.ClientPhone),
		ClientName:       o.ClientName,
		Status:           o.Status,
	}
	if s.ClientName == "" {
		s.ClientName = DefaultClient
	}
	if s.Status == "" {
		s.Status = "pending"
	}
	if !o.CreatedAt.IsZero() {
		t := o.CreatedAt
		s.CreatedAt = &t
	}
	return s
}
