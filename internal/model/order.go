package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	StatusAwaitingPayment PaymentStatus = "awaiting_payment"
	StatusPaidPartial     PaymentStatus = "paid_partial"
	StatusPaidFull        PaymentStatus = "paid_full"
	StatusRefunded        PaymentStatus = "refunded"
)

// ID is an order identifier that the storefront may send either as a JSON
// number or as a string.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("order id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Number is a numeric field the storefront may send as a JSON number or as a
// numeric string. Blank or unparseable strings read as zero.
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		d, err := decimal.NewFromString(strings.TrimSpace(strings.Replace(s, ",", ".", 1)))
		if err != nil {
			*n = 0
			return nil
		}
		*n = Number(d.InexactFloat64())
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("expected a number: %w", err)
	}
	*n = Number(f)
	return nil
}

type Item struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	Note     string  `json:"note,omitempty"`
}

func (i *Item) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name     string `json:"name"`
		Quantity Number `json:"quantity"`
		Price    Number `json:"price"`
		Note     string `json:"note"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*i = Item{
		Name:     raw.Name,
		Quantity: int(raw.Quantity),
		Price:    float64(raw.Price),
		Note:     raw.Note,
	}
	return nil
}

type Order struct {
	ID              ID            `json:"id"`
	OrderCode       string        `json:"order_code,omitempty"`
	OrderSequence   int           `json:"order_sequence,omitempty"`
	Total           float64       `json:"total"`
	AmountPaid      float64       `json:"amount_paid"`
	PaymentStatus   PaymentStatus `json:"payment_status,omitempty"`
	Items           Items         `json:"items"`
	DeliveryType    string        `json:"delivery_type"`
	ScheduledDate   string        `json:"scheduled_date,omitempty"`
	ScheduledTime   string        `json:"scheduled_time,omitempty"`
	ClientName      string        `json:"client_name"`
	ClientPhone     string        `json:"client_phone"`
	PaymentMethod   string        `json:"payment_method"`
	StripePaymentID string        `json:"stripe_payment_id,omitempty"`
	ManychatID      string        `json:"manychat_id,omitempty"`
	Status          string        `json:"status,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}

func (o *Order) UnmarshalJSON(data []byte) error {
	type plain Order
	aux := struct {
		*plain
		Total      Number `json:"total"`
		AmountPaid Number `json:"amount_paid"`
	}{plain: (*plain)(o)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	o.Total = float64(aux.Total)
	o.AmountPaid = float64(aux.AmountPaid)
	return nil
}

// IsDelivery reports whether the order is delivered rather than picked up.
// The legacy Portuguese tags are still written by older storefront builds.
func (o *Order) IsDelivery() bool {
	return o.DeliveryType == "delivery" || o.DeliveryType == "entrega"
}

// Items accepts either a JSON array or a JSON string wrapping one, as older
// storefront builds stringify the cart.
type Items []Item

func (it *Items) UnmarshalJSON(data []byte) error {
	*it = DecodeItems(data)
	return nil
}

// DecodeItems parses an items column that may hold a JSON array or a JSON
// string wrapping one. Malformed entries are skipped; input that is not an
// array yields no items.
func DecodeItems(raw []byte) []Item {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		raw = []byte(s)
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil
	}
	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		var item Item
		if err := json.Unmarshal(e, &item); err != nil {
			continue
		}
		items = append(items, item)
	}
	return items
}

// SequenceCode renders the fallback code for orders stored without one.
func SequenceCode(prefix string, seq int) string {
	s := strconv.Itoa(seq)
	for len(s) < 4 {
		s = "0" + s
	}
	return prefix + "-" + s
}
