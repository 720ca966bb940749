package model

// PaymentState is the slice of an order the reconciliation paths read.
type PaymentState struct {
	OrderID       ID
	Total         float64
	AmountPaid    float64
	PaymentStatus PaymentStatus
}

// PaymentUpdate is written as a whole; concurrent writers overwrite each other.
type PaymentUpdate struct {
	PaymentStatus   PaymentStatus `json:"payment_status"`
	AmountPaid      float64       `json:"amount_paid"`
	StripePaymentID string        `json:"stripe_payment_id"`
}
