// Package money holds the payment classification rule and currency helpers
// shared by every payment reconciliation path.
package money

import "fastpay/internal/model"

// Epsilon absorbs sub-cent rounding left over from cents-based arithmetic.
const Epsilon = 0.009

// Classify decides whether amountPaid settles total. Orders with a zero or
// negative total are always fully paid.
func Classify(amountPaid, total float64) model.PaymentStatus {
	if total <= 0 {
		return model.StatusPaidFull
	}
	if amountPaid+Epsilon < total {
		return model.StatusPaidPartial
	}
	return model.StatusPaidFull
}
