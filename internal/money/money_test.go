package money

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"fastpay/internal/model"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		amountPaid float64
		total      float64
		want       model.PaymentStatus
	}{
		{"exact amount", 50, 50, model.StatusPaidFull},
		{"one unit short", 49, 50, model.StatusPaidPartial},
		{"overpaid", 51, 50, model.StatusPaidFull},
		{"zero total", 0, 0, model.StatusPaidFull},
		{"zero total with payment", 12.3, 0, model.StatusPaidFull},
		{"negative total", 0, -5, model.StatusPaidFull},
		{"float rounding within tolerance", 0.1 + 0.2, 0.3, model.StatusPaidFull},
		{"one cent short", 49.99, 50, model.StatusPaidPartial},
		{"half cent short", 49.995, 50, model.StatusPaidFull},
		{"nothing paid", 0, 50, model.StatusPaidPartial},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.amountPaid, tt.total))
		})
	}
}

func TestClassifyProperties(t *testing.T) {
	for _, total := range []float64{0.01, 1, 12.5, 50, 99.99, 1234.56} {
		assert.Equal(t, model.StatusPaidFull, Classify(total, total), "total=%v", total)
		assert.Equal(t, model.StatusPaidPartial, Classify(total-1, total), "total=%v", total)
		assert.Equal(t, model.StatusPaidFull, Classify(total+1, total), "total=%v", total)
	}
	for _, x := range []float64{0, 1, 10.5} {
		assert.Equal(t, model.StatusPaidFull, Classify(x, 0))
	}
}

func TestToMinor(t *testing.T) {
	assert.Equal(t, int64(5000), ToMinor(50))
	assert.Equal(t, int64(1250), ToMinor(12.5))
	assert.Equal(t, int64(1999), ToMinor(19.99))
	assert.Equal(t, int64(30), ToMinor(0.1+0.2))
	assert.Equal(t, int64(101), ToMinor(1.005))
}

func TestFromMinor(t *testing.T) {
	assert.Equal(t, 50.0, FromMinor(5000))
	assert.Equal(t, 19.99, FromMinor(1999))
	assert.Equal(t, 0.0, FromMinor(0))
}

func TestFormatBRL(t *testing.T) {
	assert.Equal(t, "R$ 12,50", FormatBRL(12.5))
	assert.Equal(t, "R$ 0,00", FormatBRL(0))
	assert.Equal(t, "R$ 1234,56", FormatBRL(1234.56))
	assert.Equal(t, "R$ 7,00", FormatBRL(7))
}
