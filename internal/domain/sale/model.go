// Package sale records walk-in pharmacy sales. Every line is a snapshot of
// the batch it was taken from, so later price or batch edits never change
// a past bill.
package sale

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/carehub/hms/internal/domain/billing"
	"github.com/carehub/hms/pkg/apperror"
)

type Line struct {
	MedicineID   uuid.UUID       `json:"medicine_id"`
	MedicineName string          `json:"medicine_name"`
	BatchNumber  string          `json:"batch_number"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Amount       decimal.Decimal `json:"amount"`
}

type OutdoorSale struct {
	ID            uuid.UUID       `json:"id"`
	Number        int64           `json:"bill_number"`
	SaleDate      time.Time       `json:"sale_date"`
	CustomerName  string          `json:"customer_name"`
	CustomerPhone string          `json:"customer_phone"`
	Lines         []Line          `json:"medicines"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	Paid          decimal.Decimal `json:"paid"`
	Due           decimal.Decimal `json:"due"`
	PaymentMethod string          `json:"payment_method"`
	SoldBy        string          `json:"sold_by"`
	Remarks       string          `json:"remarks"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ListFilter bounds sales by sale date. From is inclusive, To exclusive.
type ListFilter struct {
	From *time.Time
	To   *time.Time
}

// Settle totals the lines and checks discount and payment against them.
// Nothing is changed when it fails.
func (s *OutdoorSale) Settle() error {
	amounts := make([]decimal.Decimal, len(s.Lines))
	for i, l := range s.Lines {
		amounts[i] = l.Amount
	}
	subtotal := billing.Sum(amounts)
	if err := billing.CheckDiscount(subtotal, s.Discount); err != nil {
		return err
	}
	grand := subtotal.Sub(s.Discount)
	if s.Paid.IsNegative() {
		return apperror.Validation("paid must not be negative")
	}
	if s.Paid.GreaterThan(grand) {
		return apperror.Overpayment("paid %s exceeds the grand total of %s", s.Paid.StringFixed(2), grand.StringFixed(2))
	}
	s.Subtotal = subtotal
	s.GrandTotal = grand
	s.Due = grand.Sub(s.Paid)
	return nil
}

// SoldQuantity sums what the sale took of one medicine, per batch.
func (s *OutdoorSale) SoldQuantity(medicineID uuid.UUID) map[string]int {
	out := make(map[string]int)
	for _, l := range s.Lines {
		if l.MedicineID == medicineID {
			out[l.BatchNumber] += l.Quantity
		}
	}
	return out
}
