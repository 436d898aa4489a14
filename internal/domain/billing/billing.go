// Package billing computes admission and investigation charges from their
// sub-ledgers. It performs no I/O: callers load segments, invoice totals and
// payments, and persist whatever they derive from the returned breakdown.
package billing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/carehub/hms/pkg/apperror"
)

const day = 24 * time.Hour

type PaymentStatus string

const (
	StatusPending PaymentStatus = "Pending"
	StatusPartial PaymentStatus = "Partial"
	StatusPaid    PaymentStatus = "Paid"
)

// BillableDays is the number of started days between from and to, never
// less than one. A stay that begins and ends on the same day bills one day.
func BillableDays(from, to time.Time) int {
	elapsed := to.Sub(from)
	if elapsed <= 0 {
		return 1
	}
	days := int(elapsed / day)
	if elapsed%day != 0 {
		days++
	}
	if days < 1 {
		days = 1
	}
	return days
}

// Segment is one stretch of an admission in one bed. To is nil while the
// patient is still in that bed.
type Segment struct {
	ChargePerDay decimal.Decimal
	From         time.Time
	To           *time.Time
}

// end is the segment's billable end: its close date capped at asOf.
func (s Segment) end(asOf time.Time) time.Time {
	if s.To != nil && s.To.Before(asOf) {
		return *s.To
	}
	return asOf
}

func (s Segment) Days(asOf time.Time) int {
	return BillableDays(s.From, s.end(asOf))
}

func (s Segment) Charge(asOf time.Time) decimal.Decimal {
	return s.ChargePerDay.Mul(decimal.NewFromInt(int64(s.Days(asOf))))
}

// BedCharges sums each segment's days times its own daily rate, so a stay
// that moved between beds bills every rate it occupied.
func BedCharges(segments []Segment, asOf time.Time) (decimal.Decimal, int) {
	total := decimal.Zero
	days := 0
	for _, s := range segments {
		total = total.Add(s.Charge(asOf))
		days += s.Days(asOf)
	}
	return total, days
}

// AdmissionInput is the admission aggregate as seen by billing. Invoice
// totals were priced per consumed batch when dispensed and are taken as is.
type AdmissionInput struct {
	Segments         []Segment
	MedicineInvoices []decimal.Decimal
	ServiceInvoices  []decimal.Decimal
	AdmissionFee     decimal.Decimal
	Discount         decimal.Decimal
	AdvancePaid      decimal.Decimal
	Payments         []decimal.Decimal
}

type Breakdown struct {
	TotalDays       int             `json:"total_days"`
	BedCharges      decimal.Decimal `json:"bed_charges"`
	MedicineCharges decimal.Decimal `json:"medicine_charges"`
	ServiceCharges  decimal.Decimal `json:"service_charges"`
	AdmissionFee    decimal.Decimal `json:"admission_fee"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Discount        decimal.Decimal `json:"discount"`
	GrandTotal      decimal.Decimal `json:"grand_total"`
	AdvancePaid     decimal.Decimal `json:"advance_paid"`
	Paid            decimal.Decimal `json:"paid"`
	Due             decimal.Decimal `json:"due"`
}

// AdmissionCharges aggregates the bill as of asOf. The discount is applied
// as given; callers validate it with CheckDiscount first.
func AdmissionCharges(in AdmissionInput, asOf time.Time) Breakdown {
	bed, days := BedCharges(in.Segments, asOf)
	b := Breakdown{
		TotalDays:       days,
		BedCharges:      bed,
		MedicineCharges: Sum(in.MedicineInvoices),
		ServiceCharges:  Sum(in.ServiceInvoices),
		AdmissionFee:    in.AdmissionFee,
		Discount:        in.Discount,
		AdvancePaid:     in.AdvancePaid,
	}
	b.Subtotal = b.BedCharges.Add(b.MedicineCharges).Add(b.ServiceCharges).Add(b.AdmissionFee)
	b.GrandTotal = b.Subtotal.Sub(b.Discount)
	b.Paid = in.AdvancePaid.Add(Sum(in.Payments))
	b.Due = b.GrandTotal.Sub(b.Paid)
	return b
}

type Settlement struct {
	GrandTotal decimal.Decimal `json:"grand_total"`
	Paid       decimal.Decimal `json:"paid"`
	Due        decimal.Decimal `json:"due"`
	Status     PaymentStatus   `json:"payment_status"`
}

// InvestigationDue derives paid, due and status of an investigation bill
// from its payment ledger.
func InvestigationDue(total, discount decimal.Decimal, payments []decimal.Decimal) Settlement {
	grand := total.Sub(discount)
	paid := Sum(payments)
	return Settlement{
		GrandTotal: grand,
		Paid:       paid,
		Due:        grand.Sub(paid),
		Status:     StatusFor(grand, paid),
	}
}

// StatusFor is Paid once nothing is due, Partial after any payment and
// Pending before the first one.
func StatusFor(grandTotal, paid decimal.Decimal) PaymentStatus {
	switch {
	case grandTotal.Sub(paid).LessThanOrEqual(decimal.Zero):
		return StatusPaid
	case paid.GreaterThan(decimal.Zero):
		return StatusPartial
	default:
		return StatusPending
	}
}

const DefaultPaymentMethod = "Cash"

var paymentMethods = map[string]bool{
	"Cash":           true,
	"Card":           true,
	"Mobile Banking": true,
	"Bank Transfer":  true,
}

// PaymentMethod returns m if it is accepted at the counter, Cash when empty.
func PaymentMethod(m string) (string, error) {
	if m == "" {
		return DefaultPaymentMethod, nil
	}
	if !paymentMethods[m] {
		return "", apperror.Validation("unsupported payment method %q", m)
	}
	return m, nil
}

// CheckPayment validates a new payment against what has already been paid.
func CheckPayment(grandTotal, paid, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperror.Validation("payment amount must be greater than zero")
	}
	due := grandTotal.Sub(paid)
	if amount.GreaterThan(due) {
		return apperror.Overpayment("payment of %s exceeds the remaining due of %s", amount.StringFixed(2), due.StringFixed(2))
	}
	return nil
}

// CheckDiscount rejects a negative discount or one larger than the subtotal.
func CheckDiscount(subtotal, discount decimal.Decimal) error {
	if discount.IsNegative() {
		return apperror.Validation("discount must not be negative")
	}
	if discount.GreaterThan(subtotal) {
		return apperror.Validation("discount of %s exceeds the subtotal of %s", discount.StringFixed(2), subtotal.StringFixed(2))
	}
	return nil
}

// LineTotal is quantity times unit price.
func LineTotal(quantity int, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

func Sum(amounts []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
