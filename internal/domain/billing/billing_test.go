package billing

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/carehub/hms/pkg/apperror"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(y int, m time.Month, dd, h int) time.Time {
	return time.Date(y, m, dd, h, 0, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

func TestBillableDays(t *testing.T) {
	base := date(2024, 3, 1, 10)
	tests := []struct {
		name string
		to   time.Time
		want int
	}{
		{"same instant", base, 1},
		{"end before start", base.Add(-time.Hour), 1},
		{"two hours", base.Add(2 * time.Hour), 1},
		{"exactly one day", base.Add(24 * time.Hour), 1},
		{"one day and a minute", base.Add(24*time.Hour + time.Minute), 2},
		{"three days", base.Add(72 * time.Hour), 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BillableDays(base, tt.to); got != tt.want {
				t.Errorf("BillableDays() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestBedCharges_SingleSameDaySegment(t *testing.T) {
	from := date(2024, 3, 1, 9)
	segs := []Segment{{ChargePerDay: d("500"), From: from, To: ptr(from)}}

	total, days := BedCharges(segs, from)
	if !total.Equal(d("500")) || days != 1 {
		t.Errorf("expected 500 for 1 day, got %s for %d", total, days)
	}
}

func TestBedCharges_AcrossTransfer(t *testing.T) {
	start := date(2024, 3, 1, 9)
	moved := start.Add(3 * day)
	end := moved.Add(2 * day)
	segs := []Segment{
		{ChargePerDay: d("500"), From: start, To: ptr(moved)},
		{ChargePerDay: d("800"), From: moved},
	}

	total, days := BedCharges(segs, end)
	if !total.Equal(d("3100")) {
		t.Errorf("expected 3100, got %s", total)
	}
	if days != 5 {
		t.Errorf("expected 5 days, got %d", days)
	}
}

func TestSegment_ClosedSegmentIgnoresLaterAsOf(t *testing.T) {
	from := date(2024, 3, 1, 9)
	s := Segment{ChargePerDay: d("100"), From: from, To: ptr(from.Add(2 * day))}
	if got := s.Days(from.Add(30 * day)); got != 2 {
		t.Errorf("expected 2 days, got %d", got)
	}
	if got := s.Days(from.Add(day)); got != 1 {
		t.Errorf("expected asOf to cap the segment at 1 day, got %d", got)
	}
}

func TestAdmissionCharges(t *testing.T) {
	start := date(2024, 3, 1, 9)
	in := AdmissionInput{
		Segments:         []Segment{{ChargePerDay: d("1000"), From: start}},
		MedicineInvoices: []decimal.Decimal{d("250.50"), d("49.50")},
		ServiceInvoices:  []decimal.Decimal{d("1200")},
		AdmissionFee:     d("500"),
		Discount:         d("200"),
		AdvancePaid:      d("2000"),
		Payments:         []decimal.Decimal{d("1000")},
	}

	b := AdmissionCharges(in, start.Add(2*day))

	checks := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"bed", b.BedCharges, "2000"},
		{"medicine", b.MedicineCharges, "300"},
		{"service", b.ServiceCharges, "1200"},
		{"subtotal", b.Subtotal, "4000"},
		{"grand total", b.GrandTotal, "3800"},
		{"paid", b.Paid, "3000"},
		{"due", b.Due, "800"},
	}
	for _, c := range checks {
		if !c.got.Equal(d(c.want)) {
			t.Errorf("%s = %s, want %s", c.name, c.got, c.want)
		}
	}
	if b.TotalDays != 2 {
		t.Errorf("expected 2 days, got %d", b.TotalDays)
	}
}

func TestInvestigationDue_Status(t *testing.T) {
	tests := []struct {
		name     string
		payments []decimal.Decimal
		due      string
		status   PaymentStatus
	}{
		{"no payments", nil, "900", StatusPending},
		{"partial", []decimal.Decimal{d("400")}, "500", StatusPartial},
		{"exact", []decimal.Decimal{d("400"), d("500")}, "0", StatusPaid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := InvestigationDue(d("1000"), d("100"), tt.payments)
			if !s.GrandTotal.Equal(d("900")) {
				t.Errorf("grand total = %s, want 900", s.GrandTotal)
			}
			if !s.Due.Equal(d(tt.due)) {
				t.Errorf("due = %s, want %s", s.Due, tt.due)
			}
			if s.Status != tt.status {
				t.Errorf("status = %s, want %s", s.Status, tt.status)
			}
		})
	}
}

func TestCheckPayment_PaidInFullRejectsMore(t *testing.T) {
	grand := d("900")
	paid := decimal.Zero
	for _, amt := range []string{"400", "500"} {
		if err := CheckPayment(grand, paid, d(amt)); err != nil {
			t.Fatalf("payment %s: unexpected error %v", amt, err)
		}
		paid = paid.Add(d(amt))
	}
	if StatusFor(grand, paid) != StatusPaid {
		t.Fatalf("expected Paid after settling the bill")
	}

	err := CheckPayment(grand, paid, d("0.01"))
	if !errors.Is(err, apperror.ErrOverpayment) {
		t.Fatalf("expected overpayment, got %v", err)
	}
	if !grand.Sub(paid).IsZero() {
		t.Error("due must stay zero after a rejected payment")
	}
}

func TestCheckPayment_NonPositive(t *testing.T) {
	for _, amt := range []string{"0", "-5"} {
		err := CheckPayment(d("100"), decimal.Zero, d(amt))
		if !errors.Is(err, apperror.ErrValidation) {
			t.Errorf("amount %s: expected validation error, got %v", amt, err)
		}
	}
}

func TestCheckDiscount(t *testing.T) {
	tests := []struct {
		discount string
		wantErr  bool
	}{
		{"0", false},
		{"100", false},
		{"100.01", true},
		{"-1", true},
	}
	for _, tt := range tests {
		err := CheckDiscount(d("100"), d(tt.discount))
		if (err != nil) != tt.wantErr {
			t.Errorf("CheckDiscount(100, %s) error = %v, wantErr %v", tt.discount, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, apperror.ErrValidation) {
			t.Errorf("expected validation kind, got %v", err)
		}
	}
}

func TestLineTotal(t *testing.T) {
	if got := LineTotal(3, d("12.25")); !got.Equal(d("36.75")) {
		t.Errorf("LineTotal = %s, want 36.75", got)
	}
}

func TestPaymentMethod(t *testing.T) {
	if m, err := PaymentMethod(""); err != nil || m != DefaultPaymentMethod {
		t.Errorf("expected Cash default, got %q, %v", m, err)
	}
	if m, err := PaymentMethod("Mobile Banking"); err != nil || m != "Mobile Banking" {
		t.Errorf("expected Mobile Banking, got %q, %v", m, err)
	}
	if _, err := PaymentMethod("Bitcoin"); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}
