// Package investigation bills diagnostic services to outpatients, collects
// payments against the bill in installments and tracks report delivery.
package investigation

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/carehub/hms/internal/domain/billing"
	"github.com/carehub/hms/pkg/apperror"
)

type ReportStatus string

const (
	ReportPending   ReportStatus = "Pending"
	ReportReady     ReportStatus = "Ready"
	ReportDelivered ReportStatus = "Delivered"
)

var reportRank = map[ReportStatus]int{
	ReportPending:   0,
	ReportReady:     1,
	ReportDelivered: 2,
}

type Line struct {
	ServiceID   uuid.UUID       `json:"service_id"`
	ServiceName string          `json:"service_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	Amount      decimal.Decimal `json:"amount"`
}

type Payment struct {
	ID         uuid.UUID       `json:"id"`
	Amount     decimal.Decimal `json:"amount"`
	Method     string          `json:"payment_method"`
	ReceivedBy string          `json:"received_by,omitempty"`
	Remarks    string          `json:"remarks,omitempty"`
	PaidAt     time.Time       `json:"paid_at"`
}

// Bill is an investigation bill. Paid, Due and PaymentStatus are derived
// from Payments and kept in the row only for filtering.
type Bill struct {
	ID                uuid.UUID             `json:"id"`
	Number            int64                 `json:"bill_number"`
	BillDate          time.Time             `json:"bill_date"`
	PatientID         uuid.UUID             `json:"patient_id"`
	ConsultantID      uuid.UUID             `json:"consultant_id"`
	DeliveryDate      time.Time             `json:"delivery_date"`
	Lines             []Line                `json:"lines"`
	TotalAmount       decimal.Decimal       `json:"total_amount"`
	Discount          decimal.Decimal       `json:"discount"`
	GrandTotal        decimal.Decimal       `json:"grand_total"`
	Paid              decimal.Decimal       `json:"paid"`
	Due               decimal.Decimal       `json:"due"`
	PaymentStatus     billing.PaymentStatus `json:"payment_status"`
	ReportStatus      ReportStatus          `json:"report_status"`
	ReportDeliveredAt *time.Time            `json:"report_delivered_at,omitempty"`
	ReportDeliveredBy string                `json:"report_delivered_by,omitempty"`
	Remarks           string                `json:"remarks,omitempty"`
	Payments          []Payment             `json:"payments"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
}

type ListFilter struct {
	PaymentStatus billing.PaymentStatus
	ReportStatus  ReportStatus
	PatientID     *uuid.UUID
	HasDue        bool
}

func (b *Bill) amounts() []decimal.Decimal {
	out := make([]decimal.Decimal, len(b.Payments))
	for i, p := range b.Payments {
		out[i] = p.Amount
	}
	return out
}

// Settle recomputes the derived totals from the lines and the payment ledger.
func (b *Bill) Settle() {
	total := decimal.Zero
	for _, l := range b.Lines {
		total = total.Add(l.Amount)
	}
	b.TotalAmount = total
	s := billing.InvestigationDue(b.TotalAmount, b.Discount, b.amounts())
	b.GrandTotal = s.GrandTotal
	b.Paid = s.Paid
	b.Due = s.Due
	b.PaymentStatus = s.Status
}

// AddPayment appends p if it does not exceed what is due.
func (b *Bill) AddPayment(p Payment) error {
	b.Settle()
	if err := billing.CheckPayment(b.GrandTotal, b.Paid, p.Amount); err != nil {
		return err
	}
	b.Payments = append(b.Payments, p)
	b.Settle()
	return nil
}

// AdvanceReport moves the report forward. Delivery records who handed it
// over and when; a report never moves back.
func (b *Bill) AdvanceReport(to ReportStatus, by string, at time.Time) error {
	rank, ok := reportRank[to]
	if !ok {
		return apperror.Validation("report status must be Pending, Ready or Delivered")
	}
	if rank < reportRank[b.ReportStatus] {
		return apperror.Validation("report is already %s", b.ReportStatus)
	}
	if to == b.ReportStatus {
		return nil
	}
	b.ReportStatus = to
	if to == ReportDelivered {
		delivered := at
		b.ReportDeliveredAt = &delivered
		b.ReportDeliveredBy = by
	}
	return nil
}
