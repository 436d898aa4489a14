// Package admission tracks an inpatient stay from intake to discharge: the
// bed segments it occupied, the medicines and services charged to it, the
// payments received and the final discharge snapshot.
package admission

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/carehub/hms/internal/domain/billing"
	"github.com/carehub/hms/pkg/apperror"
)

type Status string

const (
	StatusAdmitted   Status = "Admitted"
	StatusDischarged Status = "Discharged"
)

// Segment is one stay in one bed at the rate the bed had when it was entered.
// ToDate is nil only for the segment the patient currently occupies.
type Segment struct {
	ID           uuid.UUID       `json:"id"`
	BedID        uuid.UUID       `json:"bed_id"`
	BedNumber    string          `json:"bed_number"`
	ChargePerDay decimal.Decimal `json:"charge_per_day"`
	FromDate     time.Time       `json:"from_date"`
	ToDate       *time.Time      `json:"to_date,omitempty"`
}

type MedicineLine struct {
	MedicineID  uuid.UUID       `json:"medicine_id"`
	Name        string          `json:"name"`
	BatchNumber string          `json:"batch_number"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
}

// MedicineInvoice is one dispensing to the ward. Lines are priced per
// consumed batch, so the total never changes after it is recorded.
type MedicineInvoice struct {
	ID          uuid.UUID       `json:"id"`
	Lines       []MedicineLine  `json:"lines"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Date        time.Time       `json:"date"`
}

type ServiceLine struct {
	ServiceID   uuid.UUID       `json:"service_id"`
	ServiceName string          `json:"service_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	Amount      decimal.Decimal `json:"amount"`
}

type ServiceInvoice struct {
	ID          uuid.UUID       `json:"id"`
	Lines       []ServiceLine   `json:"lines"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Date        time.Time       `json:"date"`
}

type Payment struct {
	ID         uuid.UUID       `json:"id"`
	Amount     decimal.Decimal `json:"amount"`
	Method     string          `json:"method,omitempty"`
	ReceivedBy string          `json:"received_by,omitempty"`
	PaidAt     time.Time       `json:"paid_at"`
}

type Admission struct {
	ID                 uuid.UUID         `json:"id"`
	Number             int64             `json:"admission_number"`
	PatientID          uuid.UUID         `json:"patient_id"`
	ConsultantID       *uuid.UUID        `json:"consultant_id,omitempty"`
	ReferredBy         string            `json:"referred_by,omitempty"`
	ContactPersonName  string            `json:"contact_person_name"`
	ContactPersonPhone string            `json:"contact_person_phone"`
	BedID              uuid.UUID         `json:"bed_id"`
	ChargePerDay       decimal.Decimal   `json:"charge_per_day"`
	AdmissionDate      time.Time         `json:"admission_date"`
	AdmissionFee       decimal.Decimal   `json:"admission_fee"`
	AdvanceAmount      decimal.Decimal   `json:"advance_amount"`
	Status             Status            `json:"status"`
	DischargeDate      *time.Time        `json:"discharge_date,omitempty"`
	Discount           decimal.Decimal   `json:"discount"`
	TotalBill          decimal.Decimal   `json:"total_bill"`
	Segments           []Segment         `json:"bed_history"`
	MedicineInvoices   []MedicineInvoice `json:"medicine_invoices"`
	ServiceInvoices    []ServiceInvoice  `json:"service_invoices"`
	Payments           []Payment         `json:"payments"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// Discharge is the immutable final bill of a stay.
type Discharge struct {
	ID            uuid.UUID `json:"id"`
	AdmissionID   uuid.UUID `json:"admission_id"`
	DischargeDate time.Time `json:"discharge_date"`
	billing.Breakdown
	Remarks   string    `json:"remarks,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type ListFilter struct {
	Status    Status
	PatientID *uuid.UUID
}

func (a *Admission) IsAdmitted() bool {
	return a.Status == StatusAdmitted
}

func (a *Admission) ensureAdmitted() error {
	if !a.IsAdmitted() {
		return apperror.Validation("admission #%d is already discharged", a.Number)
	}
	return nil
}

func (a *Admission) openIndex() int {
	for i := len(a.Segments) - 1; i >= 0; i-- {
		if a.Segments[i].ToDate == nil {
			return i
		}
	}
	return -1
}

// OpenSegment returns the segment for the current bed, or nil once discharged.
func (a *Admission) OpenSegment() *Segment {
	if i := a.openIndex(); i >= 0 {
		return &a.Segments[i]
	}
	return nil
}

// checkClose returns the index of the open segment if it can be closed at at.
func (a *Admission) checkClose(at time.Time) (int, error) {
	i := a.openIndex()
	if i < 0 {
		return -1, apperror.InvalidBedTransition("admission #%d has no open bed segment", a.Number)
	}
	if at.Before(a.Segments[i].FromDate) {
		return -1, apperror.Validation("date %s is before the patient entered bed %s",
			at.Format(time.RFC3339), a.Segments[i].BedNumber)
	}
	return i, nil
}

// Open starts the first segment. It is used once, at admission.
func (a *Admission) Open(bedID uuid.UUID, bedNumber string, rate decimal.Decimal, at time.Time) {
	a.BedID = bedID
	a.ChargePerDay = rate
	a.Segments = append(a.Segments, Segment{
		BedID:        bedID,
		BedNumber:    bedNumber,
		ChargePerDay: rate,
		FromDate:     at,
	})
}

// MoveTo closes the open segment at at and opens one in the new bed.
func (a *Admission) MoveTo(bedID uuid.UUID, bedNumber string, rate decimal.Decimal, at time.Time) error {
	if err := a.ensureAdmitted(); err != nil {
		return err
	}
	i, err := a.checkClose(at)
	if err != nil {
		return err
	}
	closed := at
	a.Segments[i].ToDate = &closed
	a.Open(bedID, bedNumber, rate, at)
	return nil
}

func (a *Admission) billingInput(segments []Segment, discount decimal.Decimal) billing.AdmissionInput {
	in := billing.AdmissionInput{
		AdmissionFee: a.AdmissionFee,
		Discount:     discount,
		AdvancePaid:  a.AdvanceAmount,
	}
	for _, s := range segments {
		in.Segments = append(in.Segments, billing.Segment{ChargePerDay: s.ChargePerDay, From: s.FromDate, To: s.ToDate})
	}
	for _, inv := range a.MedicineInvoices {
		in.MedicineInvoices = append(in.MedicineInvoices, inv.TotalAmount)
	}
	for _, inv := range a.ServiceInvoices {
		in.ServiceInvoices = append(in.ServiceInvoices, inv.TotalAmount)
	}
	for _, p := range a.Payments {
		in.Payments = append(in.Payments, p.Amount)
	}
	return in
}

// Charges is the running bill. A discharged stay is always billed as of its
// discharge date with the discount granted then.
func (a *Admission) Charges(asOf time.Time) billing.Breakdown {
	if a.DischargeDate != nil {
		asOf = *a.DischargeDate
	}
	return billing.AdmissionCharges(a.billingInput(a.Segments, a.Discount), asOf)
}

// AddPayment validates amount against the current due and appends it.
func (a *Admission) AddPayment(p Payment, asOf time.Time) error {
	b := a.Charges(asOf)
	if err := billing.CheckPayment(b.GrandTotal, b.Paid, p.Amount); err != nil {
		return err
	}
	a.Payments = append(a.Payments, p)
	return nil
}

// Discharge closes the open segment at at, prices the stay with discount,
// records extraPaid as a final payment and freezes the admission. Nothing
// changes when any check fails.
func (a *Admission) Discharge(at time.Time, discount, extraPaid decimal.Decimal, remarks string) (*Discharge, error) {
	if !a.IsAdmitted() {
		return nil, apperror.InvalidBedTransition("admission #%d is already discharged", a.Number)
	}
	i, err := a.checkClose(at)
	if err != nil {
		return nil, err
	}
	if extraPaid.IsNegative() {
		return nil, apperror.Validation("paid amount must not be negative")
	}

	segments := append([]Segment(nil), a.Segments...)
	closed := at
	segments[i].ToDate = &closed

	b := billing.AdmissionCharges(a.billingInput(segments, discount), at)
	if err := billing.CheckDiscount(b.Subtotal, discount); err != nil {
		return nil, err
	}
	if extraPaid.IsPositive() {
		if err := billing.CheckPayment(b.GrandTotal, b.Paid, extraPaid); err != nil {
			return nil, err
		}
		a.Payments = append(a.Payments, Payment{Amount: extraPaid, PaidAt: at})
		b.Paid = b.Paid.Add(extraPaid)
		b.Due = b.GrandTotal.Sub(b.Paid)
	}

	a.Segments = segments
	a.Status = StatusDischarged
	a.DischargeDate = &closed
	a.Discount = discount
	a.TotalBill = b.GrandTotal

	return &Discharge{
		AdmissionID:   a.ID,
		DischargeDate: at,
		Breakdown:     b,
		Remarks:       remarks,
	}, nil
}
