package admission

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/carehub/hms/internal/domain/bed"
	"github.com/carehub/hms/internal/domain/billing"
	"github.com/carehub/hms/internal/domain/catalog"
	"github.com/carehub/hms/internal/domain/medicine"
	"github.com/carehub/hms/internal/platform/db"
	"github.com/carehub/hms/pkg/apperror"
)

// Beds is the part of the bed service an admission drives.
type Beds interface {
	Occupy(ctx context.Context, bedID, admissionID uuid.UUID) (*bed.Bed, error)
	Release(ctx context.Context, bedID, admissionID uuid.UUID) error
	Transfer(ctx context.Context, fromID, toID, admissionID uuid.UUID) (*bed.Bed, error)
}

type Stock interface {
	Dispense(ctx context.Context, req medicine.DispenseRequest, reference string) (*medicine.Dispensed, error)
}

type Catalog interface {
	Active(ctx context.Context, id uuid.UUID) (*catalog.MedicalService, error)
}

type AdmitInput struct {
	PatientID          uuid.UUID
	ConsultantID       *uuid.UUID
	ReferredBy         string
	ContactPersonName  string
	ContactPersonPhone string
	BedID              uuid.UUID
	AdmissionDate      time.Time
	AdmissionFee       decimal.Decimal
	AdvanceAmount      decimal.Decimal
}

type MedicineItem struct {
	MedicineID  uuid.UUID `json:"medicine_id"`
	BatchNumber string    `json:"batch_number,omitempty"`
	Quantity    int       `json:"quantity"`
}

type ServiceItem struct {
	ServiceID uuid.UUID `json:"service_id"`
	Quantity  int       `json:"quantity"`
}

type PaymentInput struct {
	Amount     decimal.Decimal
	Method     string
	ReceivedBy string
}

type DischargeInput struct {
	DischargeDate time.Time
	Discount      decimal.Decimal
	Paid          decimal.Decimal
	PaymentMethod string
	ReceivedBy    string
	Remarks       string
}

type Service struct {
	repo     Repository
	tx       db.Transactor
	beds     Beds
	stock    Stock
	services Catalog
	now      func() time.Time
}

func NewService(repo Repository, tx db.Transactor, beds Beds, stock Stock, services Catalog) *Service {
	return &Service{repo: repo, tx: tx, beds: beds, stock: stock, services: services, now: time.Now}
}

func validateAdmit(in *AdmitInput) error {
	in.ContactPersonName = strings.TrimSpace(in.ContactPersonName)
	in.ContactPersonPhone = strings.TrimSpace(in.ContactPersonPhone)
	in.ReferredBy = strings.TrimSpace(in.ReferredBy)
	switch {
	case in.PatientID == uuid.Nil:
		return apperror.Validation("patient_id is required")
	case in.BedID == uuid.Nil:
		return apperror.Validation("bed_id is required")
	case in.ContactPersonName == "":
		return apperror.Validation("contact_person_name is required")
	case in.ContactPersonPhone == "":
		return apperror.Validation("contact_person_phone is required")
	case in.AdmissionFee.IsNegative():
		return apperror.Validation("admission_fee must not be negative")
	case in.AdvanceAmount.IsNegative():
		return apperror.Validation("advance_amount must not be negative")
	}
	return nil
}

// Admit occupies the bed and opens the first segment at the bed's current rate.
func (s *Service) Admit(ctx context.Context, in AdmitInput) (*Admission, error) {
	if err := validateAdmit(&in); err != nil {
		return nil, err
	}
	if in.AdmissionDate.IsZero() {
		in.AdmissionDate = s.now()
	}

	a := &Admission{
		ID:                 uuid.New(),
		PatientID:          in.PatientID,
		ConsultantID:       in.ConsultantID,
		ReferredBy:         in.ReferredBy,
		ContactPersonName:  in.ContactPersonName,
		ContactPersonPhone: in.ContactPersonPhone,
		AdmissionDate:      in.AdmissionDate,
		AdmissionFee:       in.AdmissionFee,
		AdvanceAmount:      in.AdvanceAmount,
		Status:             StatusAdmitted,
		MedicineInvoices:   []MedicineInvoice{},
		ServiceInvoices:    []ServiceInvoice{},
		Payments:           []Payment{},
	}
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		b, err := s.beds.Occupy(ctx, in.BedID, a.ID)
		if err != nil {
			return err
		}
		a.Open(b.ID, b.BedNumber, b.ChargePerDay, in.AdmissionDate)
		return s.repo.Create(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ChangeBed moves the patient to another bed. The open segment closes now and
// the new one bills at the new bed's rate.
func (s *Service) ChangeBed(ctx context.Context, id, newBedID uuid.UUID) (*Admission, error) {
	var out *Admission
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		a, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := a.ensureAdmitted(); err != nil {
			return err
		}
		b, err := s.beds.Transfer(ctx, a.BedID, newBedID, a.ID)
		if err != nil {
			return err
		}
		if err := a.MoveTo(b.ID, b.BedNumber, b.ChargePerDay, s.now()); err != nil {
			return err
		}
		if err := s.repo.SaveSegments(ctx, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	return out, err
}

func reference(a *Admission) string {
	return fmt.Sprintf("admission #%d", a.Number)
}

// lockOrder returns item indexes sorted by medicine id so concurrent
// dispensings lock medicine rows in the same order.
func lockOrder(items []MedicineItem) []int {
	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		a, b := items[idx[i]].MedicineID, items[idx[j]].MedicineID
		return bytes.Compare(a[:], b[:]) < 0
	})
	return idx
}

// AddMedicine dispenses every item to the ward as one invoice. Any shortage
// rolls back the whole invoice.
func (s *Service) AddMedicine(ctx context.Context, id uuid.UUID, items []MedicineItem) (*MedicineInvoice, error) {
	if len(items) == 0 {
		return nil, apperror.Validation("at least one medicine is required")
	}
	for _, it := range items {
		if it.MedicineID == uuid.Nil {
			return nil, apperror.Validation("medicine_id is required")
		}
		if it.Quantity <= 0 {
			return nil, apperror.Validation("quantity must be greater than zero")
		}
	}

	var inv *MedicineInvoice
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		a, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := a.ensureAdmitted(); err != nil {
			return err
		}

		dispensed := make([]*medicine.Dispensed, len(items))
		for _, i := range lockOrder(items) {
			it := items[i]
			d, err := s.stock.Dispense(ctx, medicine.DispenseRequest{
				MedicineID:  it.MedicineID,
				BatchNumber: it.BatchNumber,
				Quantity:    it.Quantity,
			}, reference(a))
			if err != nil {
				return err
			}
			dispensed[i] = d
		}

		inv = &MedicineInvoice{Date: s.now(), TotalAmount: decimal.Zero}
		for _, d := range dispensed {
			for _, c := range d.Consumed {
				line := MedicineLine{
					MedicineID:  d.MedicineID,
					Name:        d.MedicineName,
					BatchNumber: c.BatchNumber,
					Quantity:    c.Quantity,
					UnitPrice:   c.UnitPrice,
					Amount:      c.Amount(),
				}
				inv.Lines = append(inv.Lines, line)
				inv.TotalAmount = inv.TotalAmount.Add(line.Amount)
			}
		}
		return s.repo.AddMedicineInvoice(ctx, a.ID, inv)
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// AddService bills catalogue services at their current price. A zero
// quantity means one.
func (s *Service) AddService(ctx context.Context, id uuid.UUID, items []ServiceItem) (*ServiceInvoice, error) {
	if len(items) == 0 {
		return nil, apperror.Validation("at least one service is required")
	}

	var inv *ServiceInvoice
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		a, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := a.ensureAdmitted(); err != nil {
			return err
		}

		inv = &ServiceInvoice{Date: s.now(), TotalAmount: decimal.Zero}
		for _, it := range items {
			qty := it.Quantity
			if qty == 0 {
				qty = 1
			}
			if qty < 0 {
				return apperror.Validation("quantity must not be negative")
			}
			svc, err := s.services.Active(ctx, it.ServiceID)
			if err != nil {
				return err
			}
			line := ServiceLine{
				ServiceID:   svc.ID,
				ServiceName: svc.Name,
				UnitPrice:   svc.Price,
				Quantity:    qty,
				Amount:      billing.LineTotal(qty, svc.Price),
			}
			inv.Lines = append(inv.Lines, line)
			inv.TotalAmount = inv.TotalAmount.Add(line.Amount)
		}
		return s.repo.AddServiceInvoice(ctx, a.ID, inv)
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// AddPayment records a payment against the running bill, or against the
// final bill once discharged. The admission row stays locked until commit,
// so two payments cannot both pass against the same due.
func (s *Service) AddPayment(ctx context.Context, id uuid.UUID, in PaymentInput) (*Payment, error) {
	method, err := billing.PaymentMethod(strings.TrimSpace(in.Method))
	if err != nil {
		return nil, err
	}
	p := &Payment{
		Amount:     in.Amount,
		Method:     method,
		ReceivedBy: in.ReceivedBy,
		PaidAt:     s.now(),
	}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		a, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := a.AddPayment(*p, p.PaidAt); err != nil {
			return err
		}
		return s.repo.AddPayment(ctx, a.ID, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Charges returns the bill as of asOf, or now when asOf is zero.
func (s *Service) Charges(ctx context.Context, id uuid.UUID, asOf time.Time) (billing.Breakdown, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return billing.Breakdown{}, err
	}
	if asOf.IsZero() {
		asOf = s.now()
	}
	return a.Charges(asOf), nil
}

// Discharge finalizes the stay. The snapshot, the segment close, the status
// change, the final payment and the bed release commit together.
func (s *Service) Discharge(ctx context.Context, id uuid.UUID, in DischargeInput) (*Discharge, error) {
	if in.DischargeDate.IsZero() {
		in.DischargeDate = s.now()
	}
	method, err := billing.PaymentMethod(strings.TrimSpace(in.PaymentMethod))
	if err != nil {
		return nil, err
	}
	var out *Discharge
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		a, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		paidBefore := len(a.Payments)
		d, err := a.Discharge(in.DischargeDate, in.Discount, in.Paid, strings.TrimSpace(in.Remarks))
		if err != nil {
			return err
		}
		if len(a.Payments) > paidBefore {
			p := &a.Payments[len(a.Payments)-1]
			p.Method = method
			p.ReceivedBy = in.ReceivedBy
			if err := s.repo.AddPayment(ctx, a.ID, p); err != nil {
				return err
			}
		}
		if err := s.repo.SaveDischarge(ctx, a, d); err != nil {
			return err
		}
		if err := s.beds.Release(ctx, a.BedID, a.ID); err != nil {
			return err
		}
		out = d
		return nil
	})
	return out, err
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Admission, error) {
	return s.repo.GetByID(ctx, id)
}

// Lock loads the admission with its row locked until the surrounding
// transaction ends.
func (s *Service) Lock(ctx context.Context, id uuid.UUID) (*Admission, error) {
	return s.repo.GetForUpdate(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Admission, int, error) {
	return s.repo.List(ctx, f, limit, offset)
}

func (s *Service) GetDischarge(ctx context.Context, id uuid.UUID) (*Discharge, error) {
	return s.repo.GetDischarge(ctx, id)
}
