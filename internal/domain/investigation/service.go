package investigation

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/carehub/hms/internal/domain/billing"
	"github.com/carehub/hms/internal/domain/catalog"
	"github.com/carehub/hms/internal/platform/db"
	"github.com/carehub/hms/pkg/apperror"
	"github.com/carehub/hms/pkg/dateutil"
)

type Catalog interface {
	Active(ctx context.Context, id uuid.UUID) (*catalog.MedicalService, error)
}

type Item struct {
	ServiceID uuid.UUID `json:"service_id"`
	Quantity  int       `json:"quantity"`
}

type CreateInput struct {
	PatientID     uuid.UUID
	ConsultantID  uuid.UUID
	BillDate      time.Time
	DeliveryDate  time.Time
	Items         []Item
	Discount      decimal.Decimal
	Paid          decimal.Decimal
	PaymentMethod string
	ReceivedBy    string
	Remarks       string
}

type PaymentInput struct {
	Amount     decimal.Decimal
	Method     string
	ReceivedBy string
	Remarks    string
}

type Service struct {
	repo     Repository
	tx       db.Transactor
	services Catalog
	now      func() time.Time
}

func NewService(repo Repository, tx db.Transactor, services Catalog) *Service {
	return &Service{repo: repo, tx: tx, services: services, now: time.Now}
}

func validateCreate(in *CreateInput) error {
	switch {
	case in.PatientID == uuid.Nil:
		return apperror.Validation("patient_id is required")
	case in.ConsultantID == uuid.Nil:
		return apperror.Validation("consultant_id is required")
	case in.DeliveryDate.IsZero():
		return apperror.Validation("delivery_date is required")
	case len(in.Items) == 0:
		return apperror.Validation("at least one service is required")
	case in.Paid.IsNegative():
		return apperror.Validation("paid must not be negative")
	}
	if in.DeliveryDate.Before(dateutil.StartOfDay(in.BillDate)) {
		return apperror.Validation("delivery_date is before the bill date")
	}
	return nil
}

// Create prices each item from the catalogue and records an initial
// payment when one is given.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Bill, error) {
	if in.BillDate.IsZero() {
		in.BillDate = s.now()
	}
	if err := validateCreate(&in); err != nil {
		return nil, err
	}
	method, err := billing.PaymentMethod(in.PaymentMethod)
	if err != nil {
		return nil, err
	}

	b := &Bill{
		BillDate:     in.BillDate,
		PatientID:    in.PatientID,
		ConsultantID: in.ConsultantID,
		DeliveryDate: in.DeliveryDate,
		Discount:     in.Discount,
		ReportStatus: ReportPending,
		Remarks:      strings.TrimSpace(in.Remarks),
		Payments:     []Payment{},
	}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		for _, it := range in.Items {
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
			b.Lines = append(b.Lines, Line{
				ServiceID:   svc.ID,
				ServiceName: svc.Name,
				UnitPrice:   svc.Price,
				Quantity:    qty,
				Amount:      billing.LineTotal(qty, svc.Price),
			})
		}
		b.Settle()
		if err := billing.CheckDiscount(b.TotalAmount, b.Discount); err != nil {
			return err
		}
		if in.Paid.IsPositive() {
			if err := b.AddPayment(Payment{
				Amount:     in.Paid,
				Method:     method,
				ReceivedBy: in.ReceivedBy,
				Remarks:    "Initial payment",
				PaidAt:     s.now(),
			}); err != nil {
				return err
			}
		}
		return s.repo.Create(ctx, b)
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Bill, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Bill, int, error) {
	return s.repo.List(ctx, f, limit, offset)
}

// AddPayment collects an installment. The bill row is locked so concurrent
// payments see each other.
func (s *Service) AddPayment(ctx context.Context, id uuid.UUID, in PaymentInput) (*Bill, error) {
	method, err := billing.PaymentMethod(in.Method)
	if err != nil {
		return nil, err
	}
	var out *Bill
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		b, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := b.AddPayment(Payment{
			Amount:     in.Amount,
			Method:     method,
			ReceivedBy: in.ReceivedBy,
			Remarks:    strings.TrimSpace(in.Remarks),
			PaidAt:     s.now(),
		}); err != nil {
			return err
		}
		if err := s.repo.AddPayment(ctx, b, &b.Payments[len(b.Payments)-1]); err != nil {
			return err
		}
		out = b
		return nil
	})
	return out, err
}

func (s *Service) Payments(ctx context.Context, id uuid.UUID) ([]Payment, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return b.Payments, nil
}

// UpdateReport advances the report status and optionally replaces the remarks.
func (s *Service) UpdateReport(ctx context.Context, id uuid.UUID, status ReportStatus, by string, remarks *string) (*Bill, error) {
	var out *Bill
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		b, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if status != "" {
			if err := b.AdvanceReport(status, by, s.now()); err != nil {
				return err
			}
		}
		if remarks != nil {
			b.Remarks = strings.TrimSpace(*remarks)
		}
		if err := s.repo.UpdateReport(ctx, b); err != nil {
			return err
		}
		out = b
		return nil
	})
	return out, err
}
