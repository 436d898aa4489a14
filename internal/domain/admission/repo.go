package admission

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists admissions together with their segments, invoices
// and payments. Writers are called inside the service's transaction.
type Repository interface {
	Create(ctx context.Context, a *Admission) error
	GetByID(ctx context.Context, id uuid.UUID) (*Admission, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Admission, error)
	SaveSegments(ctx context.Context, a *Admission) error
	AddMedicineInvoice(ctx context.Context, admissionID uuid.UUID, inv *MedicineInvoice) error
	AddServiceInvoice(ctx context.Context, admissionID uuid.UUID, inv *ServiceInvoice) error
	AddPayment(ctx context.Context, admissionID uuid.UUID, p *Payment) error
	SaveDischarge(ctx context.Context, a *Admission, d *Discharge) error
	GetDischarge(ctx context.Context, admissionID uuid.UUID) (*Discharge, error)
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Admission, int, error)
}
