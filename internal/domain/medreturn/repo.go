package medreturn

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	NextNumber(ctx context.Context) (int64, error)
	Create(ctx context.Context, r *MedicineReturn) error
	GetByID(ctx context.Context, id uuid.UUID) (*MedicineReturn, error)
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*MedicineReturn, int, error)
	// Returned lists lines of earlier, not rejected, returns against the
	// same source document.
	Returned(ctx context.Context, t Type, sourceID uuid.UUID) ([]Line, error)
}
