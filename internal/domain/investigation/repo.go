package investigation

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, b *Bill) error
	GetByID(ctx context.Context, id uuid.UUID) (*Bill, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Bill, error)
	// AddPayment stores p and the bill's recomputed totals.
	AddPayment(ctx context.Context, b *Bill, p *Payment) error
	UpdateReport(ctx context.Context, b *Bill) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Bill, int, error)
}
