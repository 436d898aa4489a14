package bed

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, b *Bed) error
	GetByID(ctx context.Context, id uuid.UUID) (*Bed, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Bed, error)
	Update(ctx context.Context, b *Bed) error
	SaveOccupancy(ctx context.Context, b *Bed) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, availableOnly bool) ([]*Bed, error)
}
