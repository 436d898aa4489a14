package sale

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// NextNumber reserves a bill number. Numbers of rolled back sales are
	// not reused.
	NextNumber(ctx context.Context) (int64, error)
	Create(ctx context.Context, s *OutdoorSale) error
	GetByID(ctx context.Context, id uuid.UUID) (*OutdoorSale, error)
	GetByNumber(ctx context.Context, number int64) (*OutdoorSale, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*OutdoorSale, error)
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*OutdoorSale, int, error)
}
