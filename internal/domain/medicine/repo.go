package medicine

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Create inserts the medicine with its batches and pending movements.
	Create(ctx context.Context, m *Medicine) error
	GetByID(ctx context.Context, id uuid.UUID) (*Medicine, error)
	// GetForUpdate loads the medicine and locks its row until the
	// surrounding transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Medicine, error)
	// FindByIdentityForUpdate returns nil without error when no medicine
	// has that name, generic name and brand.
	FindByIdentityForUpdate(ctx context.Context, name, genericName, brand string) (*Medicine, error)
	// SaveStock writes batches, current stock and pending movements.
	SaveStock(ctx context.Context, m *Medicine, reference string) error
	UpdateDetails(ctx context.Context, m *Medicine) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Medicine, int, error)
	All(ctx context.Context, f ListFilter) ([]*Medicine, error)
	Movements(ctx context.Context, medicineID uuid.UUID, limit, offset int) ([]*Movement, int, error)
}
