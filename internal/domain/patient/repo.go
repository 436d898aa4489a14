package patient

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	NextCode(ctx context.Context) (string, error)
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	// GetByKey returns nil without error when the key is unknown.
	GetByKey(ctx context.Context, key string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, query string, limit, offset int) ([]*Patient, int, error)
}
