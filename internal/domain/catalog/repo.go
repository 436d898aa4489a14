package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carehub/hms/internal/platform/db"
	"github.com/carehub/hms/pkg/apperror"
)

type Repository interface {
	Create(ctx context.Context, s *MedicalService) error
	GetByID(ctx context.Context, id uuid.UUID) (*MedicalService, error)
	Update(ctx context.Context, s *MedicalService) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, category string, activeOnly bool) ([]*MedicalService, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const serviceCols = `id, name, category, price, description, is_active, created_at`

func scanService(row pgx.Row) (*MedicalService, error) {
	var s MedicalService
	err := row.Scan(&s.ID, &s.Name, &s.Category, &s.Price, &s.Description, &s.IsActive, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("service not found")
	}
	return &s, err
}

func (r *repoPG) Create(ctx context.Context, s *MedicalService) error {
	s.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO medical_service (id, name, category, price, description, is_active)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at`,
		s.ID, s.Name, s.Category, s.Price, s.Description, s.IsActive,
	).Scan(&s.CreatedAt)
	if db.IsUniqueViolation(err) {
		return apperror.Validation("a service named %s already exists", s.Name)
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*MedicalService, error) {
	return scanService(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+serviceCols+` FROM medical_service WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, s *MedicalService) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE medical_service SET name=$2, category=$3, price=$4, description=$5, is_active=$6
		WHERE id = $1`,
		s.ID, s.Name, s.Category, s.Price, s.Description, s.IsActive)
	if db.IsUniqueViolation(err) {
		return apperror.Validation("a service named %s already exists", s.Name)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("service not found")
	}
	return nil
}

// Delete only deactivates: invoice lines keep their own copy of name and
// price, but the catalogue entry stays for reporting.
func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `UPDATE medical_service SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("service not found")
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, category string, activeOnly bool) ([]*MedicalService, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+serviceCols+` FROM medical_service
		WHERE ($1 = '' OR category = $1) AND (NOT $2 OR is_active)
		ORDER BY name`, category, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*MedicalService
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
