package doctor

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/carehub/hms/internal/platform/db"
	"github.com/carehub/hms/pkg/apperror"
)

type Doctor struct {
	ID              uuid.UUID       `json:"id"`
	Name            string          `json:"name"`
	Specialization  string          `json:"specialization"`
	Phone           string          `json:"phone"`
	Email           string          `json:"email"`
	ConsultationFee decimal.Decimal `json:"consultation_fee"`
	IsActive        bool            `json:"is_active"`
	CreatedAt       time.Time       `json:"created_at"`
}

type Repository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	Update(ctx context.Context, d *Doctor) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, activeOnly bool) ([]*Doctor, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const doctorCols = `id, name, specialization, phone, email, consultation_fee, is_active, created_at`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.Name, &d.Specialization, &d.Phone, &d.Email,
		&d.ConsultationFee, &d.IsActive, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("doctor not found")
	}
	return &d, err
}

func (r *repoPG) Create(ctx context.Context, d *Doctor) error {
	d.ID = uuid.New()
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO doctor (id, name, specialization, phone, email, consultation_fee, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at`,
		d.ID, d.Name, d.Specialization, d.Phone, d.Email, d.ConsultationFee, d.IsActive,
	).Scan(&d.CreatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return scanDoctor(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctor WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, d *Doctor) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE doctor SET name=$2, specialization=$3, phone=$4, email=$5,
			consultation_fee=$6, is_active=$7
		WHERE id = $1`,
		d.ID, d.Name, d.Specialization, d.Phone, d.Email, d.ConsultationFee, d.IsActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("doctor not found")
	}
	return nil
}

// Delete deactivates a doctor referenced by admissions or bills instead of
// removing the row.
func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	q := db.Conn(ctx, r.pool)
	tag, err := q.Exec(ctx, `DELETE FROM doctor WHERE id = $1`, id)
	if db.IsForeignKeyViolation(err) {
		tag, err = q.Exec(ctx, `UPDATE doctor SET is_active = FALSE WHERE id = $1`, id)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("doctor not found")
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, activeOnly bool) ([]*Doctor, error) {
	query := `SELECT ` + doctorCols + ` FROM doctor`
	if activeOnly {
		query += ` WHERE is_active`
	}
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query+` ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func validate(d *Doctor) error {
	d.Name = strings.TrimSpace(d.Name)
	d.Specialization = strings.TrimSpace(d.Specialization)
	d.Phone = strings.TrimSpace(d.Phone)
	if d.Name == "" {
		return apperror.Validation("name is required")
	}
	if d.Specialization == "" {
		return apperror.Validation("specialization is required")
	}
	if d.Phone == "" {
		return apperror.Validation("phone is required")
	}
	if d.ConsultationFee.IsNegative() {
		return apperror.Validation("consultation_fee must not be negative")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, d *Doctor) error {
	if err := validate(d); err != nil {
		return err
	}
	d.IsActive = true
	return s.repo.Create(ctx, d)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, d *Doctor) error {
	if err := validate(d); err != nil {
		return err
	}
	return s.repo.Update(ctx, d)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, activeOnly bool) ([]*Doctor, error) {
	return s.repo.List(ctx, activeOnly)
}
