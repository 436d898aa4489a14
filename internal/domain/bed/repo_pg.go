package bed

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carehub/hms/internal/platform/db"
	"github.com/carehub/hms/pkg/apperror"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const bedCols = `id, bed_number, bed_name, charge_per_day, facilities, is_occupied,
	current_admission_id, is_active, created_at`

func scanBed(row pgx.Row) (*Bed, error) {
	var b Bed
	err := row.Scan(&b.ID, &b.BedNumber, &b.BedName, &b.ChargePerDay, &b.Facilities,
		&b.IsOccupied, &b.CurrentAdmissionID, &b.IsActive, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("bed not found")
	}
	return &b, err
}

func (r *repoPG) Create(ctx context.Context, b *Bed) error {
	b.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO bed (id, bed_number, bed_name, charge_per_day, facilities, is_active)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at`,
		b.ID, b.BedNumber, b.BedName, b.ChargePerDay, b.Facilities, b.IsActive,
	).Scan(&b.CreatedAt)
	if db.IsUniqueViolation(err) {
		return apperror.Validation("bed number %s is already in use", b.BedNumber)
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Bed, error) {
	return scanBed(r.conn(ctx).QueryRow(ctx, `SELECT `+bedCols+` FROM bed WHERE id = $1`, id))
}

func (r *repoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Bed, error) {
	return scanBed(r.conn(ctx).QueryRow(ctx, `SELECT `+bedCols+` FROM bed WHERE id = $1 FOR UPDATE`, id))
}

func (r *repoPG) Update(ctx context.Context, b *Bed) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE bed SET bed_number=$2, bed_name=$3, charge_per_day=$4, facilities=$5, is_active=$6
		WHERE id = $1`,
		b.ID, b.BedNumber, b.BedName, b.ChargePerDay, b.Facilities, b.IsActive)
	if db.IsUniqueViolation(err) {
		return apperror.Validation("bed number %s is already in use", b.BedNumber)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("bed not found")
	}
	return nil
}

func (r *repoPG) SaveOccupancy(ctx context.Context, b *Bed) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE bed SET is_occupied=$2, current_admission_id=$3 WHERE id = $1`,
		b.ID, b.IsOccupied, b.CurrentAdmissionID)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM bed WHERE id = $1`, id)
	if db.IsForeignKeyViolation(err) {
		return apperror.Validation("bed has admission history; deactivate it instead")
	}
	return err
}

func (r *repoPG) List(ctx context.Context, availableOnly bool) ([]*Bed, error) {
	query := `SELECT ` + bedCols + ` FROM bed`
	if availableOnly {
		query += ` WHERE NOT is_occupied AND is_active`
	}
	rows, err := r.conn(ctx).Query(ctx, query+` ORDER BY bed_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Bed
	for rows.Next() {
		b, err := scanBed(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
