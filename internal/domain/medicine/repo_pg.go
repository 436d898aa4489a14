package medicine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

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

const medicineCols = `id, name, generic_name, brand, manufacturer, dosage_form, strength,
	category, min_stock_level, current_stock, is_active, created_at, updated_at`

const batchCols = `batch_number, quantity, unit_price, expiry_date, purchase_date, supplier`

func scanMedicine(row pgx.Row) (*Medicine, error) {
	var m Medicine
	err := row.Scan(&m.ID, &m.Name, &m.GenericName, &m.Brand, &m.Manufacturer, &m.DosageForm,
		&m.Strength, &m.Category, &m.MinStockLevel, &m.CurrentStock, &m.IsActive,
		&m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("medicine not found")
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *repoPG) loadBatches(ctx context.Context, meds ...*Medicine) error {
	if len(meds) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(meds))
	byID := make(map[uuid.UUID]*Medicine, len(meds))
	for i, m := range meds {
		ids[i] = m.ID
		byID[m.ID] = m
		m.Batches = []Batch{}
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT medicine_id, `+batchCols+`
		FROM medicine_batch
		WHERE medicine_id = ANY($1)
		ORDER BY medicine_id, position`, ids)
	if err != nil {
		return fmt.Errorf("query batches: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var medicineID uuid.UUID
		var b Batch
		if err := rows.Scan(&medicineID, &b.BatchNumber, &b.Quantity, &b.UnitPrice,
			&b.ExpiryDate, &b.PurchaseDate, &b.Supplier); err != nil {
			return fmt.Errorf("scan batch: %w", err)
		}
		if m := byID[medicineID]; m != nil {
			m.Batches = append(m.Batches, b)
		}
	}
	return rows.Err()
}

func (r *repoPG) Create(ctx context.Context, m *Medicine) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.RecomputeStock()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medicine (id, name, generic_name, brand, manufacturer, dosage_form, strength,
			category, min_stock_level, current_stock, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at, updated_at`,
		m.ID, m.Name, m.GenericName, m.Brand, m.Manufacturer, m.DosageForm, m.Strength,
		m.Category, m.MinStockLevel, m.CurrentStock, m.IsActive,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return err
	}
	return r.writeStock(ctx, m, "")
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Medicine, error) {
	m, err := scanMedicine(r.conn(ctx).QueryRow(ctx, `SELECT `+medicineCols+` FROM medicine WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	return m, r.loadBatches(ctx, m)
}

func (r *repoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Medicine, error) {
	m, err := scanMedicine(r.conn(ctx).QueryRow(ctx, `SELECT `+medicineCols+` FROM medicine WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	return m, r.loadBatches(ctx, m)
}

func (r *repoPG) FindByIdentityForUpdate(ctx context.Context, name, genericName, brand string) (*Medicine, error) {
	m, err := scanMedicine(r.conn(ctx).QueryRow(ctx, `
		SELECT `+medicineCols+` FROM medicine
		WHERE name = $1 AND generic_name = $2 AND brand = $3
		FOR UPDATE`, name, genericName, brand))
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, r.loadBatches(ctx, m)
}

func (r *repoPG) SaveStock(ctx context.Context, m *Medicine, reference string) error {
	m.RecomputeStock()
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE medicine SET current_stock = $2, updated_at = NOW() WHERE id = $1`,
		m.ID, m.CurrentStock)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("medicine not found")
	}
	return r.writeStock(ctx, m, reference)
}

// writeStock makes medicine_batch match m.Batches and appends the pending
// movements. It must run inside the caller's transaction.
func (r *repoPG) writeStock(ctx context.Context, m *Medicine, reference string) error {
	q := r.conn(ctx)

	numbers := make([]string, len(m.Batches))
	for i, b := range m.Batches {
		numbers[i] = b.BatchNumber
	}
	if _, err := q.Exec(ctx, `
		DELETE FROM medicine_batch
		WHERE medicine_id = $1 AND NOT (batch_number = ANY($2))`, m.ID, numbers); err != nil {
		return fmt.Errorf("delete removed batches: %w", err)
	}

	for i, b := range m.Batches {
		purchased := b.PurchaseDate
		if purchased.IsZero() {
			purchased = time.Now()
		}
		if _, err := q.Exec(ctx, `
			INSERT INTO medicine_batch (id, medicine_id, position, `+batchCols+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			ON CONFLICT (medicine_id, batch_number) DO UPDATE SET
				position = EXCLUDED.position,
				quantity = EXCLUDED.quantity,
				unit_price = EXCLUDED.unit_price,
				expiry_date = EXCLUDED.expiry_date,
				supplier = EXCLUDED.supplier`,
			uuid.New(), m.ID, i, b.BatchNumber, b.Quantity, b.UnitPrice,
			b.ExpiryDate, purchased, b.Supplier); err != nil {
			return fmt.Errorf("upsert batch %s: %w", b.BatchNumber, err)
		}
	}

	for _, mv := range m.PendingMovements() {
		if mv.Reference == "" {
			mv.Reference = reference
		}
		if _, err := q.Exec(ctx, `
			INSERT INTO stock_movement (id, medicine_id, kind, batch_number, quantity, unit_price, reference)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			uuid.New(), m.ID, mv.Kind, mv.BatchNumber, mv.Quantity, mv.UnitPrice, mv.Reference); err != nil {
			return fmt.Errorf("insert stock movement: %w", err)
		}
	}
	m.clearPending()
	return nil
}

func (r *repoPG) UpdateDetails(ctx context.Context, m *Medicine) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE medicine SET generic_name=$2, brand=$3, manufacturer=$4, dosage_form=$5,
			strength=$6, category=$7, min_stock_level=$8, is_active=$9, updated_at=NOW()
		WHERE id = $1`,
		m.ID, m.GenericName, m.Brand, m.Manufacturer, m.DosageForm,
		m.Strength, m.Category, m.MinStockLevel, m.IsActive)
	if db.IsUniqueViolation(err) {
		return apperror.Validation("a medicine named %s with that generic name and brand already exists", m.Name)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("medicine not found")
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM medicine WHERE id = $1`, id)
	return err
}

func filterClause(f ListFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, "%"+q+"%")
		conds = append(conds, fmt.Sprintf("(name ILIKE $%[1]d OR generic_name ILIKE $%[1]d OR brand ILIKE $%[1]d)", len(args)))
	}
	if f.InStockOnly {
		conds = append(conds, "current_stock > 0")
	}
	if f.LowStock {
		conds = append(conds, "current_stock <= min_stock_level")
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Medicine, int, error) {
	where, args := filterClause(f)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM medicine`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		fmt.Sprintf(`SELECT %s FROM medicine%s ORDER BY name, brand LIMIT $%d OFFSET $%d`, medicineCols, where, n+1, n+2),
		args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := collectMedicines(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, r.loadBatches(ctx, items...)
}

func (r *repoPG) All(ctx context.Context, f ListFilter) ([]*Medicine, error) {
	where, args := filterClause(f)
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+medicineCols+` FROM medicine`+where+` ORDER BY name, brand`, args...)
	if err != nil {
		return nil, err
	}
	items, err := collectMedicines(rows)
	if err != nil {
		return nil, err
	}
	return items, r.loadBatches(ctx, items...)
}

func collectMedicines(rows pgx.Rows) ([]*Medicine, error) {
	defer rows.Close()
	var items []*Medicine
	for rows.Next() {
		m, err := scanMedicine(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

func (r *repoPG) Movements(ctx context.Context, medicineID uuid.UUID, limit, offset int) ([]*Movement, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM stock_movement WHERE medicine_id = $1`, medicineID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, medicine_id, kind, batch_number, quantity, unit_price, reference, created_at
		FROM stock_movement WHERE medicine_id = $1
		ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`, medicineID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Movement
	for rows.Next() {
		var mv Movement
		if err := rows.Scan(&mv.ID, &mv.MedicineID, &mv.Kind, &mv.BatchNumber, &mv.Quantity,
			&mv.UnitPrice, &mv.Reference, &mv.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &mv)
	}
	return items, total, rows.Err()
}
