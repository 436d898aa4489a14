package medreturn

import (
	"context"
	"errors"
	"fmt"
	"strings"

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

const returnCols = `id, number, return_date, return_type, outdoor_sale_id, admission_id,
	total_return_amount, refund_method, processed_by, remarks, status, created_at`

const lineCols = `medicine_id, medicine_name, batch_number, restocked_batch, quantity,
	return_price, amount, reason`

func scanReturn(row pgx.Row) (*MedicineReturn, error) {
	var m MedicineReturn
	err := row.Scan(&m.ID, &m.Number, &m.ReturnDate, &m.ReturnType, &m.OutdoorSaleID,
		&m.AdmissionID, &m.TotalReturnAmount, &m.RefundMethod, &m.ProcessedBy, &m.Remarks,
		&m.Status, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("medicine return not found")
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func scanLine(row pgx.Row) (Line, error) {
	var l Line
	err := row.Scan(&l.MedicineID, &l.MedicineName, &l.BatchNumber, &l.RestockedBatch,
		&l.Quantity, &l.ReturnPrice, &l.Amount, &l.Reason)
	return l, err
}

func (r *repoPG) NextNumber(ctx context.Context) (int64, error) {
	var n int64
	err := r.conn(ctx).QueryRow(ctx, `SELECT nextval('medicine_return_number_seq')`).Scan(&n)
	return n, err
}

func (r *repoPG) Create(ctx context.Context, m *MedicineReturn) error {
	q := r.conn(ctx)
	m.ID = uuid.New()
	err := q.QueryRow(ctx, `
		INSERT INTO medicine_return (id, number, return_date, return_type, outdoor_sale_id,
			admission_id, total_return_amount, refund_method, processed_by, remarks, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at`,
		m.ID, m.Number, m.ReturnDate, m.ReturnType, m.OutdoorSaleID, m.AdmissionID,
		m.TotalReturnAmount, m.RefundMethod, m.ProcessedBy, m.Remarks, m.Status,
	).Scan(&m.CreatedAt)
	if db.IsForeignKeyViolation(err) {
		return apperror.Validation("source document does not exist")
	}
	if err != nil {
		return fmt.Errorf("insert medicine return: %w", err)
	}
	for i, l := range m.Lines {
		if _, err := q.Exec(ctx, `
			INSERT INTO medicine_return_line (return_id, position, `+lineCols+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			m.ID, i, l.MedicineID, l.MedicineName, l.BatchNumber, l.RestockedBatch, l.Quantity,
			l.ReturnPrice, l.Amount, l.Reason); err != nil {
			return fmt.Errorf("insert medicine return line: %w", err)
		}
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*MedicineReturn, error) {
	m, err := scanReturn(r.conn(ctx).QueryRow(ctx, `SELECT `+returnCols+` FROM medicine_return WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+lineCols+` FROM medicine_return_line
		WHERE return_id = $1 ORDER BY position`, m.ID)
	if err != nil {
		return nil, fmt.Errorf("query medicine return lines: %w", err)
	}
	defer rows.Close()
	m.Lines = []Line{}
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, fmt.Errorf("scan medicine return line: %w", err)
		}
		m.Lines = append(m.Lines, l)
	}
	return m, rows.Err()
}

func (r *repoPG) Returned(ctx context.Context, t Type, sourceID uuid.UUID) ([]Line, error) {
	col := "outdoor_sale_id"
	if t == TypeIndoor {
		col = "admission_id"
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT l.medicine_id, l.medicine_name, l.batch_number, l.restocked_batch, l.quantity,
			l.return_price, l.amount, l.reason
		FROM medicine_return_line l
		JOIN medicine_return m ON m.id = l.return_id
		WHERE m.`+col+` = $1 AND m.status <> $2`, sourceID, StatusRejected)
	if err != nil {
		return nil, fmt.Errorf("query earlier returns: %w", err)
	}
	defer rows.Close()
	var out []Line
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*MedicineReturn, int, error) {
	var conds []string
	var args []interface{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.ReturnType != "" {
		add("return_type = $%d", f.ReturnType)
	}
	if f.OutdoorSaleID != nil {
		add("outdoor_sale_id = $%d", *f.OutdoorSaleID)
	}
	if f.AdmissionID != nil {
		add("admission_id = $%d", *f.AdmissionID)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM medicine_return`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		fmt.Sprintf(`SELECT %s FROM medicine_return%s ORDER BY return_date DESC, number DESC LIMIT $%d OFFSET $%d`,
			returnCols, where, n+1, n+2), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*MedicineReturn
	for rows.Next() {
		m, err := scanReturn(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}
