package sale

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

const saleCols = `id, number, sale_date, customer_name, customer_phone, subtotal, discount,
	grand_total, paid, due, payment_method, sold_by, remarks, created_at`

func scanSale(row pgx.Row) (*OutdoorSale, error) {
	var s OutdoorSale
	err := row.Scan(&s.ID, &s.Number, &s.SaleDate, &s.CustomerName, &s.CustomerPhone,
		&s.Subtotal, &s.Discount, &s.GrandTotal, &s.Paid, &s.Due, &s.PaymentMethod,
		&s.SoldBy, &s.Remarks, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("sale not found")
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repoPG) NextNumber(ctx context.Context) (int64, error) {
	var n int64
	err := r.conn(ctx).QueryRow(ctx, `SELECT nextval('outdoor_sale_number_seq')`).Scan(&n)
	return n, err
}

func (r *repoPG) Create(ctx context.Context, s *OutdoorSale) error {
	q := r.conn(ctx)
	s.ID = uuid.New()
	err := q.QueryRow(ctx, `
		INSERT INTO outdoor_sale (id, number, sale_date, customer_name, customer_phone, subtotal,
			discount, grand_total, paid, due, payment_method, sold_by, remarks)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING created_at`,
		s.ID, s.Number, s.SaleDate, s.CustomerName, s.CustomerPhone, s.Subtotal, s.Discount, s.GrandTotal,
		s.Paid, s.Due, s.PaymentMethod, s.SoldBy, s.Remarks,
	).Scan(&s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert outdoor sale: %w", err)
	}
	for i, l := range s.Lines {
		if _, err := q.Exec(ctx, `
			INSERT INTO outdoor_sale_line (sale_id, position, medicine_id, medicine_name,
				batch_number, quantity, unit_price, amount)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			s.ID, i, l.MedicineID, l.MedicineName, l.BatchNumber, l.Quantity, l.UnitPrice, l.Amount); err != nil {
			return fmt.Errorf("insert outdoor sale line: %w", err)
		}
	}
	return nil
}

func (r *repoPG) get(ctx context.Context, query string, arg interface{}) (*OutdoorSale, error) {
	s, err := scanSale(r.conn(ctx).QueryRow(ctx, query, arg))
	if err != nil {
		return nil, err
	}
	if err := r.loadLines(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*OutdoorSale, error) {
	return r.get(ctx, `SELECT `+saleCols+` FROM outdoor_sale WHERE id = $1`, id)
}

func (r *repoPG) GetByNumber(ctx context.Context, number int64) (*OutdoorSale, error) {
	return r.get(ctx, `SELECT `+saleCols+` FROM outdoor_sale WHERE number = $1`, number)
}

func (r *repoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*OutdoorSale, error) {
	return r.get(ctx, `SELECT `+saleCols+` FROM outdoor_sale WHERE id = $1 FOR UPDATE`, id)
}

func (r *repoPG) loadLines(ctx context.Context, s *OutdoorSale) error {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT medicine_id, medicine_name, batch_number, quantity, unit_price, amount
		FROM outdoor_sale_line WHERE sale_id = $1 ORDER BY position`, s.ID)
	if err != nil {
		return fmt.Errorf("query outdoor sale lines: %w", err)
	}
	defer rows.Close()
	s.Lines = []Line{}
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.MedicineID, &l.MedicineName, &l.BatchNumber, &l.Quantity, &l.UnitPrice, &l.Amount); err != nil {
			return fmt.Errorf("scan outdoor sale line: %w", err)
		}
		s.Lines = append(s.Lines, l)
	}
	return rows.Err()
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*OutdoorSale, int, error) {
	var conds []string
	var args []interface{}
	if f.From != nil {
		args = append(args, *f.From)
		conds = append(conds, fmt.Sprintf("sale_date >= $%d", len(args)))
	}
	if f.To != nil {
		args = append(args, *f.To)
		conds = append(conds, fmt.Sprintf("sale_date < $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM outdoor_sale`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		fmt.Sprintf(`SELECT %s FROM outdoor_sale%s ORDER BY sale_date DESC, number DESC LIMIT $%d OFFSET $%d`,
			saleCols, where, n+1, n+2), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*OutdoorSale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}
