package investigation

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

const billCols = `id, number, bill_date, patient_id, consultant_id, delivery_date, total_amount,
	discount, grand_total, paid, due, payment_status, report_status, report_delivered_at,
	report_delivered_by, remarks, created_at, updated_at`

func scanBill(row pgx.Row) (*Bill, error) {
	var b Bill
	err := row.Scan(&b.ID, &b.Number, &b.BillDate, &b.PatientID, &b.ConsultantID, &b.DeliveryDate,
		&b.TotalAmount, &b.Discount, &b.GrandTotal, &b.Paid, &b.Due, &b.PaymentStatus,
		&b.ReportStatus, &b.ReportDeliveredAt, &b.ReportDeliveredBy, &b.Remarks,
		&b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("investigation bill not found")
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *repoPG) Create(ctx context.Context, b *Bill) error {
	q := r.conn(ctx)
	b.ID = uuid.New()
	err := q.QueryRow(ctx, `
		INSERT INTO investigation_bill (id, bill_date, patient_id, consultant_id, delivery_date,
			total_amount, discount, grand_total, paid, due, payment_status, report_status, remarks)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING number, created_at, updated_at`,
		b.ID, b.BillDate, b.PatientID, b.ConsultantID, b.DeliveryDate, b.TotalAmount, b.Discount,
		b.GrandTotal, b.Paid, b.Due, b.PaymentStatus, b.ReportStatus, b.Remarks,
	).Scan(&b.Number, &b.CreatedAt, &b.UpdatedAt)
	if db.IsForeignKeyViolation(err) {
		return apperror.Validation("patient or consultant does not exist")
	}
	if err != nil {
		return err
	}

	for i, l := range b.Lines {
		if _, err := q.Exec(ctx, `
			INSERT INTO investigation_line (bill_id, position, service_id, service_name, unit_price,
				quantity, amount)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			b.ID, i, l.ServiceID, l.ServiceName, l.UnitPrice, l.Quantity, l.Amount); err != nil {
			return fmt.Errorf("insert investigation line: %w", err)
		}
	}
	for i := range b.Payments {
		if err := r.insertPayment(ctx, b.ID, &b.Payments[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) insertPayment(ctx context.Context, billID uuid.UUID, p *Payment) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO investigation_payment (id, bill_id, amount, method, received_by, remarks, paid_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		p.ID, billID, p.Amount, p.Method, p.ReceivedBy, p.Remarks, p.PaidAt)
	if err != nil {
		return fmt.Errorf("insert investigation payment: %w", err)
	}
	return nil
}

func (r *repoPG) get(ctx context.Context, query string, id uuid.UUID) (*Bill, error) {
	b, err := scanBill(r.conn(ctx).QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadChildren(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Bill, error) {
	return r.get(ctx, `SELECT `+billCols+` FROM investigation_bill WHERE id = $1`, id)
}

func (r *repoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Bill, error) {
	return r.get(ctx, `SELECT `+billCols+` FROM investigation_bill WHERE id = $1 FOR UPDATE`, id)
}

func (r *repoPG) loadChildren(ctx context.Context, b *Bill) error {
	q := r.conn(ctx)
	b.Lines = []Line{}
	rows, err := q.Query(ctx, `
		SELECT service_id, service_name, unit_price, quantity, amount
		FROM investigation_line WHERE bill_id = $1 ORDER BY position`, b.ID)
	if err != nil {
		return fmt.Errorf("query investigation lines: %w", err)
	}
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ServiceID, &l.ServiceName, &l.UnitPrice, &l.Quantity, &l.Amount); err != nil {
			rows.Close()
			return fmt.Errorf("scan investigation line: %w", err)
		}
		b.Lines = append(b.Lines, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	b.Payments = []Payment{}
	rows, err = q.Query(ctx, `
		SELECT id, amount, method, received_by, remarks, paid_at
		FROM investigation_payment WHERE bill_id = $1 ORDER BY paid_at, id`, b.ID)
	if err != nil {
		return fmt.Errorf("query investigation payments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.Amount, &p.Method, &p.ReceivedBy, &p.Remarks, &p.PaidAt); err != nil {
			return fmt.Errorf("scan investigation payment: %w", err)
		}
		b.Payments = append(b.Payments, p)
	}
	return rows.Err()
}

func (r *repoPG) AddPayment(ctx context.Context, b *Bill, p *Payment) error {
	if err := r.insertPayment(ctx, b.ID, p); err != nil {
		return err
	}
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE investigation_bill SET paid=$2, due=$3, payment_status=$4, updated_at=NOW()
		WHERE id = $1`, b.ID, b.Paid, b.Due, b.PaymentStatus)
	return err
}

func (r *repoPG) UpdateReport(ctx context.Context, b *Bill) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE investigation_bill SET report_status=$2, report_delivered_at=$3,
			report_delivered_by=$4, remarks=$5, updated_at=NOW()
		WHERE id = $1`,
		b.ID, b.ReportStatus, b.ReportDeliveredAt, b.ReportDeliveredBy, b.Remarks)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("investigation bill not found")
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Bill, int, error) {
	var conds []string
	var args []interface{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.PaymentStatus != "" {
		add("payment_status = $%d", f.PaymentStatus)
	}
	if f.ReportStatus != "" {
		add("report_status = $%d", f.ReportStatus)
	}
	if f.PatientID != nil {
		add("patient_id = $%d", *f.PatientID)
	}
	if f.HasDue {
		conds = append(conds, "due > 0")
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM investigation_bill`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		fmt.Sprintf(`SELECT %s FROM investigation_bill%s ORDER BY bill_date DESC, number DESC LIMIT $%d OFFSET $%d`,
			billCols, where, n+1, n+2), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, b)
	}
	return items, total, rows.Err()
}
