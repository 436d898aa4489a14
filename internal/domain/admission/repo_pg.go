package admission

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

const admissionCols = `id, number, patient_id, consultant_id, referred_by, contact_person_name,
	contact_person_phone, bed_id, charge_per_day, admission_date, admission_fee, advance_amount,
	status, discharge_date, discount, total_bill, created_at, updated_at`

func scanAdmission(row pgx.Row) (*Admission, error) {
	var a Admission
	err := row.Scan(&a.ID, &a.Number, &a.PatientID, &a.ConsultantID, &a.ReferredBy,
		&a.ContactPersonName, &a.ContactPersonPhone, &a.BedID, &a.ChargePerDay,
		&a.AdmissionDate, &a.AdmissionFee, &a.AdvanceAmount, &a.Status, &a.DischargeDate,
		&a.Discount, &a.TotalBill, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("admission not found")
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *repoPG) Create(ctx context.Context, a *Admission) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO admission (id, patient_id, consultant_id, referred_by, contact_person_name,
			contact_person_phone, bed_id, charge_per_day, admission_date, admission_fee,
			advance_amount, status, discount, total_bill)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING number, created_at, updated_at`,
		a.ID, a.PatientID, a.ConsultantID, a.ReferredBy, a.ContactPersonName,
		a.ContactPersonPhone, a.BedID, a.ChargePerDay, a.AdmissionDate, a.AdmissionFee,
		a.AdvanceAmount, a.Status, a.Discount, a.TotalBill,
	).Scan(&a.Number, &a.CreatedAt, &a.UpdatedAt)
	if db.IsForeignKeyViolation(err) {
		return apperror.Validation("patient or consultant does not exist")
	}
	if err != nil {
		return err
	}
	return r.writeSegments(ctx, a)
}

func (r *repoPG) get(ctx context.Context, query string, id uuid.UUID) (*Admission, error) {
	a, err := scanAdmission(r.conn(ctx).QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadChildren(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Admission, error) {
	return r.get(ctx, `SELECT `+admissionCols+` FROM admission WHERE id = $1`, id)
}

func (r *repoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Admission, error) {
	return r.get(ctx, `SELECT `+admissionCols+` FROM admission WHERE id = $1 FOR UPDATE`, id)
}

func (r *repoPG) loadChildren(ctx context.Context, a *Admission) error {
	q := r.conn(ctx)

	a.Segments = []Segment{}
	rows, err := q.Query(ctx, `
		SELECT id, bed_id, bed_number, charge_per_day, from_date, to_date
		FROM admission_bed_segment WHERE admission_id = $1 ORDER BY position`, a.ID)
	if err != nil {
		return fmt.Errorf("query bed segments: %w", err)
	}
	for rows.Next() {
		var s Segment
		if err := rows.Scan(&s.ID, &s.BedID, &s.BedNumber, &s.ChargePerDay, &s.FromDate, &s.ToDate); err != nil {
			rows.Close()
			return fmt.Errorf("scan bed segment: %w", err)
		}
		a.Segments = append(a.Segments, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if a.MedicineInvoices, err = r.medicineInvoices(ctx, a.ID); err != nil {
		return err
	}
	if a.ServiceInvoices, err = r.serviceInvoices(ctx, a.ID); err != nil {
		return err
	}

	a.Payments = []Payment{}
	rows, err = q.Query(ctx, `
		SELECT id, amount, method, received_by, paid_at
		FROM admission_payment WHERE admission_id = $1 ORDER BY paid_at, id`, a.ID)
	if err != nil {
		return fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.Amount, &p.Method, &p.ReceivedBy, &p.PaidAt); err != nil {
			return fmt.Errorf("scan payment: %w", err)
		}
		a.Payments = append(a.Payments, p)
	}
	return rows.Err()
}

func (r *repoPG) medicineInvoices(ctx context.Context, admissionID uuid.UUID) ([]MedicineInvoice, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT i.id, i.total_amount, i.invoice_date,
			l.medicine_id, l.name, l.batch_number, l.quantity, l.unit_price, l.amount
		FROM admission_medicine_invoice i
		JOIN admission_medicine_line l ON l.invoice_id = i.id
		WHERE i.admission_id = $1
		ORDER BY i.invoice_date, i.id, l.position`, admissionID)
	if err != nil {
		return nil, fmt.Errorf("query medicine invoices: %w", err)
	}
	defer rows.Close()

	out := []MedicineInvoice{}
	for rows.Next() {
		var inv MedicineInvoice
		var l MedicineLine
		if err := rows.Scan(&inv.ID, &inv.TotalAmount, &inv.Date,
			&l.MedicineID, &l.Name, &l.BatchNumber, &l.Quantity, &l.UnitPrice, &l.Amount); err != nil {
			return nil, fmt.Errorf("scan medicine line: %w", err)
		}
		if n := len(out); n == 0 || out[n-1].ID != inv.ID {
			out = append(out, inv)
		}
		last := &out[len(out)-1]
		last.Lines = append(last.Lines, l)
	}
	return out, rows.Err()
}

func (r *repoPG) serviceInvoices(ctx context.Context, admissionID uuid.UUID) ([]ServiceInvoice, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT i.id, i.total_amount, i.invoice_date,
			l.service_id, l.service_name, l.unit_price, l.quantity, l.amount
		FROM admission_service_invoice i
		JOIN admission_service_line l ON l.invoice_id = i.id
		WHERE i.admission_id = $1
		ORDER BY i.invoice_date, i.id, l.position`, admissionID)
	if err != nil {
		return nil, fmt.Errorf("query service invoices: %w", err)
	}
	defer rows.Close()

	out := []ServiceInvoice{}
	for rows.Next() {
		var inv ServiceInvoice
		var l ServiceLine
		if err := rows.Scan(&inv.ID, &inv.TotalAmount, &inv.Date,
			&l.ServiceID, &l.ServiceName, &l.UnitPrice, &l.Quantity, &l.Amount); err != nil {
			return nil, fmt.Errorf("scan service line: %w", err)
		}
		if n := len(out); n == 0 || out[n-1].ID != inv.ID {
			out = append(out, inv)
		}
		last := &out[len(out)-1]
		last.Lines = append(last.Lines, l)
	}
	return out, rows.Err()
}

// writeSegments closes segments that gained a ToDate and inserts new ones.
// Closing runs first so the single-open-segment index never sees two.
func (r *repoPG) writeSegments(ctx context.Context, a *Admission) error {
	q := r.conn(ctx)
	for i := range a.Segments {
		s := &a.Segments[i]
		if s.ID != uuid.Nil {
			if _, err := q.Exec(ctx,
				`UPDATE admission_bed_segment SET to_date = $2 WHERE id = $1`, s.ID, s.ToDate); err != nil {
				return fmt.Errorf("close bed segment: %w", err)
			}
			continue
		}
		s.ID = uuid.New()
		if _, err := q.Exec(ctx, `
			INSERT INTO admission_bed_segment (id, admission_id, position, bed_id, bed_number,
				charge_per_day, from_date, to_date)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			s.ID, a.ID, i, s.BedID, s.BedNumber, s.ChargePerDay, s.FromDate, s.ToDate); err != nil {
			return fmt.Errorf("insert bed segment: %w", err)
		}
	}
	return nil
}

func (r *repoPG) SaveSegments(ctx context.Context, a *Admission) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE admission SET bed_id = $2, charge_per_day = $3, updated_at = NOW() WHERE id = $1`,
		a.ID, a.BedID, a.ChargePerDay)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("admission not found")
	}
	return r.writeSegments(ctx, a)
}

func (r *repoPG) AddMedicineInvoice(ctx context.Context, admissionID uuid.UUID, inv *MedicineInvoice) error {
	q := r.conn(ctx)
	inv.ID = uuid.New()
	if _, err := q.Exec(ctx, `
		INSERT INTO admission_medicine_invoice (id, admission_id, total_amount, invoice_date)
		VALUES ($1,$2,$3,$4)`, inv.ID, admissionID, inv.TotalAmount, inv.Date); err != nil {
		return fmt.Errorf("insert medicine invoice: %w", err)
	}
	for i, l := range inv.Lines {
		if _, err := q.Exec(ctx, `
			INSERT INTO admission_medicine_line (invoice_id, position, medicine_id, name,
				batch_number, quantity, unit_price, amount)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			inv.ID, i, l.MedicineID, l.Name, l.BatchNumber, l.Quantity, l.UnitPrice, l.Amount); err != nil {
			return fmt.Errorf("insert medicine line: %w", err)
		}
	}
	return nil
}

func (r *repoPG) AddServiceInvoice(ctx context.Context, admissionID uuid.UUID, inv *ServiceInvoice) error {
	q := r.conn(ctx)
	inv.ID = uuid.New()
	if _, err := q.Exec(ctx, `
		INSERT INTO admission_service_invoice (id, admission_id, total_amount, invoice_date)
		VALUES ($1,$2,$3,$4)`, inv.ID, admissionID, inv.TotalAmount, inv.Date); err != nil {
		return fmt.Errorf("insert service invoice: %w", err)
	}
	for i, l := range inv.Lines {
		if _, err := q.Exec(ctx, `
			INSERT INTO admission_service_line (invoice_id, position, service_id, service_name,
				unit_price, quantity, amount)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			inv.ID, i, l.ServiceID, l.ServiceName, l.UnitPrice, l.Quantity, l.Amount); err != nil {
			return fmt.Errorf("insert service line: %w", err)
		}
	}
	return nil
}

func (r *repoPG) AddPayment(ctx context.Context, admissionID uuid.UUID, p *Payment) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO admission_payment (id, admission_id, amount, method, received_by, paid_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		p.ID, admissionID, p.Amount, p.Method, p.ReceivedBy, p.PaidAt)
	return err
}

func (r *repoPG) SaveDischarge(ctx context.Context, a *Admission, d *Discharge) error {
	if _, err := r.conn(ctx).Exec(ctx, `
		UPDATE admission SET status = $2, discharge_date = $3, discount = $4, total_bill = $5,
			updated_at = NOW()
		WHERE id = $1`,
		a.ID, a.Status, a.DischargeDate, a.Discount, a.TotalBill); err != nil {
		return fmt.Errorf("update admission: %w", err)
	}
	if err := r.writeSegments(ctx, a); err != nil {
		return err
	}

	d.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO discharge (id, admission_id, discharge_date, total_days, bed_charges,
			medicine_charges, service_charges, admission_fee, subtotal, discount, grand_total,
			advance_paid, total_paid, due, remarks)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING created_at`,
		d.ID, d.AdmissionID, d.DischargeDate, d.TotalDays, d.BedCharges, d.MedicineCharges,
		d.ServiceCharges, d.AdmissionFee, d.Subtotal, d.Discount, d.GrandTotal, d.AdvancePaid,
		d.Paid, d.Due, d.Remarks,
	).Scan(&d.CreatedAt)
	if db.IsUniqueViolation(err) {
		return apperror.InvalidBedTransition("admission is already discharged")
	}
	return err
}

func (r *repoPG) GetDischarge(ctx context.Context, admissionID uuid.UUID) (*Discharge, error) {
	var d Discharge
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, admission_id, discharge_date, total_days, bed_charges, medicine_charges,
			service_charges, admission_fee, subtotal, discount, grand_total, advance_paid,
			total_paid, due, remarks, created_at
		FROM discharge WHERE admission_id = $1`, admissionID,
	).Scan(&d.ID, &d.AdmissionID, &d.DischargeDate, &d.TotalDays, &d.BedCharges,
		&d.MedicineCharges, &d.ServiceCharges, &d.AdmissionFee, &d.Subtotal, &d.Discount,
		&d.GrandTotal, &d.AdvancePaid, &d.Paid, &d.Due, &d.Remarks, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("discharge not found")
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Admission, int, error) {
	var conds []string
	var args []interface{}
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.PatientID != nil {
		args = append(args, *f.PatientID)
		conds = append(conds, fmt.Sprintf("patient_id = $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM admission`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		fmt.Sprintf(`SELECT %s FROM admission%s ORDER BY admission_date DESC LIMIT $%d OFFSET $%d`,
			admissionCols, where, n+1, n+2), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Admission
	for rows.Next() {
		a, err := scanAdmission(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}
