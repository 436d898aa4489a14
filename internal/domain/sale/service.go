package sale

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/carehub/hms/internal/domain/billing"
	"github.com/carehub/hms/internal/domain/medicine"
	"github.com/carehub/hms/internal/platform/db"
	"github.com/carehub/hms/pkg/apperror"
)

type Stock interface {
	Dispense(ctx context.Context, req medicine.DispenseRequest, reference string) (*medicine.Dispensed, error)
}

type Item struct {
	MedicineID  uuid.UUID `json:"medicine_id"`
	BatchNumber string    `json:"batch_number,omitempty"`
	Quantity    int       `json:"quantity"`
}

type CreateInput struct {
	SaleDate      time.Time
	CustomerName  string
	CustomerPhone string
	Items         []Item
	Discount      decimal.Decimal
	Paid          decimal.Decimal
	PaymentMethod string
	SoldBy        string
	Remarks       string
}

type Service struct {
	repo  Repository
	tx    db.Transactor
	stock Stock
	now   func() time.Time
}

func NewService(repo Repository, tx db.Transactor, stock Stock) *Service {
	return &Service{repo: repo, tx: tx, stock: stock, now: time.Now}
}

func validateItems(items []Item) error {
	if len(items) == 0 {
		return apperror.Validation("at least one medicine is required")
	}
	for _, it := range items {
		if it.MedicineID == uuid.Nil {
			return apperror.Validation("medicine_id is required")
		}
		if it.Quantity <= 0 {
			return apperror.Validation("quantity must be greater than zero")
		}
	}
	return nil
}

func lockOrder(items []Item) []int {
	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		a, b := items[idx[i]].MedicineID, items[idx[j]].MedicineID
		return bytes.Compare(a[:], b[:]) < 0
	})
	return idx
}

// Create dispenses every item and records the sale. A shortage on any item,
// an excessive discount or an overpayment rolls back the stock taken for the
// others.
func (s *Service) Create(ctx context.Context, in CreateInput) (*OutdoorSale, error) {
	if err := validateItems(in.Items); err != nil {
		return nil, err
	}
	method, err := billing.PaymentMethod(in.PaymentMethod)
	if err != nil {
		return nil, err
	}
	if in.SaleDate.IsZero() {
		in.SaleDate = s.now()
	}

	sale := &OutdoorSale{
		SaleDate:      in.SaleDate,
		CustomerName:  strings.TrimSpace(in.CustomerName),
		CustomerPhone: strings.TrimSpace(in.CustomerPhone),
		Discount:      in.Discount,
		Paid:          in.Paid,
		PaymentMethod: method,
		SoldBy:        in.SoldBy,
		Remarks:       strings.TrimSpace(in.Remarks),
	}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		n, err := s.repo.NextNumber(ctx)
		if err != nil {
			return err
		}
		sale.Number = n
		reference := fmt.Sprintf("sale #%d", n)

		dispensed := make([]*medicine.Dispensed, len(in.Items))
		for _, i := range lockOrder(in.Items) {
			it := in.Items[i]
			d, err := s.stock.Dispense(ctx, medicine.DispenseRequest{
				MedicineID:  it.MedicineID,
				BatchNumber: it.BatchNumber,
				Quantity:    it.Quantity,
			}, reference)
			if err != nil {
				return err
			}
			dispensed[i] = d
		}
		for _, d := range dispensed {
			for _, c := range d.Consumed {
				sale.Lines = append(sale.Lines, Line{
					MedicineID:   d.MedicineID,
					MedicineName: d.MedicineName,
					BatchNumber:  c.BatchNumber,
					Quantity:     c.Quantity,
					UnitPrice:    c.UnitPrice,
					Amount:       c.Amount(),
				})
			}
		}
		if err := sale.Settle(); err != nil {
			return err
		}
		return s.repo.Create(ctx, sale)
	})
	if err != nil {
		return nil, err
	}
	return sale, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*OutdoorSale, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByNumber(ctx context.Context, number int64) (*OutdoorSale, error) {
	return s.repo.GetByNumber(ctx, number)
}

// Lock loads the sale with its row locked until the surrounding transaction
// ends.
func (s *Service) Lock(ctx context.Context, id uuid.UUID) (*OutdoorSale, error) {
	return s.repo.GetForUpdate(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) ([]*OutdoorSale, int, error) {
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return nil, 0, apperror.Validation("end date is before start date")
	}
	return s.repo.List(ctx, f, limit, offset)
}
