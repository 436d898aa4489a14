package medreturn

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/carehub/hms/internal/domain/admission"
	"github.com/carehub/hms/internal/domain/sale"
	"github.com/carehub/hms/internal/platform/db"
	"github.com/carehub/hms/pkg/apperror"
)

type Sales interface {
	Lock(ctx context.Context, id uuid.UUID) (*sale.OutdoorSale, error)
}

type Admissions interface {
	Lock(ctx context.Context, id uuid.UUID) (*admission.Admission, error)
}

type Stock interface {
	Restock(ctx context.Context, id uuid.UUID, batchNumber string, quantity int, priceIfNew decimal.Decimal, reference string) (string, error)
}

type CreateInput struct {
	ReturnType    Type
	OutdoorSaleID uuid.UUID
	AdmissionID   uuid.UUID
	Items         []Item
	RefundMethod  string
	ProcessedBy   string
	Remarks       string
}

type Service struct {
	repo       Repository
	tx         db.Transactor
	sales      Sales
	admissions Admissions
	stock      Stock
	now        func() time.Time
}

func NewService(repo Repository, tx db.Transactor, sales Sales, admissions Admissions, stock Stock) *Service {
	return &Service{repo: repo, tx: tx, sales: sales, admissions: admissions, stock: stock, now: time.Now}
}

func saleLines(s *sale.OutdoorSale) []SoldLine {
	out := make([]SoldLine, len(s.Lines))
	for i, l := range s.Lines {
		out[i] = SoldLine{MedicineID: l.MedicineID, MedicineName: l.MedicineName,
			BatchNumber: l.BatchNumber, Quantity: l.Quantity, UnitPrice: l.UnitPrice}
	}
	return out
}

func admissionLines(a *admission.Admission) []SoldLine {
	var out []SoldLine
	for _, inv := range a.MedicineInvoices {
		for _, l := range inv.Lines {
			out = append(out, SoldLine{MedicineID: l.MedicineID, MedicineName: l.Name,
				BatchNumber: l.BatchNumber, Quantity: l.Quantity, UnitPrice: l.UnitPrice})
		}
	}
	return out
}

// source locks the document being returned against and returns what it
// dispensed. Concurrent returns against one document serialize on that lock.
func (s *Service) source(ctx context.Context, in CreateInput, r *MedicineReturn) (uuid.UUID, []SoldLine, error) {
	switch in.ReturnType {
	case TypeOutdoor:
		if in.OutdoorSaleID == uuid.Nil {
			return uuid.Nil, nil, apperror.Validation("outdoor_sale_id is required for outdoor returns")
		}
		sl, err := s.sales.Lock(ctx, in.OutdoorSaleID)
		if err != nil {
			return uuid.Nil, nil, err
		}
		r.OutdoorSaleID = &sl.ID
		return sl.ID, saleLines(sl), nil
	case TypeIndoor:
		if in.AdmissionID == uuid.Nil {
			return uuid.Nil, nil, apperror.Validation("admission_id is required for indoor returns")
		}
		a, err := s.admissions.Lock(ctx, in.AdmissionID)
		if err != nil {
			return uuid.Nil, nil, err
		}
		r.AdmissionID = &a.ID
		return a.ID, admissionLines(a), nil
	}
	return uuid.Nil, nil, apperror.Validation("return_type must be Outdoor or Indoor")
}

// Create validates the items against the source document, restocks each
// line and records the return, all in one transaction.
func (s *Service) Create(ctx context.Context, in CreateInput) (*MedicineReturn, error) {
	method, err := RefundMethod(in.RefundMethod)
	if err != nil {
		return nil, err
	}
	r := &MedicineReturn{
		ReturnDate:   s.now(),
		ReturnType:   in.ReturnType,
		RefundMethod: method,
		ProcessedBy:  in.ProcessedBy,
		Remarks:      strings.TrimSpace(in.Remarks),
		Status:       StatusApproved,
	}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		sourceID, sold, err := s.source(ctx, in, r)
		if err != nil {
			return err
		}
		earlier, err := s.repo.Returned(ctx, in.ReturnType, sourceID)
		if err != nil {
			return err
		}
		lines, err := Allocate(sold, earlier, in.Items)
		if err != nil {
			return err
		}

		n, err := s.repo.NextNumber(ctx)
		if err != nil {
			return err
		}
		r.Number = n
		reference := fmt.Sprintf("return #%d", n)
		for _, i := range lockOrder(lines) {
			l := &lines[i]
			target, err := s.stock.Restock(ctx, l.MedicineID, l.BatchNumber, l.Quantity, l.ReturnPrice, reference)
			if err != nil {
				return err
			}
			l.RestockedBatch = target
		}
		r.Lines = lines
		r.TotalReturnAmount = total(lines)
		return s.repo.Create(ctx, r)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func lockOrder(lines []Line) []int {
	idx := make([]int, len(lines))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		a, b := lines[idx[i]].MedicineID, lines[idx[j]].MedicineID
		return bytes.Compare(a[:], b[:]) < 0
	})
	return idx
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*MedicineReturn, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) ([]*MedicineReturn, int, error) {
	return s.repo.List(ctx, f, limit, offset)
}
