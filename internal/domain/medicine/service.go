package medicine

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/carehub/hms/internal/platform/db"
	"github.com/carehub/hms/pkg/apperror"
)

// ReceiveOutcome says which branch a receipt took.
type ReceiveOutcome string

const (
	ReceiveMerged     ReceiveOutcome = "merged"
	ReceiveBatchAdded ReceiveOutcome = "batch_added"
	ReceiveCreated    ReceiveOutcome = "created"
)

// ReceiveInput is a purchased batch together with the identity of the
// medicine it belongs to.
type ReceiveInput struct {
	Name          string
	GenericName   string
	Brand         string
	Manufacturer  string
	DosageForm    string
	Strength      string
	Category      string
	MinStockLevel *int
	Batch         Batch
}

// ReceiveResult reports how a receipt was stored. BatchNumber differs from
// the submitted one when the supplier reused a number for a different lot.
type ReceiveResult struct {
	Outcome     ReceiveOutcome `json:"outcome"`
	BatchNumber string         `json:"batch_number"`
	Medicine    *Medicine      `json:"medicine"`
}

// DispenseRequest takes stock by FIFO, or from one batch when BatchNumber is set.
type DispenseRequest struct {
	MedicineID  uuid.UUID
	BatchNumber string
	Quantity    int
}

// Dispensed is what a dispense consumed, with the medicine's name for
// invoice lines.
type Dispensed struct {
	MedicineID   uuid.UUID
	MedicineName string
	Consumed     []Consumption
}

type Service struct {
	repo   Repository
	tx     db.Transactor
	policy ReturnPolicy
	now    func() time.Time
}

func NewService(repo Repository, tx db.Transactor, policy ReturnPolicy) *Service {
	return &Service{repo: repo, tx: tx, policy: policy, now: time.Now}
}

// Receive records a purchased batch. An identical batch of the same medicine
// is merged into, a known medicine gains a batch, and an unknown one is created.
func (s *Service) Receive(ctx context.Context, in ReceiveInput) (*ReceiveResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.GenericName = strings.TrimSpace(in.GenericName)
	in.Brand = strings.TrimSpace(in.Brand)
	if in.Name == "" {
		return nil, apperror.Validation("name is required")
	}
	if err := validateBatch(in.Batch); err != nil {
		return nil, err
	}
	if in.MinStockLevel != nil && *in.MinStockLevel < 0 {
		return nil, apperror.Validation("min_stock_level must not be negative")
	}
	if in.Batch.PurchaseDate.IsZero() {
		in.Batch.PurchaseDate = s.now()
	}

	res, err := s.receiveOnce(ctx, in)
	if db.IsUniqueViolation(err) {
		// A concurrent receipt created the medicine first; it now exists.
		res, err = s.receiveOnce(ctx, in)
	}
	return res, err
}

func (s *Service) receiveOnce(ctx context.Context, in ReceiveInput) (*ReceiveResult, error) {
	var res ReceiveResult
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		m, err := s.repo.FindByIdentityForUpdate(ctx, in.Name, in.GenericName, in.Brand)
		if err != nil {
			return err
		}

		if m == nil {
			m = &Medicine{
				Name:          in.Name,
				GenericName:   in.GenericName,
				Brand:         in.Brand,
				Manufacturer:  in.Manufacturer,
				DosageForm:    in.DosageForm,
				Strength:      in.Strength,
				Category:      in.Category,
				MinStockLevel: DefaultMinStockLevel,
				IsActive:      true,
			}
			if in.MinStockLevel != nil {
				m.MinStockLevel = *in.MinStockLevel
			}
			number, _, err := m.Receive(in.Batch)
			if err != nil {
				return err
			}
			if err := s.repo.Create(ctx, m); err != nil {
				return err
			}
			res = ReceiveResult{Outcome: ReceiveCreated, BatchNumber: number, Medicine: m}
			return nil
		}

		number, merged, err := m.Receive(in.Batch)
		if err != nil {
			return err
		}
		if err := s.repo.SaveStock(ctx, m, "receive"); err != nil {
			return err
		}
		res = ReceiveResult{Outcome: ReceiveBatchAdded, BatchNumber: number, Medicine: m}
		if merged {
			res.Outcome = ReceiveMerged
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// mutate locks the medicine, applies fn and persists the result in one
// transaction. Nothing is written when fn fails.
func (s *Service) mutate(ctx context.Context, id uuid.UUID, reference string, fn func(m *Medicine) error) (*Medicine, error) {
	var out *Medicine
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		m, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(m); err != nil {
			return err
		}
		if err := s.repo.SaveStock(ctx, m, reference); err != nil {
			return err
		}
		out = m
		return nil
	})
	return out, err
}

// Deduct takes quantity by FIFO and returns the consumed batches.
func (s *Service) Deduct(ctx context.Context, id uuid.UUID, quantity int, reference string) ([]Consumption, error) {
	var consumed []Consumption
	_, err := s.mutate(ctx, id, reference, func(m *Medicine) error {
		var err error
		consumed, err = m.Deduct(quantity)
		return err
	})
	if err != nil {
		return nil, err
	}
	return consumed, nil
}

func (s *Service) DeductFromBatch(ctx context.Context, id uuid.UUID, batchNumber string, quantity int, reference string) (Consumption, error) {
	var consumed Consumption
	_, err := s.mutate(ctx, id, reference, func(m *Medicine) error {
		var err error
		consumed, err = m.DeductFromBatch(batchNumber, quantity)
		return err
	})
	return consumed, err
}

// Dispense is the entry point for sales and admissions. Inside a caller's
// transaction it joins it, so a later failure rolls the deduction back too.
func (s *Service) Dispense(ctx context.Context, req DispenseRequest, reference string) (*Dispensed, error) {
	var consumed []Consumption
	m, err := s.mutate(ctx, req.MedicineID, reference, func(m *Medicine) error {
		if !m.IsActive {
			return apperror.Validation("medicine %s is inactive", m.Name)
		}
		if req.BatchNumber == "" {
			var err error
			consumed, err = m.Deduct(req.Quantity)
			return err
		}
		c, err := m.DeductFromBatch(req.BatchNumber, req.Quantity)
		if err != nil {
			return err
		}
		consumed = []Consumption{c}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Dispensed{MedicineID: m.ID, MedicineName: m.Name, Consumed: consumed}, nil
}

// Restock returns quantity to a batch and reports which batch received it.
func (s *Service) Restock(ctx context.Context, id uuid.UUID, batchNumber string, quantity int, priceIfNew decimal.Decimal, reference string) (string, error) {
	var target string
	_, err := s.mutate(ctx, id, reference, func(m *Medicine) error {
		var err error
		target, err = m.Restock(batchNumber, quantity, priceIfNew, s.policy, s.now())
		return err
	})
	return target, err
}

func (s *Service) UpdateBatch(ctx context.Context, id uuid.UUID, batchNumber string, p BatchPatch) (*Medicine, error) {
	return s.mutate(ctx, id, "batch update", func(m *Medicine) error {
		return m.UpdateBatch(batchNumber, p)
	})
}

// RemoveBatch drops a batch. When it was the last one the medicine is
// deleted and the returned medicine is nil.
func (s *Service) RemoveBatch(ctx context.Context, id uuid.UUID, batchNumber string) (*Medicine, error) {
	var out *Medicine
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		m, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if _, err := m.RemoveBatch(batchNumber); err != nil {
			return err
		}
		if len(m.Batches) == 0 {
			return s.repo.Delete(ctx, id)
		}
		if err := s.repo.SaveStock(ctx, m, "batch removed"); err != nil {
			return err
		}
		out = m
		return nil
	})
	return out, err
}

func (s *Service) UpdateDetails(ctx context.Context, id uuid.UUID, d Details) (*Medicine, error) {
	if d.MinStockLevel != nil && *d.MinStockLevel < 0 {
		return nil, apperror.Validation("min_stock_level must not be negative")
	}
	var out *Medicine
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		m, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		applyDetails(m, d)
		if err := s.repo.UpdateDetails(ctx, m); err != nil {
			return err
		}
		out = m
		return nil
	})
	return out, err
}

func applyDetails(m *Medicine, d Details) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&m.GenericName, d.GenericName)
	set(&m.Brand, d.Brand)
	set(&m.Manufacturer, d.Manufacturer)
	set(&m.DosageForm, d.DosageForm)
	set(&m.Strength, d.Strength)
	set(&m.Category, d.Category)
	if d.MinStockLevel != nil {
		m.MinStockLevel = *d.MinStockLevel
	}
	if d.IsActive != nil {
		m.IsActive = *d.IsActive
	}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Medicine, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Medicine, int, error) {
	return s.repo.List(ctx, f, limit, offset)
}

// Inventory lists every medicine with stock in its stock view.
func (s *Service) Inventory(ctx context.Context) ([]InventoryItem, error) {
	meds, err := s.repo.All(ctx, ListFilter{InStockOnly: true})
	if err != nil {
		return nil, err
	}
	items := make([]InventoryItem, 0, len(meds))
	for _, m := range meds {
		items = append(items, m.Inventory())
	}
	return items, nil
}

// Stock returns every medicine, including those out of stock.
func (s *Service) Stock(ctx context.Context) ([]*Medicine, error) {
	return s.repo.All(ctx, ListFilter{})
}

// Expiring lists batches with stock that expire within window, soonest first.
func (s *Service) Expiring(ctx context.Context, window time.Duration) ([]ExpiringBatch, error) {
	meds, err := s.repo.All(ctx, ListFilter{InStockOnly: true})
	if err != nil {
		return nil, err
	}
	now := s.now()
	var out []ExpiringBatch
	for _, m := range meds {
		out = append(out, m.ExpiringWithin(window, now)...)
	}
	sortExpiring(out)
	return out, nil
}

func sortExpiring(items []ExpiringBatch) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].ExpiryDate.Before(items[j].ExpiryDate)
	})
}

func (s *Service) LowStock(ctx context.Context) ([]*Medicine, error) {
	return s.repo.All(ctx, ListFilter{LowStock: true})
}

func (s *Service) Movements(ctx context.Context, id uuid.UUID, limit, offset int) ([]*Movement, int, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, 0, err
	}
	return s.repo.Movements(ctx, id, limit, offset)
}
