package medicine

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/carehub/hms/pkg/apperror"
)

// The methods in this file are the stock ledger. Each mutation either applies
// completely or returns an error with the medicine untouched, then recomputes
// CurrentStock and queues the movements it produced.

// RecomputeStock sets CurrentStock to the sum of batch quantities.
func (m *Medicine) RecomputeStock() int {
	m.CurrentStock = m.available()
	return m.CurrentStock
}

func (m *Medicine) available() int {
	total := 0
	for _, b := range m.Batches {
		total += b.Quantity
	}
	return total
}

// PendingMovements returns the movements queued since the medicine was loaded.
func (m *Medicine) PendingMovements() []Movement {
	return m.pending
}

func (m *Medicine) clearPending() {
	m.pending = nil
}

func (m *Medicine) record(kind MovementKind, batch string, qty int, price decimal.Decimal) {
	m.pending = append(m.pending, Movement{
		MedicineID:  m.ID,
		Kind:        kind,
		BatchNumber: batch,
		Quantity:    qty,
		UnitPrice:   price,
	})
}

func (m *Medicine) batchIndex(number string) int {
	for i := range m.Batches {
		if m.Batches[i].BatchNumber == number {
			return i
		}
	}
	return -1
}

// Batch returns the batch with the given number.
func (m *Medicine) Batch(number string) (Batch, bool) {
	if i := m.batchIndex(number); i >= 0 {
		return m.Batches[i], true
	}
	return Batch{}, false
}

// fifoOrder returns indexes of batches with stock, earliest expiry first.
// Batches expiring on the same date keep their stored order.
func (m *Medicine) fifoOrder() []int {
	idx := make([]int, 0, len(m.Batches))
	for i, b := range m.Batches {
		if b.Quantity > 0 {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return m.Batches[idx[a]].ExpiryDate.Before(m.Batches[idx[b]].ExpiryDate)
	})
	return idx
}

// Deduct takes quantity from the earliest-expiring batches first. It fails
// with InsufficientStock, changing nothing, when the batches together hold
// less than requested.
func (m *Medicine) Deduct(quantity int) ([]Consumption, error) {
	if quantity <= 0 {
		return nil, apperror.Validation("quantity must be greater than zero")
	}
	if available := m.available(); available < quantity {
		return nil, apperror.InsufficientStock("insufficient stock for %s: requested %d, available %d", m.Name, quantity, available)
	}

	var consumed []Consumption
	needed := quantity
	for _, i := range m.fifoOrder() {
		if needed == 0 {
			break
		}
		b := &m.Batches[i]
		take := b.Quantity
		if take > needed {
			take = needed
		}
		b.Quantity -= take
		needed -= take
		consumed = append(consumed, Consumption{
			BatchNumber: b.BatchNumber,
			Quantity:    take,
			UnitPrice:   b.UnitPrice,
			ExpiryDate:  b.ExpiryDate,
		})
		m.record(MovementDeduct, b.BatchNumber, -take, b.UnitPrice)
	}
	m.RecomputeStock()
	return consumed, nil
}

// DeductFromBatch takes quantity from one named batch.
func (m *Medicine) DeductFromBatch(batchNumber string, quantity int) (Consumption, error) {
	if quantity <= 0 {
		return Consumption{}, apperror.Validation("quantity must be greater than zero")
	}
	i := m.batchIndex(batchNumber)
	if i < 0 {
		return Consumption{}, apperror.NotFound("batch %s not found for %s", batchNumber, m.Name)
	}
	b := &m.Batches[i]
	if b.Quantity < quantity {
		return Consumption{}, apperror.InsufficientStock("insufficient stock in batch %s of %s: requested %d, available %d",
			batchNumber, m.Name, quantity, b.Quantity)
	}
	b.Quantity -= quantity
	m.record(MovementDeduct, b.BatchNumber, -quantity, b.UnitPrice)
	m.RecomputeStock()
	return Consumption{
		BatchNumber: b.BatchNumber,
		Quantity:    quantity,
		UnitPrice:   b.UnitPrice,
		ExpiryDate:  b.ExpiryDate,
	}, nil
}

// Restock puts returned quantity back. It goes into the named batch when it
// still exists, then into an earlier return batch for it. Otherwise a return
// batch tagged with the policy suffix is created at priceIfNew with a
// synthetic expiry of now plus the policy shelf life. The batch number that
// received the stock is returned.
func (m *Medicine) Restock(batchNumber string, quantity int, priceIfNew decimal.Decimal, policy ReturnPolicy, now time.Time) (string, error) {
	if quantity <= 0 {
		return "", apperror.Validation("quantity must be greater than zero")
	}
	if strings.TrimSpace(batchNumber) == "" {
		return "", apperror.Validation("batch number is required")
	}

	target := m.batchIndex(batchNumber)
	returnNumber := batchNumber
	if policy.Suffix != "" && !strings.HasSuffix(batchNumber, policy.Suffix) {
		returnNumber = batchNumber + policy.Suffix
	}
	if target < 0 {
		target = m.batchIndex(returnNumber)
	}

	if target >= 0 {
		b := &m.Batches[target]
		b.Quantity += quantity
		m.record(MovementRestock, b.BatchNumber, quantity, b.UnitPrice)
		m.RecomputeStock()
		return b.BatchNumber, nil
	}

	m.Batches = append(m.Batches, Batch{
		BatchNumber:  returnNumber,
		Quantity:     quantity,
		UnitPrice:    priceIfNew,
		ExpiryDate:   now.Add(policy.ShelfLife),
		PurchaseDate: now,
		Supplier:     policy.Supplier,
	})
	m.record(MovementRestock, returnNumber, quantity, priceIfNew)
	m.RecomputeStock()
	return returnNumber, nil
}

func validateBatch(b Batch) error {
	if strings.TrimSpace(b.BatchNumber) == "" {
		return apperror.Validation("batch number is required")
	}
	if b.Quantity <= 0 {
		return apperror.Validation("quantity must be greater than zero")
	}
	if b.UnitPrice.IsNegative() {
		return apperror.Validation("unit price must not be negative")
	}
	if b.ExpiryDate.IsZero() {
		return apperror.Validation("expiry date is required")
	}
	return nil
}

// Receive adds a purchased batch and returns the number it is stored under.
// A batch with identical number, expiry and price is merged into. Any other
// batch is appended; a number already taken by a lot with a different expiry
// or price gets a "-2", "-3", ... suffix so numbers stay unique within the
// medicine. The returned bool is true when the batch was merged.
func (m *Medicine) Receive(b Batch) (string, bool, error) {
	if err := validateBatch(b); err != nil {
		return "", false, err
	}
	if i := m.lotIndex(b); i >= 0 {
		existing := &m.Batches[i]
		existing.Quantity += b.Quantity
		m.record(MovementReceive, existing.BatchNumber, b.Quantity, existing.UnitPrice)
		m.RecomputeStock()
		return existing.BatchNumber, true, nil
	}

	b.BatchNumber = m.freeBatchNumber(b.BatchNumber)
	m.Batches = append(m.Batches, b)
	m.record(MovementReceive, b.BatchNumber, b.Quantity, b.UnitPrice)
	m.RecomputeStock()
	return b.BatchNumber, false, nil
}

// lotIndex finds the batch a receipt merges into: the supplier's number or
// one of its suffixed variants with the same expiry and price.
func (m *Medicine) lotIndex(b Batch) int {
	for i := range m.Batches {
		existing := m.Batches[i]
		if !isLotVariant(existing.BatchNumber, b.BatchNumber) {
			continue
		}
		if existing.ExpiryDate.Equal(b.ExpiryDate) && existing.UnitPrice.Equal(b.UnitPrice) {
			return i
		}
	}
	return -1
}

func isLotVariant(number, base string) bool {
	if number == base {
		return true
	}
	rest, ok := strings.CutPrefix(number, base+"-")
	if !ok {
		return false
	}
	n, err := strconv.Atoi(rest)
	return err == nil && n >= 2
}

func (m *Medicine) freeBatchNumber(base string) string {
	if m.batchIndex(base) < 0 {
		return base
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s-%d", base, n)
		if m.batchIndex(candidate) < 0 {
			return candidate
		}
	}
}

// UpdateBatch applies a correction to one batch. A quantity change is
// recorded as an adjustment.
func (m *Medicine) UpdateBatch(batchNumber string, p BatchPatch) error {
	i := m.batchIndex(batchNumber)
	if i < 0 {
		return apperror.NotFound("batch %s not found for %s", batchNumber, m.Name)
	}
	if p.Quantity != nil && *p.Quantity < 0 {
		return apperror.Validation("quantity must not be negative")
	}
	if p.UnitPrice != nil && p.UnitPrice.IsNegative() {
		return apperror.Validation("unit price must not be negative")
	}
	if p.ExpiryDate != nil && p.ExpiryDate.IsZero() {
		return apperror.Validation("expiry date must not be empty")
	}

	b := &m.Batches[i]
	if p.UnitPrice != nil {
		b.UnitPrice = *p.UnitPrice
	}
	if p.ExpiryDate != nil {
		b.ExpiryDate = *p.ExpiryDate
	}
	if p.Supplier != nil {
		b.Supplier = *p.Supplier
	}
	if p.Quantity != nil && *p.Quantity != b.Quantity {
		delta := *p.Quantity - b.Quantity
		b.Quantity = *p.Quantity
		m.record(MovementAdjust, b.BatchNumber, delta, b.UnitPrice)
	}
	m.RecomputeStock()
	return nil
}

// RemoveBatch drops a batch and records its remaining quantity as removed.
// The caller deletes the medicine once no batches are left.
func (m *Medicine) RemoveBatch(batchNumber string) (Batch, error) {
	i := m.batchIndex(batchNumber)
	if i < 0 {
		return Batch{}, apperror.NotFound("batch %s not found for %s", batchNumber, m.Name)
	}
	removed := m.Batches[i]
	m.Batches = append(m.Batches[:i:i], m.Batches[i+1:]...)
	m.record(MovementRemove, removed.BatchNumber, -removed.Quantity, removed.UnitPrice)
	m.RecomputeStock()
	return removed, nil
}

// NextBatch is the batch the next FIFO deduction starts from.
func (m *Medicine) NextBatch() (Batch, bool) {
	order := m.fifoOrder()
	if len(order) == 0 {
		return Batch{}, false
	}
	return m.Batches[order[0]], true
}

// SellingPrice is the price of the next batch, or zero when out of stock.
func (m *Medicine) SellingPrice() decimal.Decimal {
	if b, ok := m.NextBatch(); ok {
		return b.UnitPrice
	}
	return decimal.Zero
}

// NearestExpiry is the earliest expiry among batches with stock.
func (m *Medicine) NearestExpiry() *time.Time {
	b, ok := m.NextBatch()
	if !ok {
		return nil
	}
	exp := b.ExpiryDate
	return &exp
}

func (m *Medicine) IsLowStock() bool {
	return m.CurrentStock <= m.MinStockLevel
}

// StockValue is the sum of quantity times unit price over all batches.
func (m *Medicine) StockValue() decimal.Decimal {
	total := decimal.Zero
	for _, b := range m.Batches {
		total = total.Add(b.UnitPrice.Mul(decimal.NewFromInt(int64(b.Quantity))))
	}
	return total
}

// ExpiringWithin lists batches with stock whose expiry falls before now+window,
// including batches that have already expired.
func (m *Medicine) ExpiringWithin(window time.Duration, now time.Time) []ExpiringBatch {
	limit := now.Add(window)
	var out []ExpiringBatch
	for _, i := range m.fifoOrder() {
		b := m.Batches[i]
		if b.ExpiryDate.After(limit) {
			break
		}
		out = append(out, ExpiringBatch{
			MedicineID:   m.ID,
			MedicineName: m.Name,
			BatchNumber:  b.BatchNumber,
			Quantity:     b.Quantity,
			UnitPrice:    b.UnitPrice,
			ExpiryDate:   b.ExpiryDate,
			Expired:      !b.ExpiryDate.After(now),
		})
	}
	return out
}

// Inventory projects the medicine into its stock view.
func (m *Medicine) Inventory() InventoryItem {
	return InventoryItem{
		ID:            m.ID,
		Name:          m.Name,
		GenericName:   m.GenericName,
		Brand:         m.Brand,
		CurrentStock:  m.CurrentStock,
		MinStockLevel: m.MinStockLevel,
		LowStock:      m.IsLowStock(),
		SellingPrice:  m.SellingPrice(),
		NearestExpiry: m.NearestExpiry(),
		StockValue:    m.StockValue(),
		Batches:       m.Batches,
	}
}
