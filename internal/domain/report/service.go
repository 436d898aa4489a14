// Package report builds read-only stock views for the pharmacy: the inventory
// sheet, its spreadsheet export and the expiring batch list.
package report

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/carehub/hms/internal/domain/medicine"
	"github.com/carehub/hms/pkg/apperror"
)

// MaxExpiringDays caps the look-ahead of the expiring report.
const MaxExpiringDays = 3650

type Stock interface {
	Inventory(ctx context.Context) ([]medicine.InventoryItem, error)
	Expiring(ctx context.Context, window time.Duration) ([]medicine.ExpiringBatch, error)
	LowStock(ctx context.Context) ([]*medicine.Medicine, error)
}

type InventoryReport struct {
	GeneratedAt   time.Time                `json:"generated_at"`
	Items         []medicine.InventoryItem `json:"items"`
	TotalItems    int                      `json:"total_items"`
	TotalUnits    int                      `json:"total_units"`
	TotalValue    decimal.Decimal          `json:"total_value"`
	LowStockCount int                      `json:"low_stock_count"`
}

type ExpiringReport struct {
	Days    int                      `json:"days"`
	Batches []medicine.ExpiringBatch `json:"batches"`
	Value   decimal.Decimal          `json:"value"`
}

type Service struct {
	stock       Stock
	defaultDays int
	now         func() time.Time
}

func NewService(stock Stock, defaultDays int) *Service {
	return &Service{stock: stock, defaultDays: defaultDays, now: time.Now}
}

func (s *Service) Inventory(ctx context.Context) (*InventoryReport, error) {
	items, err := s.stock.Inventory(ctx)
	if err != nil {
		return nil, err
	}
	r := &InventoryReport{GeneratedAt: s.now(), Items: items, TotalItems: len(items), TotalValue: decimal.Zero}
	for _, it := range items {
		r.TotalUnits += it.CurrentStock
		r.TotalValue = r.TotalValue.Add(it.StockValue)
		if it.LowStock {
			r.LowStockCount++
		}
	}
	return r, nil
}

// Expiring lists batches expiring within days, or the configured warning
// window when days is zero.
func (s *Service) Expiring(ctx context.Context, days int) (*ExpiringReport, error) {
	if days == 0 {
		days = s.defaultDays
	}
	if days < 0 || days > MaxExpiringDays {
		return nil, apperror.Validation("days must be between 1 and %d", MaxExpiringDays)
	}
	batches, err := s.stock.Expiring(ctx, time.Duration(days)*24*time.Hour)
	if err != nil {
		return nil, err
	}
	r := &ExpiringReport{Days: days, Batches: batches, Value: decimal.Zero}
	for _, b := range batches {
		r.Value = r.Value.Add(b.UnitPrice.Mul(decimal.NewFromInt(int64(b.Quantity))))
	}
	return r, nil
}
