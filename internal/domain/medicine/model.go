package medicine

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const DefaultMinStockLevel = 10

// Medicine is one stocked drug, identified by name, generic name and brand.
// CurrentStock is a projection of Batches and is only ever set by RecomputeStock.
type Medicine struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	GenericName   string    `json:"generic_name"`
	Brand         string    `json:"brand"`
	Manufacturer  string    `json:"manufacturer,omitempty"`
	DosageForm    string    `json:"dosage_form,omitempty"`
	Strength      string    `json:"strength,omitempty"`
	Category      string    `json:"category,omitempty"`
	MinStockLevel int       `json:"min_stock_level"`
	CurrentStock  int       `json:"current_stock"`
	IsActive      bool      `json:"is_active"`
	Batches       []Batch   `json:"batches"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	pending []Movement
}

// Batch is a priced, dated lot. BatchNumber is unique within its medicine only.
type Batch struct {
	BatchNumber  string          `json:"batch_number"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	ExpiryDate   time.Time       `json:"expiry_date"`
	PurchaseDate time.Time       `json:"purchase_date"`
	Supplier     string          `json:"supplier,omitempty"`
}

type MovementKind string

const (
	MovementReceive MovementKind = "receive"
	MovementDeduct  MovementKind = "deduct"
	MovementRestock MovementKind = "restock"
	MovementAdjust  MovementKind = "adjust"
	MovementRemove  MovementKind = "remove"
)

// Movement is one append-only stock ledger entry. Quantity is signed: stock
// leaving a batch is negative.
type Movement struct {
	ID          uuid.UUID       `json:"id"`
	MedicineID  uuid.UUID       `json:"medicine_id"`
	Kind        MovementKind    `json:"kind"`
	BatchNumber string          `json:"batch_number"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Reference   string          `json:"reference,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Consumption is the part of one batch taken by a deduction. Invoice lines are
// priced from these, never from the medicine's current price.
type Consumption struct {
	BatchNumber string          `json:"batch_number"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	ExpiryDate  time.Time       `json:"expiry_date"`
}

func (c Consumption) Amount() decimal.Decimal {
	return c.UnitPrice.Mul(decimal.NewFromInt(int64(c.Quantity)))
}

// ReturnPolicy controls batches recreated when returned stock has no batch to
// go back to.
type ReturnPolicy struct {
	Suffix    string
	ShelfLife time.Duration
	Supplier  string
}

func DefaultReturnPolicy() ReturnPolicy {
	return ReturnPolicy{
		Suffix:    "-RETURN",
		ShelfLife: 365 * 24 * time.Hour,
		Supplier:  "Customer Return",
	}
}

// BatchPatch holds the batch fields an update may change.
type BatchPatch struct {
	Quantity   *int             `json:"quantity"`
	UnitPrice  *decimal.Decimal `json:"unit_price"`
	ExpiryDate *time.Time       `json:"expiry_date"`
	Supplier   *string          `json:"supplier"`
}

// Details holds the descriptive fields of a medicine.
type Details struct {
	GenericName   *string `json:"generic_name"`
	Brand         *string `json:"brand"`
	Manufacturer  *string `json:"manufacturer"`
	DosageForm    *string `json:"dosage_form"`
	Strength      *string `json:"strength"`
	Category      *string `json:"category"`
	MinStockLevel *int    `json:"min_stock_level"`
	IsActive      *bool   `json:"is_active"`
}

// ListFilter narrows a medicine listing.
type ListFilter struct {
	Query       string
	InStockOnly bool
	LowStock    bool
}

// InventoryItem is the stock view of one medicine.
type InventoryItem struct {
	ID            uuid.UUID       `json:"id"`
	Name          string          `json:"name"`
	GenericName   string          `json:"generic_name"`
	Brand         string          `json:"brand"`
	CurrentStock  int             `json:"current_stock"`
	MinStockLevel int             `json:"min_stock_level"`
	LowStock      bool            `json:"low_stock"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
	NearestExpiry *time.Time      `json:"nearest_expiry,omitempty"`
	StockValue    decimal.Decimal `json:"stock_value"`
	Batches       []Batch         `json:"batches"`
}

// ExpiringBatch is a batch with stock that expires inside a window.
type ExpiringBatch struct {
	MedicineID   uuid.UUID       `json:"medicine_id"`
	MedicineName string          `json:"medicine_name"`
	BatchNumber  string          `json:"batch_number"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	ExpiryDate   time.Time       `json:"expiry_date"`
	Expired      bool            `json:"expired"`
}
