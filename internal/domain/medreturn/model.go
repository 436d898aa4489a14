// Package medreturn takes medicine back from walk-in customers and admitted
// patients and puts it back into stock. A return is checked against what the
// source sale or admission actually dispensed, less what earlier returns
// already took back.
package medreturn

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/carehub/hms/internal/domain/billing"
	"github.com/carehub/hms/pkg/apperror"
)

type Type string

const (
	TypeOutdoor Type = "Outdoor"
	TypeIndoor  Type = "Indoor"
)

type Status string

const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
)

const DefaultRefundMethod = "Cash"

var refundMethods = map[string]bool{
	"Cash":               true,
	"Card":               true,
	"Credit Note":        true,
	"Account Adjustment": true,
}

func RefundMethod(m string) (string, error) {
	if m == "" {
		return DefaultRefundMethod, nil
	}
	if !refundMethods[m] {
		return "", apperror.Validation("unsupported refund method %q", m)
	}
	return m, nil
}

// Line is one returned quantity. BatchNumber is the batch it was sold from;
// RestockedBatch is where it went back, which differs when the original batch
// no longer exists.
type Line struct {
	MedicineID     uuid.UUID       `json:"medicine_id"`
	MedicineName   string          `json:"medicine_name"`
	BatchNumber    string          `json:"batch_number"`
	RestockedBatch string          `json:"restocked_batch"`
	Quantity       int             `json:"quantity"`
	ReturnPrice    decimal.Decimal `json:"return_price"`
	Amount         decimal.Decimal `json:"amount"`
	Reason         string          `json:"reason"`
}

type MedicineReturn struct {
	ID                uuid.UUID       `json:"id"`
	Number            int64           `json:"return_number"`
	ReturnDate        time.Time       `json:"return_date"`
	ReturnType        Type            `json:"return_type"`
	OutdoorSaleID     *uuid.UUID      `json:"outdoor_sale_id,omitempty"`
	AdmissionID       *uuid.UUID      `json:"admission_id,omitempty"`
	Lines             []Line          `json:"medicines"`
	TotalReturnAmount decimal.Decimal `json:"total_return_amount"`
	RefundMethod      string          `json:"refund_method"`
	ProcessedBy       string          `json:"processed_by"`
	Remarks           string          `json:"remarks"`
	Status            Status          `json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
}

type ListFilter struct {
	ReturnType    Type
	OutdoorSaleID *uuid.UUID
	AdmissionID   *uuid.UUID
}

// SoldLine is a dispensed quantity on the source document.
type SoldLine struct {
	MedicineID   uuid.UUID
	MedicineName string
	BatchNumber  string
	Quantity     int
	UnitPrice    decimal.Decimal
}

type Item struct {
	MedicineID  uuid.UUID `json:"medicine_id"`
	BatchNumber string    `json:"batch_number,omitempty"`
	Quantity    int       `json:"quantity"`
	Reason      string    `json:"reason"`
}

type lotKey struct {
	medicine uuid.UUID
	batch    string
}

type lot struct {
	name  string
	sold  int
	price decimal.Decimal
}

// Allocate turns requested items into priced return lines. Each item must
// name a medicine on the source; the batch may be left out only when that
// medicine came from a single batch. Returnable quantity per batch is what
// was sold less earlier returns and earlier items of the same request.
func Allocate(sold []SoldLine, earlier []Line, items []Item) ([]Line, error) {
	if len(items) == 0 {
		return nil, apperror.Validation("at least one medicine is required")
	}

	lots := make(map[lotKey]*lot)
	batches := make(map[uuid.UUID][]string)
	for _, s := range sold {
		k := lotKey{s.MedicineID, s.BatchNumber}
		l, ok := lots[k]
		if !ok {
			l = &lot{name: s.MedicineName, price: s.UnitPrice}
			lots[k] = l
			batches[s.MedicineID] = append(batches[s.MedicineID], s.BatchNumber)
		}
		l.sold += s.Quantity
	}
	taken := make(map[lotKey]int)
	for _, e := range earlier {
		taken[lotKey{e.MedicineID, e.BatchNumber}] += e.Quantity
	}

	lines := make([]Line, 0, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, apperror.Validation("quantity must be greater than zero")
		}
		known := batches[it.MedicineID]
		if len(known) == 0 {
			return nil, apperror.Validation("medicine %s was not dispensed on the source document", it.MedicineID)
		}
		batch := it.BatchNumber
		if batch == "" {
			if len(known) > 1 {
				return nil, apperror.Validation("batch_number is required: %s was dispensed from %d batches",
					lots[lotKey{it.MedicineID, known[0]}].name, len(known))
			}
			batch = known[0]
		}
		k := lotKey{it.MedicineID, batch}
		l, ok := lots[k]
		if !ok {
			return nil, apperror.Validation("batch %s of %s was not dispensed on the source document",
				batch, lots[lotKey{it.MedicineID, known[0]}].name)
		}
		if left := l.sold - taken[k]; it.Quantity > left {
			return nil, apperror.Validation("cannot return %d of %s batch %s: sold %d, returnable %d",
				it.Quantity, l.name, batch, l.sold, left)
		}
		taken[k] += it.Quantity
		lines = append(lines, Line{
			MedicineID:   it.MedicineID,
			MedicineName: l.name,
			BatchNumber:  batch,
			Quantity:     it.Quantity,
			ReturnPrice:  l.price,
			Amount:       billing.LineTotal(it.Quantity, l.price),
			Reason:       it.Reason,
		})
	}
	return lines, nil
}

func total(lines []Line) decimal.Decimal {
	amounts := make([]decimal.Decimal, len(lines))
	for i, l := range lines {
		amounts[i] = l.Amount
	}
	return billing.Sum(amounts)
}
