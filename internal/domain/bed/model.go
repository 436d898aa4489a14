package bed

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/carehub/hms/pkg/apperror"
)

type Bed struct {
	ID                 uuid.UUID       `json:"id"`
	BedNumber          string          `json:"bed_number"`
	BedName            string          `json:"bed_name"`
	ChargePerDay       decimal.Decimal `json:"charge_per_day"`
	Facilities         string          `json:"facilities"`
	IsOccupied         bool            `json:"is_occupied"`
	CurrentAdmissionID *uuid.UUID      `json:"current_admission_id,omitempty"`
	IsActive           bool            `json:"is_active"`
	CreatedAt          time.Time       `json:"created_at"`
}

// Occupy assigns the bed to an admission.
func (b *Bed) Occupy(admissionID uuid.UUID) error {
	if !b.IsActive {
		return apperror.InvalidBedTransition("bed %s is not in service", b.BedNumber)
	}
	if b.IsOccupied {
		return apperror.InvalidBedTransition("bed %s is already occupied", b.BedNumber)
	}
	b.IsOccupied = true
	b.CurrentAdmissionID = &admissionID
	return nil
}

// Release frees the bed. Only the admission holding it may release it.
func (b *Bed) Release(admissionID uuid.UUID) error {
	if !b.IsOccupied || b.CurrentAdmissionID == nil || *b.CurrentAdmissionID != admissionID {
		return apperror.InvalidBedTransition("bed %s is not held by this admission", b.BedNumber)
	}
	b.IsOccupied = false
	b.CurrentAdmissionID = nil
	return nil
}
