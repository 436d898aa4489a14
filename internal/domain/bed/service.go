package bed

import (
	"bytes"
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/carehub/hms/internal/platform/db"
	"github.com/carehub/hms/pkg/apperror"
)

type Service struct {
	repo Repository
	tx   db.Transactor
}

func NewService(repo Repository, tx db.Transactor) *Service {
	return &Service{repo: repo, tx: tx}
}

func validate(b *Bed) error {
	b.BedNumber = strings.TrimSpace(b.BedNumber)
	b.BedName = strings.TrimSpace(b.BedName)
	if b.BedNumber == "" {
		return apperror.Validation("bed_number is required")
	}
	if b.BedName == "" {
		return apperror.Validation("bed_name is required")
	}
	if b.ChargePerDay.IsNegative() {
		return apperror.Validation("charge_per_day must not be negative")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, b *Bed) error {
	if err := validate(b); err != nil {
		return err
	}
	b.IsActive = true
	b.IsOccupied = false
	b.CurrentAdmissionID = nil
	return s.repo.Create(ctx, b)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Bed, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, availableOnly bool) ([]*Bed, error) {
	return s.repo.List(ctx, availableOnly)
}

// Update changes the descriptive fields and rate. Occupancy is only changed
// by admissions. A new rate applies to segments opened after the change.
func (s *Service) Update(ctx context.Context, b *Bed) error {
	if err := validate(b); err != nil {
		return err
	}
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetForUpdate(ctx, b.ID)
		if err != nil {
			return err
		}
		if current.IsOccupied && !b.IsActive {
			return apperror.InvalidBedTransition("bed %s is occupied and cannot be taken out of service", current.BedNumber)
		}
		b.IsOccupied = current.IsOccupied
		b.CurrentAdmissionID = current.CurrentAdmissionID
		return s.repo.Update(ctx, b)
	})
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		b, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if b.IsOccupied {
			return apperror.InvalidBedTransition("bed %s is occupied and cannot be deleted", b.BedNumber)
		}
		return s.repo.Delete(ctx, id)
	})
}

// Occupy locks the bed and assigns it to the admission.
func (s *Service) Occupy(ctx context.Context, bedID, admissionID uuid.UUID) (*Bed, error) {
	var out *Bed
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		b, err := s.repo.GetForUpdate(ctx, bedID)
		if err != nil {
			return err
		}
		if err := b.Occupy(admissionID); err != nil {
			return err
		}
		if err := s.repo.SaveOccupancy(ctx, b); err != nil {
			return err
		}
		out = b
		return nil
	})
	return out, err
}

// Release locks the bed and frees it.
func (s *Service) Release(ctx context.Context, bedID, admissionID uuid.UUID) error {
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		b, err := s.repo.GetForUpdate(ctx, bedID)
		if err != nil {
			return err
		}
		if err := b.Release(admissionID); err != nil {
			return err
		}
		return s.repo.SaveOccupancy(ctx, b)
	})
}

// Transfer moves an admission from one bed to another. Both rows are locked
// in id order so two opposite transfers cannot deadlock.
func (s *Service) Transfer(ctx context.Context, fromID, toID, admissionID uuid.UUID) (*Bed, error) {
	if fromID == toID {
		return nil, apperror.InvalidBedTransition("patient is already in this bed")
	}
	var out *Bed
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		first, second := fromID, toID
		if bytes.Compare(first[:], second[:]) > 0 {
			first, second = second, first
		}
		locked := make(map[uuid.UUID]*Bed, 2)
		for _, id := range []uuid.UUID{first, second} {
			b, err := s.repo.GetForUpdate(ctx, id)
			if err != nil {
				return err
			}
			locked[id] = b
		}

		from, to := locked[fromID], locked[toID]
		if err := from.Release(admissionID); err != nil {
			return err
		}
		if err := to.Occupy(admissionID); err != nil {
			return err
		}
		if err := s.repo.SaveOccupancy(ctx, from); err != nil {
			return err
		}
		if err := s.repo.SaveOccupancy(ctx, to); err != nil {
			return err
		}
		out = to
		return nil
	})
	return out, err
}
