package patient

import (
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

func normalize(p *Patient) {
	p.Name = strings.TrimSpace(p.Name)
	p.Phone = strings.TrimSpace(p.Phone)
	p.Address = strings.TrimSpace(p.Address)
	p.BloodGroup = strings.ToUpper(strings.TrimSpace(p.BloodGroup))
	p.Key = Key(p.Phone, p.Name)
}

func validate(p *Patient) error {
	if p.Name == "" {
		return apperror.Validation("name is required")
	}
	if p.Phone == "" {
		return apperror.Validation("phone is required")
	}
	if p.Age < 0 {
		return apperror.Validation("age must not be negative")
	}
	if !validSex[p.Sex] {
		return apperror.Validation("sex must be Male, Female or Other")
	}
	if !validBloodGroups[p.BloodGroup] {
		return apperror.Validation("invalid blood group: %s", p.BloodGroup)
	}
	return nil
}

// Register creates a patient. When someone with the same name and phone is
// already registered that record is returned instead and created is false.
func (s *Service) Register(ctx context.Context, p *Patient) (*Patient, bool, error) {
	normalize(p)
	if err := validate(p); err != nil {
		return nil, false, err
	}
	var out *Patient
	created := false
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		found, err := s.repo.GetByKey(ctx, p.Key)
		if err != nil {
			return err
		}
		if found != nil {
			out = found
			return nil
		}
		code, err := s.repo.NextCode(ctx)
		if err != nil {
			return err
		}
		p.Code = code
		if err := s.repo.Create(ctx, p); err != nil {
			return err
		}
		out, created = p, true
		return nil
	})
	if db.IsUniqueViolation(err) {
		// Registered concurrently under the same key.
		found, err := s.repo.GetByKey(ctx, p.Key)
		return found, false, err
	}
	if err != nil {
		return nil, false, err
	}
	return out, created, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, p *Patient) error {
	normalize(p)
	if err := validate(p); err != nil {
		return err
	}
	return s.repo.Update(ctx, p)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) Search(ctx context.Context, query string, limit, offset int) ([]*Patient, int, error) {
	return s.repo.Search(ctx, query, limit, offset)
}
