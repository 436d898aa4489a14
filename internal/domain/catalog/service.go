package catalog

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/carehub/hms/pkg/apperror"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func validate(s *MedicalService) error {
	s.Name = strings.TrimSpace(s.Name)
	s.Category = strings.TrimSpace(s.Category)
	if s.Name == "" {
		return apperror.Validation("name is required")
	}
	if s.Price.IsNegative() {
		return apperror.Validation("price must not be negative")
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, s *MedicalService) error {
	if err := validate(s); err != nil {
		return err
	}
	s.IsActive = true
	return svc.repo.Create(ctx, s)
}

func (svc *Service) Get(ctx context.Context, id uuid.UUID) (*MedicalService, error) {
	return svc.repo.GetByID(ctx, id)
}

// Active returns the service only if it can still be billed.
func (svc *Service) Active(ctx context.Context, id uuid.UUID) (*MedicalService, error) {
	s, err := svc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.IsActive {
		return nil, apperror.Validation("service %s is no longer offered", s.Name)
	}
	return s, nil
}

func (svc *Service) Update(ctx context.Context, s *MedicalService) error {
	if err := validate(s); err != nil {
		return err
	}
	return svc.repo.Update(ctx, s)
}

func (svc *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return svc.repo.Delete(ctx, id)
}

func (svc *Service) List(ctx context.Context, category string, activeOnly bool) ([]*MedicalService, error) {
	return svc.repo.List(ctx, strings.TrimSpace(category), activeOnly)
}
