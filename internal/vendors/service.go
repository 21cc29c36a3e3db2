package vendors

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/dealguardhq/dealguard-backend/pkg/db/models"
	pkgerrors "github.com/dealguardhq/dealguard-backend/pkg/errors"
)

// CreateVendorInput registers a contractor.
type CreateVendorInput struct {
	Name         string
	Trade        string
	ContactEmail string
}

type Service interface {
	Create(ctx context.Context, input CreateVendorInput) (*models.Vendor, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Vendor, error)
	List(ctx context.Context) ([]models.Vendor, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, errors.New("vendors repository is required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreateVendorInput) (*models.Vendor, error) {
	name := strings.TrimSpace(input.Name)
	trade := strings.ToLower(strings.TrimSpace(input.Trade))
	if name == "" || trade == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor name and trade are required")
	}

	vendor := &models.Vendor{
		Name:         name,
		Trade:        trade,
		ContactEmail: strings.TrimSpace(input.ContactEmail),
	}
	if err := s.repo.Create(ctx, vendor); err != nil {
		return nil, err
	}
	return vendor, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Vendor, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id is required")
	}
	return s.repo.FindByID(ctx, id)
}

func (s *service) List(ctx context.Context) ([]models.Vendor, error) {
	return s.repo.List(ctx)
}
