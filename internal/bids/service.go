package bids

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dealguardhq/dealguard-backend/pkg/db/models"
	"github.com/dealguardhq/dealguard-backend/pkg/enums"
	pkgerrors "github.com/dealguardhq/dealguard-backend/pkg/errors"
	"github.com/dealguardhq/dealguard-backend/pkg/types"
)

type dealFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Deal, error)
}

type vendorFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Vendor, error)
}

// SubmitBidInput is a vendor's priced proposal for one trade.
type SubmitBidInput struct {
	DealID    uuid.UUID
	VendorID  uuid.UUID
	Trade     string
	LineItems types.BidLineItems
}

type Service interface {
	Submit(ctx context.Context, input SubmitBidInput) (*models.Bid, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Bid, error)
	ListByDeal(ctx context.Context, dealID uuid.UUID) ([]models.Bid, error)
}

type service struct {
	repo    Repository
	deals   dealFinder
	vendors vendorFinder
}

func NewService(repo Repository, deals dealFinder, vendors vendorFinder) (Service, error) {
	if repo == nil {
		return nil, errors.New("bids repository is required")
	}
	if deals == nil {
		return nil, errors.New("deal finder is required")
	}
	if vendors == nil {
		return nil, errors.New("vendor finder is required")
	}
	return &service{repo: repo, deals: deals, vendors: vendors}, nil
}

func (s *service) Submit(ctx context.Context, input SubmitBidInput) (*models.Bid, error) {
	trade := strings.ToLower(strings.TrimSpace(input.Trade))
	if trade == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "trade is required")
	}
	if len(input.LineItems) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one line item is required")
	}
	for i, line := range input.LineItems {
		if line.Quantity.Value <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("line %d has a non-positive quantity", i+1))
		}
		if strings.TrimSpace(line.Quantity.Unit) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("line %d is missing a unit", i+1))
		}
		if line.TotalUsd.IsNegative() || line.UnitPriceUsd.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("line %d has a negative price", i+1))
		}
	}

	if _, err := s.deals.FindByID(ctx, input.DealID); err != nil {
		return nil, err
	}
	if _, err := s.vendors.FindByID(ctx, input.VendorID); err != nil {
		return nil, err
	}

	bid := &models.Bid{
		DealID:      input.DealID,
		VendorID:    input.VendorID,
		Trade:       trade,
		LineItems:   input.LineItems,
		SubtotalUsd: input.LineItems.Subtotal(),
		Status:      enums.BidStatusPending,
		SubmittedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, bid); err != nil {
		return nil, err
	}
	return bid, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Bid, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bid id is required")
	}
	return s.repo.FindByID(ctx, id)
}

func (s *service) ListByDeal(ctx context.Context, dealID uuid.UUID) ([]models.Bid, error) {
	if dealID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "deal id is required")
	}
	return s.repo.ListByDealID(ctx, dealID)
}
