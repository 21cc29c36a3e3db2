package bids

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dealguardhq/dealguard-backend/pkg/db/models"
	"github.com/dealguardhq/dealguard-backend/pkg/enums"
	pkgerrors "github.com/dealguardhq/dealguard-backend/pkg/errors"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, bid *models.Bid) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Bid, error)
	ListByDealTrade(ctx context.Context, dealID uuid.UUID, trade string) ([]models.Bid, error)
	ListByDealID(ctx context.Context, dealID uuid.UUID) ([]models.Bid, error)
	UpdateStatuses(ctx context.Context, awardedID uuid.UUID, rejectedIDs []uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, bid *models.Bid) error {
	if err := r.db.WithContext(ctx).Create(bid).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create bid")
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Bid, error) {
	var bid models.Bid
	err := r.db.WithContext(ctx).Preload("Vendor").First(&bid, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "bid not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find bid")
	}
	return &bid, nil
}

func (r *repository) ListByDealTrade(ctx context.Context, dealID uuid.UUID, trade string) ([]models.Bid, error) {
	var rows []models.Bid
	err := r.db.WithContext(ctx).
		Preload("Vendor").
		Where("deal_id = ? AND trade = ?", dealID, trade).
		Order("submitted_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list sibling bids")
	}
	return rows, nil
}

func (r *repository) ListByDealID(ctx context.Context, dealID uuid.UUID) ([]models.Bid, error) {
	var rows []models.Bid
	err := r.db.WithContext(ctx).
		Preload("Vendor").
		Where("deal_id = ?", dealID).
		Order("trade ASC, submitted_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bids")
	}
	return rows, nil
}

func (r *repository) UpdateStatuses(ctx context.Context, awardedID uuid.UUID, rejectedIDs []uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Model(&models.Bid{}).
		Where("id = ?", awardedID).
		Update("status", enums.BidStatusAwarded).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark bid awarded")
	}
	if len(rejectedIDs) == 0 {
		return nil
	}
	err = r.db.WithContext(ctx).
		Model(&models.Bid{}).
		Where("id IN ?", rejectedIDs).
		Update("status", enums.BidStatusRejected).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark sibling bids rejected")
	}
	return nil
}
