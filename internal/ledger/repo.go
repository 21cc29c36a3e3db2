package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dealguardhq/dealguard-backend/pkg/db/models"
	pkgerrors "github.com/dealguardhq/dealguard-backend/pkg/errors"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, row *models.BudgetLedger) error
	FindByDealID(ctx context.Context, dealID uuid.UUID) (*models.BudgetLedger, error)
	Save(ctx context.Context, row *models.BudgetLedger) error
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

func (r *repository) Create(ctx context.Context, row *models.BudgetLedger) error {
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create budget ledger")
	}
	return nil
}

func (r *repository) FindByDealID(ctx context.Context, dealID uuid.UUID) (*models.BudgetLedger, error) {
	var row models.BudgetLedger
	err := r.db.WithContext(ctx).First(&row, "deal_id = ?", dealID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "budget ledger not found for deal")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find budget ledger")
	}
	return &row, nil
}

func (r *repository) Save(ctx context.Context, row *models.BudgetLedger) error {
	if err := r.db.WithContext(ctx).Save(row).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save budget ledger")
	}
	return nil
}
