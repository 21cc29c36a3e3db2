package changeorders

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
	Create(ctx context.Context, order *models.ChangeOrder) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.ChangeOrder, error)
	ListByDealID(ctx context.Context, dealID uuid.UUID) ([]models.ChangeOrder, error)
	Save(ctx context.Context, order *models.ChangeOrder) error
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

func (r *repository) Create(ctx context.Context, order *models.ChangeOrder) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create change order")
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ChangeOrder, error) {
	var order models.ChangeOrder
	err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "change order not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find change order")
	}
	return &order, nil
}

func (r *repository) ListByDealID(ctx context.Context, dealID uuid.UUID) ([]models.ChangeOrder, error) {
	var rows []models.ChangeOrder
	err := r.db.WithContext(ctx).
		Where("deal_id = ?", dealID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list change orders")
	}
	return rows, nil
}

func (r *repository) Save(ctx context.Context, order *models.ChangeOrder) error {
	if err := r.db.WithContext(ctx).Save(order).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save change order")
	}
	return nil
}
