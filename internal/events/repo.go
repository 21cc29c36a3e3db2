package events

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dealguardhq/dealguard-backend/pkg/db/models"
	pkgerrors "github.com/dealguardhq/dealguard-backend/pkg/errors"
	"github.com/dealguardhq/dealguard-backend/pkg/pagination"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, event *models.Event) error
	ListByDealID(ctx context.Context, dealID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Event, error)
	ListAllByDealID(ctx context.Context, dealID uuid.UUID) ([]models.Event, error)
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

func (r *repository) Create(ctx context.Context, event *models.Event) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append event")
	}
	return nil
}

func (r *repository) ListByDealID(ctx context.Context, dealID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Event, error) {
	query := r.db.WithContext(ctx).
		Where("deal_id = ?", dealID).
		Order("occurred_at DESC, id DESC").
		Limit(limit)
	if cursor != nil {
		query = query.Where(
			"(occurred_at < ?) OR (occurred_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var rows []models.Event
	if err := query.Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list events")
	}
	return rows, nil
}

func (r *repository) ListAllByDealID(ctx context.Context, dealID uuid.UUID) ([]models.Event, error) {
	var rows []models.Event
	err := r.db.WithContext(ctx).
		Where("deal_id = ?", dealID).
		Order("occurred_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list events for audit")
	}
	return rows, nil
}
