package deals

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dealguardhq/dealguard-backend/pkg/db/models"
	pkgerrors "github.com/dealguardhq/dealguard-backend/pkg/errors"
	"github.com/dealguardhq/dealguard-backend/pkg/pagination"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, deal *models.Deal) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Deal, error)
	List(ctx context.Context, limit int, cursor *pagination.Cursor) ([]models.Deal, error)
	Save(ctx context.Context, deal *models.Deal) error
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

func (r *repository) Create(ctx context.Context, deal *models.Deal) error {
	if err := r.db.WithContext(ctx).Create(deal).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create deal")
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Deal, error) {
	var deal models.Deal
	err := r.db.WithContext(ctx).
		Preload("ScopeNodes").
		Preload("Policy").
		First(&deal, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "deal not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find deal")
	}
	return &deal, nil
}

func (r *repository) List(ctx context.Context, limit int, cursor *pagination.Cursor) ([]models.Deal, error) {
	query := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit)
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var rows []models.Deal
	if err := query.Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list deals")
	}
	return rows, nil
}

func (r *repository) Save(ctx context.Context, deal *models.Deal) error {
	if err := r.db.WithContext(ctx).Save(deal).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save deal")
	}
	return nil
}
