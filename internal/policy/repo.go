package policy

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
	FindByID(ctx context.Context, id uuid.UUID) (*models.Policy, error)
	FindLatest(ctx context.Context, region, grade string) (*models.Policy, error)
	FindDefault(ctx context.Context) (*models.Policy, error)
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

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Policy, error) {
	var policy models.Policy
	err := r.db.WithContext(ctx).First(&policy, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "policy not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find policy")
	}
	return &policy, nil
}

func (r *repository) FindLatest(ctx context.Context, region, grade string) (*models.Policy, error) {
	var policy models.Policy
	err := r.db.WithContext(ctx).
		Where("region = ? AND grade = ?", region, grade).
		Order("version DESC").
		First(&policy).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no policy configured for region/grade")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find latest policy")
	}
	return &policy, nil
}

func (r *repository) FindDefault(ctx context.Context) (*models.Policy, error) {
	var policy models.Policy
	err := r.db.WithContext(ctx).
		Where("is_default = ?", true).
		Order("version DESC").
		First(&policy).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no default policy seeded")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find default policy")
	}
	return &policy, nil
}
