package policy

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/dealguardhq/dealguard-backend/pkg/db/models"
	pkgerrors "github.com/dealguardhq/dealguard-backend/pkg/errors"
	"github.com/dealguardhq/dealguard-backend/pkg/logger"
)

// Service resolves guardrail thresholds for a market region and grade.
// Policies are seeded out of band; gates only ever read them.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Policy, error)
	// Resolve fails closed: a missing policy is the caller's problem,
	// never a silent default.
	Resolve(ctx context.Context, region, grade string) (*models.Policy, error)
	// ResolveOrDefault falls back to the seeded default policy when the
	// region/grade pair is unconfigured, so the invoice pipeline keeps
	// moving for markets that have not been set up yet. The bool reports
	// whether the fallback was taken; callers must surface it.
	ResolveOrDefault(ctx context.Context, region, grade string) (*models.Policy, bool, error)
}

type service struct {
	repo Repository
	logg *logger.Logger
}

func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, errors.New("policy repository is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Policy, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "policy id is required")
	}
	return s.repo.FindByID(ctx, id)
}

func (s *service) Resolve(ctx context.Context, region, grade string) (*models.Policy, error) {
	region, grade, err := normalizeKey(region, grade)
	if err != nil {
		return nil, err
	}
	return s.repo.FindLatest(ctx, region, grade)
}

func (s *service) ResolveOrDefault(ctx context.Context, region, grade string) (*models.Policy, bool, error) {
	policy, err := s.Resolve(ctx, region, grade)
	if err == nil {
		return policy, false, nil
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		return nil, false, err
	}

	fallback, fbErr := s.repo.FindDefault(ctx)
	if fbErr != nil {
		return nil, false, err
	}
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"region":          region,
		"grade":           grade,
		"fallback_region": fallback.Region,
		"fallback_grade":  fallback.Grade,
	}), "policy.fallback_to_default")
	return fallback, true, nil
}

func normalizeKey(region, grade string) (string, string, error) {
	region = strings.ToLower(strings.TrimSpace(region))
	grade = strings.ToLower(strings.TrimSpace(grade))
	if region == "" || grade == "" {
		return "", "", pkgerrors.New(pkgerrors.CodeValidation, "region and grade are required")
	}
	return region, grade, nil
}
