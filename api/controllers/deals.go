package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dealguardhq/dealguard-backend/api/responses"
	"github.com/dealguardhq/dealguard-backend/api/validators"
	"github.com/dealguardhq/dealguard-backend/internal/deals"
	"github.com/dealguardhq/dealguard-backend/internal/ledger"
	"github.com/dealguardhq/dealguard-backend/pkg/enums"
	pkgerrors "github.com/dealguardhq/dealguard-backend/pkg/errors"
	"github.com/dealguardhq/dealguard-backend/pkg/logger"
	"github.com/dealguardhq/dealguard-backend/pkg/pagination"
)

type scopeItemPayload struct {
	Trade           string          `json:"trade" validate:"required"`
	Description     string          `json:"description"`
	CostLowUsd      decimal.Decimal `json:"costLowUsd" validate:"required"`
	CostLikelyUsd   decimal.Decimal `json:"costLikelyUsd" validate:"required"`
	CostHighUsd     decimal.Decimal `json:"costHighUsd" validate:"required"`
	Distribution    string          `json:"distribution"`
	HistVariancePct float64         `json:"histVariancePct"`
	IsCritical      bool            `json:"isCritical"`
}

type createDealPayload struct {
	Address          string             `json:"address" validate:"required"`
	Region           string             `json:"region" validate:"required"`
	Grade            string             `json:"grade" validate:"required"`
	PurchasePriceUsd decimal.Decimal    `json:"purchasePriceUsd" validate:"required"`
	ArvUsd           decimal.Decimal    `json:"arvUsd" validate:"required"`
	MaxExposureUsd   decimal.Decimal    `json:"maxExposureUsd" validate:"required"`
	TargetRoiPct     float64            `json:"targetRoiPct" validate:"required,gt=0"`
	Scope            []scopeItemPayload `json:"scope" validate:"required,min=1,dive"`
}

type estimateDealPayload struct {
	Runs int   `json:"runs" validate:"omitempty,min=1"`
	Seed int64 `json:"seed"`
}

// DealCreate registers a deal and seeds its budget ledger.
func DealCreate(svc deals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "deals service unavailable"))
			return
		}

		var payload createDealPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		input := deals.CreateDealInput{
			Address:          payload.Address,
			Region:           payload.Region,
			Grade:            payload.Grade,
			PurchasePriceUsd: payload.PurchasePriceUsd,
			ArvUsd:           payload.ArvUsd,
			MaxExposureUsd:   payload.MaxExposureUsd,
			TargetRoiPct:     payload.TargetRoiPct,
		}
		for _, item := range payload.Scope {
			distribution := enums.CostDistribution(item.Distribution)
			if item.Distribution != "" && !distribution.IsValid() {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid cost distribution"))
				return
			}
			input.Scope = append(input.Scope, deals.ScopeItemInput{
				Trade:           item.Trade,
				Description:     item.Description,
				CostLowUsd:      item.CostLowUsd,
				CostLikelyUsd:   item.CostLikelyUsd,
				CostHighUsd:     item.CostHighUsd,
				Distribution:    distribution,
				HistVariancePct: item.HistVariancePct,
				IsCritical:      item.IsCritical,
			})
		}

		deal, err := svc.Create(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, deal)
	}
}

// DealDetail returns one deal with its scope and latest estimate.
func DealDetail(svc deals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "deals service unavailable"))
			return
		}

		dealID, err := pathUUID(r, "dealId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		deal, err := svc.Get(ctx, dealID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, deal)
	}
}

// DealList returns a cursor page of deals, newest first.
func DealList(svc deals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "deals service unavailable"))
			return
		}

		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		page, err := svc.List(ctx, params)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// DealEstimate re-runs the cost simulation and stores the fresh summary.
func DealEstimate(svc deals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "deals service unavailable"))
			return
		}

		dealID, err := pathUUID(r, "dealId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		payload := estimateDealPayload{}
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}

		summary, err := svc.Estimate(ctx, deals.EstimateInput{
			DealID: dealID,
			Runs:   payload.Runs,
			Seed:   payload.Seed,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// DealLedger returns the deal's budget row with variance classification.
func DealLedger(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		dealID, err := pathUUID(r, "dealId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		row, err := svc.Get(ctx, dealID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, row)
	}
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, name+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name)
	}
	return id, nil
}

func pageParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", 0, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		Limit:  limit,
	}, nil
}
