package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dealguardhq/dealguard-backend/api/middleware"
	"github.com/dealguardhq/dealguard-backend/api/responses"
	"github.com/dealguardhq/dealguard-backend/api/validators"
	"github.com/dealguardhq/dealguard-backend/internal/changeorders"
	"github.com/dealguardhq/dealguard-backend/internal/gates/bidspread"
	"github.com/dealguardhq/dealguard-backend/internal/gates/changeorder"
	"github.com/dealguardhq/dealguard-backend/internal/gates/exposure"
	"github.com/dealguardhq/dealguard-backend/internal/gates/variance"
	"github.com/dealguardhq/dealguard-backend/internal/invoices"
	pkgerrors "github.com/dealguardhq/dealguard-backend/pkg/errors"
	"github.com/dealguardhq/dealguard-backend/pkg/logger"
)

// resolveActor prefers an explicit payload actor over the X-Actor header.
func resolveActor(r *http.Request, payloadActor string) string {
	if payloadActor != "" {
		return payloadActor
	}
	return middleware.ActorFromContext(r.Context())
}

type exposureGatePayload struct {
	Actor string `json:"actor"`
	Runs  int    `json:"runs" validate:"omitempty,min=1"`
	Seed  int64  `json:"seed"`
}

type awardBidPayload struct {
	Actor string `json:"actor"`
}

type ingestInvoicePayload struct {
	VendorID  uuid.UUID       `json:"vendorId" validate:"required"`
	BidID     *uuid.UUID      `json:"bidId"`
	Trade     string          `json:"trade" validate:"required"`
	AmountUsd decimal.Decimal `json:"amountUsd" validate:"required"`
	Memo      string          `json:"memo"`
	Actor     string          `json:"actor"`
}

type proposeChangeOrderPayload struct {
	Trade       string          `json:"trade" validate:"required"`
	Description string          `json:"description" validate:"required"`
	DeltaUsd    decimal.Decimal `json:"deltaUsd"`
	DelayDays   int             `json:"delayDays" validate:"omitempty,min=0"`
	Actor       string          `json:"actor"`
}

// ExposureEvaluate runs the go/no-go exposure gate for a deal. A block comes
// back as a guardrail conflict carrying the full decision.
func ExposureEvaluate(svc exposure.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "exposure gate unavailable"))
			return
		}

		dealID, err := pathUUID(r, "dealId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		payload := exposureGatePayload{}
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}

		decision, err := svc.Evaluate(ctx, exposure.EvaluateInput{
			DealID: dealID,
			Actor:  resolveActor(r, payload.Actor),
			Runs:   payload.Runs,
			Seed:   payload.Seed,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, decision)
	}
}

// BidAward runs the spread gate over a bid's trade siblings and awards the
// target when the prices agree.
func BidAward(svc bidspread.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bid spread gate unavailable"))
			return
		}

		bidID, err := pathUUID(r, "bidId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		payload := awardBidPayload{}
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}

		decision, err := svc.Award(ctx, bidspread.AwardInput{
			BidID: bidID,
			Actor: resolveActor(r, payload.Actor),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, decision)
	}
}

// InvoiceIngest records an invoice and classifies the resulting variance.
// Every well-formed invoice is accepted; the tier decides the follow-up.
func InvoiceIngest(svc variance.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "variance gate unavailable"))
			return
		}

		dealID, err := pathUUID(r, "dealId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload ingestInvoicePayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		decision, err := svc.Ingest(ctx, variance.IngestInput{
			DealID:    dealID,
			VendorID:  payload.VendorID,
			BidID:     payload.BidID,
			Trade:     payload.Trade,
			AmountUsd: payload.AmountUsd,
			Memo:      payload.Memo,
			Actor:     resolveActor(r, payload.Actor),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, decision)
	}
}

// InvoiceList returns a deal's invoices, newest first.
func InvoiceList(repo invoices.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if repo == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoices repository unavailable"))
			return
		}

		dealID, err := pathUUID(r, "dealId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		rows, err := repo.ListByDealID(ctx, dealID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// ChangeOrderPropose decides a proposed scope change against the frozen
// estimate. Both outcomes are successful responses.
func ChangeOrderPropose(svc changeorder.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "change order gate unavailable"))
			return
		}

		dealID, err := pathUUID(r, "dealId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload proposeChangeOrderPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		decision, err := svc.Propose(ctx, changeorder.ProposeInput{
			DealID:      dealID,
			Trade:       payload.Trade,
			Description: payload.Description,
			DeltaUsd:    payload.DeltaUsd,
			DelayDays:   payload.DelayDays,
			Actor:       resolveActor(r, payload.Actor),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, decision)
	}
}

// ChangeOrderList returns a deal's change orders, newest first.
func ChangeOrderList(repo changeorders.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if repo == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "change orders repository unavailable"))
			return
		}

		dealID, err := pathUUID(r, "dealId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		rows, err := repo.ListByDealID(ctx, dealID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}
