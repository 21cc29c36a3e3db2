package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/dealguardhq/dealguard-backend/api/responses"
	"github.com/dealguardhq/dealguard-backend/api/validators"
	"github.com/dealguardhq/dealguard-backend/internal/bids"
	pkgerrors "github.com/dealguardhq/dealguard-backend/pkg/errors"
	"github.com/dealguardhq/dealguard-backend/pkg/logger"
	"github.com/dealguardhq/dealguard-backend/pkg/types"
)

type submitBidPayload struct {
	VendorID  uuid.UUID           `json:"vendorId" validate:"required"`
	Trade     string              `json:"trade" validate:"required"`
	LineItems []types.BidLineItem `json:"lineItems" validate:"required,min=1,dive"`
}

// BidSubmit records a vendor bid against a deal's trade.
func BidSubmit(svc bids.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bids service unavailable"))
			return
		}

		dealID, err := pathUUID(r, "dealId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload submitBidPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		bid, err := svc.Submit(ctx, bids.SubmitBidInput{
			DealID:    dealID,
			VendorID:  payload.VendorID,
			Trade:     payload.Trade,
			LineItems: types.BidLineItems(payload.LineItems),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, bid)
	}
}

// BidDetail returns one bid with its vendor.
func BidDetail(svc bids.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bids service unavailable"))
			return
		}

		bidID, err := pathUUID(r, "bidId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		bid, err := svc.Get(ctx, bidID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, bid)
	}
}

// BidList returns every bid submitted against a deal.
func BidList(svc bids.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bids service unavailable"))
			return
		}

		dealID, err := pathUUID(r, "dealId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		rows, err := svc.ListByDeal(ctx, dealID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}
