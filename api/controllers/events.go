package controllers

import (
	"net/http"

	"github.com/dealguardhq/dealguard-backend/api/responses"
	"github.com/dealguardhq/dealguard-backend/internal/events"
	pkgerrors "github.com/dealguardhq/dealguard-backend/pkg/errors"
	"github.com/dealguardhq/dealguard-backend/pkg/logger"
)

// EventList returns a cursor page of a deal's audit events, newest first.
func EventList(svc events.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "events service unavailable"))
			return
		}

		dealID, err := pathUUID(r, "dealId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		page, err := svc.List(ctx, dealID, params)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// EventVerify recomputes every checksum in a deal's event log and reports
// the rows that no longer match.
func EventVerify(svc events.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "events service unavailable"))
			return
		}

		dealID, err := pathUUID(r, "dealId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		reports, err := svc.Verify(ctx, dealID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"tampered": len(reports) > 0,
			"reports":  reports,
		})
	}
}
