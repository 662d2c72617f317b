package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/abandoned"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	defaultAbandonedLimit = 50
	maxAbandonedLimit     = 500
)

type abandonedListResponse struct {
	Records []abandoned.Record `json:"records"`
	Total   int                `json:"total"`
}

// AdminAbandonedCheckouts lists recorded abandoned checkouts, newest first.
func AdminAbandonedCheckouts(recorder abandoned.Recorder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if recorder == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "abandoned checkout recorder unavailable"))
			return
		}
		limit, err := validators.ParseLimit(r, defaultAbandonedLimit, maxAbandonedLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		records, err := recorder.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		newest := make([]abandoned.Record, 0, min(limit, len(records)))
		for i := len(records) - 1; i >= 0 && len(newest) < limit; i-- {
			newest = append(newest, records[i])
		}
		if logg != nil {
			logCtx := logg.WithFields(r.Context(), map[string]any{
				"admin_id": middleware.UserIDFromContext(r.Context()),
				"returned": len(newest),
			})
			logg.Info(logCtx, "admin.abandoned_checkouts.listed")
		}
		responses.WriteSuccess(w, abandonedListResponse{Records: newest, Total: len(records)})
	}
}

// AdminOrderBumps lists every order bump, active or not.
func AdminOrderBumps(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		bumps, err := svc.ListOrderBumps(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, bumps)
	}
}

// AdminUpsells lists every upsell offer, active or not.
func AdminUpsells(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		upsells, err := svc.ListUpsells(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, upsells)
	}
}
