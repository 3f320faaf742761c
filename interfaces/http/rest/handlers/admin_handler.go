package handlers

import (
	"context"
	"net/http"

	"lms-dashboard/application/services"
	"lms-dashboard/infrastructure/cache"
	"lms-dashboard/pkg/common"
	pkgerrors "lms-dashboard/pkg/errors"
	"lms-dashboard/pkg/utils"

	"go.uber.org/zap"
)

// CacheClearer runs operator cache clears
type CacheClearer interface {
	ExecuteClear(ctx context.Context, req services.ClearRequest) (services.ClearResult, error)
}

// CacheStatsProvider exposes local cache store statistics
type CacheStatsProvider interface {
	Stats() cache.Stats
}

// AdminHandler handles the operator cache endpoints
type AdminHandler struct {
	clearer CacheClearer
	stats   CacheStatsProvider
	errors  *pkgerrors.ErrorHandler
	logger  *zap.Logger
}

// NewAdminHandler creates a new admin handler. stats is nil when the cache
// store is shared and keeps no local statistics.
func NewAdminHandler(clearer CacheClearer, stats CacheStatsProvider, errHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		clearer: clearer,
		stats:   stats,
		errors:  errHandler,
		logger:  logger,
	}
}

// ClearCache handles POST /admin/cache/clear
func (h *AdminHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	v, err := viewer(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	var req services.ClearRequest
	if err := common.ParseJSONBody(w, r, &req, maxBodyBytes); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("Invalid request body: "+err.Error()))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	result, err := h.clearer.ExecuteClear(r.Context(), req)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.logger.Info("Cache cleared via API",
		zap.Int64("operatorID", v.UserID),
		zap.Strings("actions", result.Actions),
		zap.Bool("dryRun", result.DryRun),
	)
	common.RespondJSON(w, http.StatusOK, result)
}

// CacheStats handles GET /admin/cache/stats
func (h *AdminHandler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		h.errors.Handle(w, r, pkgerrors.NewNotFoundError("local cache statistics"))
		return
	}
	common.RespondJSON(w, http.StatusOK, h.stats.Stats())
}
