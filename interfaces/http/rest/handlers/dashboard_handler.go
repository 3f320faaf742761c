package handlers

import (
	"context"
	"net/http"
	"strconv"

	"lms-dashboard/application/services"
	"lms-dashboard/domain/core/entities"
	"lms-dashboard/domain/core/valueobjects"
	"lms-dashboard/domain/dashboard"
	"lms-dashboard/pkg/common"
	pkgerrors "lms-dashboard/pkg/errors"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const maxRecentActivities = 100

// DashboardReader is the read side of the metrics cache
type DashboardReader interface {
	GetGlobalStats(ctx context.Context) (dashboard.GlobalStats, error)
	GetBranchStats(ctx context.Context, branchID int64) (dashboard.BranchStats, error)
	GetInstructorStats(ctx context.Context, userID int64) (dashboard.InstructorStats, error)
	GetProgressData(ctx context.Context, q services.ProgressQuery) (dashboard.ProgressData, error)
	GetActivityData(ctx context.Context, tf valueobjects.Timeframe, branchID *int64) (dashboard.ActivityData, error)
	GetRecentActivities(ctx context.Context, limit int, branchID *int64) ([]dashboard.RecentActivity, error)
}

// AccessChecker settles which tenants a viewer may read
type AccessChecker interface {
	BranchScope(ctx context.Context, actor *entities.Viewer, requested *int64) (*int64, error)
	CanViewAllBranches(actor *entities.Viewer) bool
	AuthorizeInstructorRead(ctx context.Context, actor *entities.Viewer, userID int64) error
}

// DashboardHandler serves the dashboard statistics. Aggregation failures
// render zeroed statistics flagged as degraded instead of an error page.
type DashboardHandler struct {
	reader DashboardReader
	access AccessChecker
	errors *pkgerrors.ErrorHandler
	clock  clockwork.Clock
	logger *zap.Logger
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(reader DashboardReader, access AccessChecker, errHandler *pkgerrors.ErrorHandler, clock clockwork.Clock, logger *zap.Logger) *DashboardHandler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &DashboardHandler{
		reader: reader,
		access: access,
		errors: errHandler,
		clock:  clock,
		logger: logger,
	}
}

// GetGlobalStats handles GET /dashboard/global
func (h *DashboardHandler) GetGlobalStats(w http.ResponseWriter, r *http.Request) {
	v, err := viewer(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	if !h.access.CanViewAllBranches(v) {
		h.errors.Handle(w, r, pkgerrors.NewForbiddenError("global statistics require a global administrator"))
		return
	}

	stats, err := h.reader.GetGlobalStats(r.Context())
	if err != nil {
		h.degrade(w, r, "global", err, dashboard.GlobalStats{})
		return
	}
	common.RespondJSON(w, http.StatusOK, stats)
}

// GetBranchStats handles GET /dashboard/branches/{branchID}
func (h *DashboardHandler) GetBranchStats(w http.ResponseWriter, r *http.Request) {
	v, err := viewer(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	branchID, err := pathID(r, "branchID")
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	if _, err := h.access.BranchScope(r.Context(), v, &branchID); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	stats, err := h.reader.GetBranchStats(r.Context(), branchID)
	if err != nil {
		h.degrade(w, r, "branch", err, dashboard.BranchStats{BranchID: branchID})
		return
	}
	common.RespondJSON(w, http.StatusOK, stats)
}

// GetInstructorStats handles GET /dashboard/instructors/{userID}. Instructors
// may only read their own statistics, administrators those in their branches.
func (h *DashboardHandler) GetInstructorStats(w http.ResponseWriter, r *http.Request) {
	v, err := viewer(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	userID, err := pathID(r, "userID")
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	if err := h.access.AuthorizeInstructorRead(r.Context(), v, userID); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	stats, err := h.reader.GetInstructorStats(r.Context(), userID)
	if err != nil {
		h.degrade(w, r, "instructor", err, dashboard.InstructorStats{UserID: userID})
		return
	}
	common.RespondJSON(w, http.StatusOK, stats)
}

// GetProgressData handles GET /dashboard/progress?branch=&business=&filtered=.
// Only global administrators may switch role filtering off.
func (h *DashboardHandler) GetProgressData(w http.ResponseWriter, r *http.Request) {
	v, err := viewer(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	branchID, err := queryID(r, "branch")
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	businessID, err := queryID(r, "business")
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	filtered, err := queryBool(r, "filtered", true)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	if !h.access.CanViewAllBranches(v) {
		filtered = true
	}

	data, err := h.reader.GetProgressData(r.Context(), services.ProgressQuery{
		Viewer:             v,
		BranchID:           branchID,
		BusinessID:         businessID,
		ApplyRoleFiltering: filtered,
	})
	if err != nil {
		h.degrade(w, r, "progress", err, dashboard.ProgressData{})
		return
	}
	common.RespondJSON(w, http.StatusOK, data)
}

// GetActivityData handles GET /dashboard/activity?timeframe=&branch=
func (h *DashboardHandler) GetActivityData(w http.ResponseWriter, r *http.Request) {
	v, err := viewer(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	tf := valueobjects.TimeframeWeek
	if raw := r.URL.Query().Get("timeframe"); raw != "" {
		if tf, err = valueobjects.ParseTimeframe(raw); err != nil {
			h.errors.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
			return
		}
	}
	requested, err := queryID(r, "branch")
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	branchID, err := h.access.BranchScope(r.Context(), v, requested)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	data, err := h.reader.GetActivityData(r.Context(), tf, branchID)
	if err != nil {
		window := dashboard.NewActivityWindow(tf, h.clock.Now())
		zeros := make([]int64, len(window.Buckets))
		h.degrade(w, r, "activity", err, dashboard.ActivityData{
			Timeframe:   tf,
			Labels:      window.Labels(),
			Logins:      zeros,
			Completions: zeros,
		})
		return
	}
	common.RespondJSON(w, http.StatusOK, data)
}

// GetRecentActivities handles GET /dashboard/recent-activities?limit=&branch=
func (h *DashboardHandler) GetRecentActivities(w http.ResponseWriter, r *http.Request) {
	v, err := viewer(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	limit := services.DefaultRecentActivitiesLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 || limit > maxRecentActivities {
			h.errors.Handle(w, r, pkgerrors.NewValidationError("limit must be between 1 and 100"))
			return
		}
	}
	requested, err := queryID(r, "branch")
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	branchID, err := h.access.BranchScope(r.Context(), v, requested)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	feed, err := h.reader.GetRecentActivities(r.Context(), limit, branchID)
	if err != nil {
		h.degrade(w, r, "recent_activities", err, []dashboard.RecentActivity{})
		return
	}
	if feed == nil {
		feed = []dashboard.RecentActivity{}
	}
	common.RespondJSON(w, http.StatusOK, feed)
}

// degrade logs the aggregation failure and serves zeroed statistics
func (h *DashboardHandler) degrade(w http.ResponseWriter, r *http.Request, family string, err error, zero interface{}) {
	h.logger.Error("Dashboard aggregation failed, serving degraded statistics",
		zap.String("family", family),
		zap.String("path", r.URL.Path),
		zap.String("requestID", common.ExtractRequestID(r)),
		zap.Error(err),
	)
	common.RespondDegraded(w, r, zero, h.clock.Now())
}
