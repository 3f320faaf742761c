package services

import (
	"context"
	"fmt"

	pkgerrors "lms-dashboard/pkg/errors"

	"go.uber.org/zap"
)

// ClearRequest is an operator cache clear. All wins over everything else;
// the only-flags narrow a scoped clear to one family.
type ClearRequest struct {
	All          bool   `json:"all"`
	BranchID     *int64 `json:"branch_id,omitempty" validate:"omitempty,gt=0"`
	BusinessID   *int64 `json:"business_id,omitempty" validate:"omitempty,gt=0"`
	ProgressOnly bool   `json:"progress_only"`
	ActivityOnly bool   `json:"activity_only"`
	DryRun       bool   `json:"dry_run"`
}

// ClearResult lists the operations run, or that would run on a dry run
type ClearResult struct {
	Actions []string `json:"actions"`
	DryRun  bool     `json:"dry_run"`
}

type clearStep struct {
	description string
	run         func(ctx context.Context)
}

// plan resolves the request into eviction steps without running them
func (c *InvalidationCoordinator) plan(req ClearRequest) ([]clearStep, error) {
	if req.All {
		return []clearStep{{
			description: "clear all dashboard cache entries",
			run:         c.ClearAllDashboardCache,
		}}, nil
	}

	if req.ProgressOnly && req.ActivityOnly {
		return nil, pkgerrors.NewValidationError("progress_only and activity_only are mutually exclusive")
	}

	switch {
	case req.ProgressOnly:
		return []clearStep{{
			description: "clear progress entries" + describeScope(req.BranchID, req.BusinessID),
			run: func(ctx context.Context) {
				c.ClearProgress(ctx, req.BranchID, req.BusinessID)
			},
		}}, nil
	case req.ActivityOnly:
		if req.BusinessID != nil && req.BranchID == nil {
			return nil, pkgerrors.NewValidationError("activity entries are scoped by branch, not business")
		}
		return []clearStep{{
			description: "clear activity entries" + describeScope(req.BranchID, nil),
			run: func(ctx context.Context) {
				c.ClearActivity(ctx, req.BranchID)
			},
		}}, nil
	case req.BranchID != nil || req.BusinessID != nil:
		return []clearStep{{
			description: "invalidate dashboard data" + describeScope(req.BranchID, req.BusinessID),
			run: func(ctx context.Context) {
				c.InvalidateDashboardData(ctx, InvalidationScope{BranchID: req.BranchID, BusinessID: req.BusinessID})
			},
		}}, nil
	}

	return nil, pkgerrors.NewValidationError("nothing to clear: set all, a branch, a business or an only flag")
}

// ExecuteClear runs an operator clear. Evictions never fail; the only
// errors are invalid requests.
func (c *InvalidationCoordinator) ExecuteClear(ctx context.Context, req ClearRequest) (ClearResult, error) {
	steps, err := c.plan(req)
	if err != nil {
		return ClearResult{}, err
	}

	result := ClearResult{DryRun: req.DryRun, Actions: make([]string, 0, len(steps))}
	for _, step := range steps {
		result.Actions = append(result.Actions, step.description)
		if req.DryRun {
			continue
		}
		step.run(ctx)
	}

	c.logger.Info("Operator cache clear",
		zap.Strings("actions", result.Actions),
		zap.Bool("dryRun", req.DryRun),
	)
	return result, nil
}

func describeScope(branchID, businessID *int64) string {
	switch {
	case branchID != nil && businessID != nil:
		return fmt.Sprintf(" for branch %d and business %d", *branchID, *businessID)
	case branchID != nil:
		return fmt.Sprintf(" for branch %d", *branchID)
	case businessID != nil:
		return fmt.Sprintf(" for business %d", *businessID)
	}
	return " (all scopes)"
}
