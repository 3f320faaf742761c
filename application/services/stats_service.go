package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"lms-dashboard/application/ports"
	"lms-dashboard/domain/core/entities"
	"lms-dashboard/domain/core/valueobjects"
	"lms-dashboard/domain/dashboard"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// ProgressQuery scopes a progress computation
type ProgressQuery struct {
	// Viewer is the user the dashboard is rendered for; it drives role filtering
	Viewer     *entities.Viewer
	BranchID   *int64
	BusinessID *int64
	// ApplyRoleFiltering narrows the enrollments to what the viewer may see
	ApplyRoleFiltering bool
}

// Scope returns the cache scope of the query
func (q ProgressQuery) Scope() dashboard.ProgressScope {
	s := dashboard.ProgressScope{
		BranchID:   q.BranchID,
		BusinessID: q.BusinessID,
		Filtered:   q.ApplyRoleFiltering,
	}
	if q.Viewer != nil {
		uid := q.Viewer.UserID
		s.UserID = &uid
	}
	return s
}

// DefaultRecentActivitiesLimit is the feed length when callers pass none
const DefaultRecentActivitiesLimit = 10

// branchFilterOverfetch widens the audit read when rows are dropped after fetching
const branchFilterOverfetch = 5

// StatsService computes dashboard statistics straight from the store.
// Every method is a pure read; the completion resync lives in CompletionSyncer.
type StatsService struct {
	reader    ports.StatsReader
	audit     ports.AuditLog
	directory ports.Directory
	scoper    ports.EnrollmentScoper
	clock     clockwork.Clock
	location  *time.Location
	logger    *zap.Logger
}

// NewStatsService creates a new stats service. scoper may be nil, in which case
// progress falls back to basic branch or self filtering.
func NewStatsService(
	reader ports.StatsReader,
	audit ports.AuditLog,
	directory ports.Directory,
	scoper ports.EnrollmentScoper,
	clock clockwork.Clock,
	location *time.Location,
	logger *zap.Logger,
) *StatsService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if location == nil {
		location = time.UTC
	}
	return &StatsService{
		reader:    reader,
		audit:     audit,
		directory: directory,
		scoper:    scoper,
		clock:     clock,
		location:  location,
		logger:    logger,
	}
}

// ComputeGlobalStats aggregates the whole platform
func (s *StatsService) ComputeGlobalStats(ctx context.Context) (dashboard.GlobalStats, error) {
	var stats dashboard.GlobalStats
	var err error

	if stats.TotalUsers, err = s.reader.CountUsers(ctx, ports.UserFilter{}); err != nil {
		return stats, fmt.Errorf("failed to count users: %w", err)
	}
	if stats.ActiveUsers, err = s.reader.CountUsers(ctx, ports.UserFilter{ActiveOnly: true}); err != nil {
		return stats, fmt.Errorf("failed to count active users: %w", err)
	}

	byRole, err := s.reader.CountUsersByRole(ctx, ports.UserFilter{})
	if err != nil {
		return stats, fmt.Errorf("failed to count users by role: %w", err)
	}
	stats.LearnerCount = byRole[valueobjects.RoleLearner]
	stats.InstructorCount = byRole[valueobjects.RoleInstructor]
	stats.AdminCount = byRole[valueobjects.RoleAdmin]
	stats.SuperAdminCount = byRole[valueobjects.RoleSuperAdmin]
	stats.GlobalAdminCount = byRole[valueobjects.RoleGlobalAdmin]

	if stats.TotalCourses, err = s.reader.CountCourses(ctx, nil); err != nil {
		return stats, fmt.Errorf("failed to count courses: %w", err)
	}
	if stats.TotalBranches, err = s.reader.CountBranches(ctx); err != nil {
		return stats, fmt.Errorf("failed to count branches: %w", err)
	}

	total, completed, err := s.countLearnerEnrollments(ctx, ports.EnrollmentFilter{})
	if err != nil {
		return stats, err
	}
	stats.TotalEnrollments = total
	stats.CompletedEnrollments = completed
	stats.CompletionRate = dashboard.CompletionRate(completed, total)

	return stats, nil
}

// ComputeBranchStats aggregates one branch. It does not resync completion flags.
func (s *StatsService) ComputeBranchStats(ctx context.Context, branchID int64) (dashboard.BranchStats, error) {
	stats := dashboard.BranchStats{BranchID: branchID}
	branch := &branchID
	var err error

	if stats.TotalUsers, err = s.reader.CountUsers(ctx, ports.UserFilter{BranchID: branch}); err != nil {
		return stats, fmt.Errorf("failed to count branch users: %w", err)
	}
	if stats.ActiveUsers, err = s.reader.CountUsers(ctx, ports.UserFilter{BranchID: branch, ActiveOnly: true}); err != nil {
		return stats, fmt.Errorf("failed to count active branch users: %w", err)
	}

	byRole, err := s.reader.CountUsersByRole(ctx, ports.UserFilter{BranchID: branch})
	if err != nil {
		return stats, fmt.Errorf("failed to count branch users by role: %w", err)
	}
	stats.LearnerCount = byRole[valueobjects.RoleLearner]
	stats.InstructorCount = byRole[valueobjects.RoleInstructor]
	stats.AdminCount = byRole[valueobjects.RoleAdmin]

	if stats.TotalCourses, err = s.reader.CountCourses(ctx, branch); err != nil {
		return stats, fmt.Errorf("failed to count branch courses: %w", err)
	}

	total, completed, err := s.countLearnerEnrollments(ctx, ports.EnrollmentFilter{BranchID: branch})
	if err != nil {
		return stats, err
	}
	stats.TotalEnrollments = total
	stats.CompletedEnrollments = completed
	stats.CompletionRate = dashboard.CompletionRate(completed, total)

	return stats, nil
}

// ComputeInstructorStats aggregates the courses an instructor teaches, either
// directly or through an active membership of a group with teaching access
func (s *StatsService) ComputeInstructorStats(ctx context.Context, userID int64) (dashboard.InstructorStats, error) {
	stats := dashboard.InstructorStats{UserID: userID}

	direct, err := s.reader.DirectCourseIDs(ctx, userID)
	if err != nil {
		return stats, fmt.Errorf("failed to load direct courses: %w", err)
	}
	memberGroups, err := s.reader.ActiveGroupIDs(ctx, userID)
	if err != nil {
		return stats, fmt.Errorf("failed to load group memberships: %w", err)
	}

	var viaGroups []int64
	if len(memberGroups) > 0 {
		if viaGroups, err = s.reader.TeachingCourseIDs(ctx, memberGroups); err != nil {
			return stats, fmt.Errorf("failed to load group courses: %w", err)
		}
	}

	courses := unionIDs(direct, viaGroups)
	stats.AssignedCoursesCount = int64(len(courses))

	var courseGroups []int64
	if len(courses) > 0 {
		if courseGroups, err = s.reader.GroupIDsForCourses(ctx, courses); err != nil {
			return stats, fmt.Errorf("failed to load course groups: %w", err)
		}
	}
	stats.InstructorGroupsCount = int64(len(unionIDs(courseGroups, memberGroups)))

	if len(courses) == 0 {
		return stats, nil
	}

	if stats.UniqueLearnersCount, err = s.reader.CountDistinctLearners(ctx, courses); err != nil {
		return stats, fmt.Errorf("failed to count learners: %w", err)
	}

	total, completed, err := s.countLearnerEnrollments(ctx, ports.EnrollmentFilter{CourseIDs: courses})
	if err != nil {
		return stats, err
	}
	stats.TotalEnrollments = total
	stats.CompletedEnrollments = completed
	stats.CompletionRate = dashboard.CompletionRate(completed, total)

	return stats, nil
}

// ComputeProgress buckets learner enrollments in the query scope
func (s *StatsService) ComputeProgress(ctx context.Context, q ProgressQuery) (dashboard.ProgressData, error) {
	filter := ports.EnrollmentFilter{
		BranchID:     q.BranchID,
		BusinessID:   q.BusinessID,
		LearnersOnly: true,
	}

	if q.ApplyRoleFiltering && q.Viewer != nil {
		filter = s.scopeFilter(ctx, *q.Viewer, filter)
	}

	counts, err := s.reader.CountProgress(ctx, filter)
	if err != nil {
		return dashboard.ProgressData{}, fmt.Errorf("failed to count progress: %w", err)
	}

	return dashboard.NewProgressData(counts.Completed, counts.InProgress, counts.NotStarted), nil
}

// scopeFilter applies role-based filtering, degrading to basic filtering
// when the scoper is missing or fails
func (s *StatsService) scopeFilter(ctx context.Context, viewer entities.Viewer, filter ports.EnrollmentFilter) ports.EnrollmentFilter {
	if s.scoper != nil {
		scoped, err := s.scoper.Scope(ctx, viewer, filter)
		if err == nil {
			scoped.LearnersOnly = true
			return scoped
		}
		s.logger.Warn("Role-based filtering failed, using basic filtering",
			zap.Int64("viewerID", viewer.UserID),
			zap.String("role", viewer.Role.String()),
			zap.Error(err),
		)
	} else {
		s.logger.Warn("Role-based filtering unavailable, using basic filtering",
			zap.Int64("viewerID", viewer.UserID),
		)
	}
	return BasicScope(viewer, filter)
}

// BasicScope is the fallback visibility rule: learners see their own
// enrollments, everyone else the requested branch or their own branch
func BasicScope(viewer entities.Viewer, filter ports.EnrollmentFilter) ports.EnrollmentFilter {
	if viewer.Role.IsLearner() {
		filter.UserIDs = []int64{viewer.UserID}
		return filter
	}
	if filter.BranchID == nil && viewer.BranchID != nil && viewer.Role != valueobjects.RoleGlobalAdmin {
		branch := *viewer.BranchID
		filter.BranchID = &branch
	}
	return filter
}

// ComputeActivity counts logins and completions per bucket of the timeframe
func (s *StatsService) ComputeActivity(ctx context.Context, tf valueobjects.Timeframe, branchID *int64) (dashboard.ActivityData, error) {
	window := dashboard.NewActivityWindow(tf, s.clock.Now().In(s.location))
	query := ports.ActivityQuery{
		From:        window.From(),
		To:          window.To(),
		Granularity: window.Granularity,
		BranchID:    branchID,
	}

	logins, err := s.reader.CountLoginsByBucket(ctx, query)
	if err != nil {
		return dashboard.ActivityData{}, fmt.Errorf("failed to count logins: %w", err)
	}
	completions, err := s.reader.CountCompletionsByBucket(ctx, query)
	if err != nil {
		return dashboard.ActivityData{}, fmt.Errorf("failed to count completions: %w", err)
	}

	return dashboard.ActivityData{
		Timeframe:   window.Timeframe,
		Labels:      window.Labels(),
		Logins:      window.Fill(logins),
		Completions: window.Fill(completions),
	}, nil
}

// ComputeRecentActivities builds the feed. Branch filtering happens after the
// fetch by looking up each actor's branch, so the read is widened to keep the
// feed full.
func (s *StatsService) ComputeRecentActivities(ctx context.Context, limit int, branchID *int64) ([]dashboard.RecentActivity, error) {
	if limit <= 0 {
		limit = DefaultRecentActivitiesLimit
	}

	fetch := limit
	if branchID != nil {
		fetch = limit * branchFilterOverfetch
	}

	entries, err := s.audit.RecentEntries(ctx, fetch)
	if err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}

	if branchID != nil {
		entries, err = s.filterByActorBranch(ctx, entries, *branchID)
		if err != nil {
			return nil, err
		}
	}

	activities := make([]dashboard.RecentActivity, 0, min(limit, len(entries)))
	for _, e := range entries {
		if len(activities) == limit {
			break
		}
		activities = append(activities, toRecentActivity(e))
	}
	return activities, nil
}

func (s *StatsService) filterByActorBranch(ctx context.Context, entries []entities.AuditEntry, branchID int64) ([]entities.AuditEntry, error) {
	var actors []int64
	for _, e := range entries {
		if e.UserID != nil {
			actors = append(actors, *e.UserID)
		}
	}
	if len(actors) == 0 {
		return nil, nil
	}

	branches, err := s.directory.UserBranches(ctx, unionIDs(actors))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve actor branches: %w", err)
	}

	filtered := entries[:0:0]
	for _, e := range entries {
		if e.UserID == nil {
			continue
		}
		if b, ok := branches[*e.UserID]; ok && b == branchID {
			filtered = append(filtered, e)
		}
	}
	return filtered, nil
}

func toRecentActivity(e entities.AuditEntry) dashboard.RecentActivity {
	description := e.Description
	if description == "" {
		description = e.Action
	}
	user := e.Username
	if user == "" {
		user = "System"
	}
	return dashboard.RecentActivity{
		Description: description,
		Timestamp:   e.Timestamp,
		Icon:        dashboard.IconForAction(e.Action),
		User:        user,
	}
}

func (s *StatsService) countLearnerEnrollments(ctx context.Context, filter ports.EnrollmentFilter) (total, completed int64, err error) {
	filter.LearnersOnly = true
	filter.Completed = nil
	if total, err = s.reader.CountEnrollments(ctx, filter); err != nil {
		return 0, 0, fmt.Errorf("failed to count enrollments: %w", err)
	}
	done := true
	filter.Completed = &done
	if completed, err = s.reader.CountEnrollments(ctx, filter); err != nil {
		return 0, 0, fmt.Errorf("failed to count completed enrollments: %w", err)
	}
	return total, completed, nil
}

// unionIDs merges id lists into one sorted list without duplicates
func unionIDs(lists ...[]int64) []int64 {
	seen := make(map[int64]struct{})
	var out []int64
	for _, list := range lists {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
