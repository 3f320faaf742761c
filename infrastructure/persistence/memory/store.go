// Package memory provides an in-memory LMS data store. It backs local
// development, the operator CLI's dry runs and the service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"lms-dashboard/application/ports"
	"lms-dashboard/domain/core/entities"
	"lms-dashboard/domain/core/valueobjects"
	"lms-dashboard/domain/dashboard"
	pkgerrors "lms-dashboard/pkg/errors"

	"github.com/jonboulle/clockwork"
)

// Store keeps every LMS table the dashboards read in maps guarded by one lock
type Store struct {
	mu sync.RWMutex

	users       map[int64]entities.User
	branches    map[int64]entities.Branch
	courses     map[int64]entities.Course
	members     []entities.GroupMember
	access      []entities.CourseAccess
	enrollments map[int64]entities.Enrollment
	audit       []entities.AuditEntry

	nextEnrollmentID int64
	nextUserID       int64
	nextAuditID      int64

	clock clockwork.Clock
}

// Option configures a Store
type Option func(*Store)

// WithClock sets the clock used to stamp completions found by a resync
func WithClock(clock clockwork.Clock) Option {
	return func(s *Store) {
		s.clock = clock
	}
}

// NewStore creates an empty store
func NewStore(opts ...Option) *Store {
	s := &Store{
		users:       make(map[int64]entities.User),
		branches:    make(map[int64]entities.Branch),
		courses:     make(map[int64]entities.Course),
		enrollments: make(map[int64]entities.Enrollment),
		clock:       clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Seeding helpers

// AddBranch stores a branch
func (s *Store) AddBranch(b entities.Branch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.branches[b.ID] = b
}

// AddUser stores a user with its ID as given
func (s *Store) AddUser(u entities.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	if u.ID > s.nextUserID {
		s.nextUserID = u.ID
	}
}

// AddCourse stores a course
func (s *Store) AddCourse(c entities.Course) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.courses[c.ID] = c
}

// AddGroupMember stores a group membership
func (s *Store) AddGroupMember(m entities.GroupMember) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members = append(s.members, m)
}

// AddCourseAccess stores a group's access to a course
func (s *Store) AddCourseAccess(a entities.CourseAccess) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = append(s.access, a)
}

// AddEnrollment stores an enrollment with its ID as given
func (s *Store) AddEnrollment(e entities.Enrollment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enrollments[e.ID] = e
	if e.ID > s.nextEnrollmentID {
		s.nextEnrollmentID = e.ID
	}
}

// StatsReader

// CountUsers implements ports.StatsReader
func (s *Store) CountUsers(ctx context.Context, filter ports.UserFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, u := range s.users {
		if s.userMatches(u, filter) {
			n++
		}
	}
	return n, nil
}

// CountUsersByRole implements ports.StatsReader
func (s *Store) CountUsersByRole(ctx context.Context, filter ports.UserFilter) (map[valueobjects.Role]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[valueobjects.Role]int64)
	for _, u := range s.users {
		if s.userMatches(u, filter) {
			counts[u.Role]++
		}
	}
	return counts, nil
}

func (s *Store) userMatches(u entities.User, filter ports.UserFilter) bool {
	if filter.ActiveOnly && !u.IsActive {
		return false
	}
	if filter.BranchID != nil && !u.InBranch(*filter.BranchID) {
		return false
	}
	return true
}

// CountCourses implements ports.StatsReader
func (s *Store) CountCourses(ctx context.Context, branchID *int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, c := range s.courses {
		if branchID == nil || (c.BranchID != nil && *c.BranchID == *branchID) {
			n++
		}
	}
	return n, nil
}

// CountBranches implements ports.StatsReader
func (s *Store) CountBranches(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.branches)), nil
}

// CountEnrollments implements ports.StatsReader
func (s *Store) CountEnrollments(ctx context.Context, filter ports.EnrollmentFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, e := range s.enrollments {
		if s.enrollmentMatches(e, filter) {
			n++
		}
	}
	return n, nil
}

// CountProgress implements ports.StatsReader
func (s *Store) CountProgress(ctx context.Context, filter ports.EnrollmentFilter) (ports.ProgressCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var counts ports.ProgressCounts
	for _, e := range s.enrollments {
		if !s.enrollmentMatches(e, filter) {
			continue
		}
		switch e.State() {
		case entities.ProgressCompleted:
			counts.Completed++
		case entities.ProgressInProgress:
			counts.InProgress++
		default:
			counts.NotStarted++
		}
	}
	return counts, nil
}

// enrollmentMatches applies the filter; the user's branch stands for the enrollment's branch
func (s *Store) enrollmentMatches(e entities.Enrollment, filter ports.EnrollmentFilter) bool {
	u, ok := s.users[e.UserID]
	if filter.LearnersOnly && (!ok || !u.Role.IsLearner()) {
		return false
	}
	if filter.Completed != nil && e.Completed != *filter.Completed {
		return false
	}
	if filter.UserIDs != nil && !containsID(filter.UserIDs, e.UserID) {
		return false
	}
	if filter.CourseIDs != nil && !containsID(filter.CourseIDs, e.CourseID) {
		return false
	}

	var branch *int64
	if ok {
		branch = u.BranchID
	}
	if filter.BranchID != nil && (branch == nil || *branch != *filter.BranchID) {
		return false
	}
	if filter.BranchIDs != nil && (branch == nil || !containsID(filter.BranchIDs, *branch)) {
		return false
	}
	if filter.BusinessID != nil {
		if branch == nil {
			return false
		}
		b, found := s.branches[*branch]
		if !found || b.BusinessID == nil || *b.BusinessID != *filter.BusinessID {
			return false
		}
	}
	return true
}

// CountDistinctLearners implements ports.StatsReader
func (s *Store) CountDistinctLearners(ctx context.Context, courseIDs []int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[int64]struct{})
	for _, e := range s.enrollments {
		if !containsID(courseIDs, e.CourseID) {
			continue
		}
		if u, ok := s.users[e.UserID]; ok && u.Role.IsLearner() {
			seen[e.UserID] = struct{}{}
		}
	}
	return int64(len(seen)), nil
}

// DirectCourseIDs implements ports.StatsReader
func (s *Store) DirectCourseIDs(ctx context.Context, instructorID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []int64
	for _, c := range s.courses {
		if c.InstructorID != nil && *c.InstructorID == instructorID {
			ids = append(ids, c.ID)
		}
	}
	return sortedIDs(ids), nil
}

// ActiveGroupIDs implements ports.StatsReader
func (s *Store) ActiveGroupIDs(ctx context.Context, userID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []int64
	for _, m := range s.members {
		if m.UserID == userID && m.IsActive {
			ids = append(ids, m.GroupID)
		}
	}
	return sortedIDs(ids), nil
}

// TeachingCourseIDs implements ports.StatsReader
func (s *Store) TeachingCourseIDs(ctx context.Context, groupIDs []int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []int64
	for _, a := range s.access {
		if a.IsActive && a.Label.GrantsTeaching() && containsID(groupIDs, a.GroupID) {
			ids = append(ids, a.CourseID)
		}
	}
	return sortedIDs(ids), nil
}

// GroupIDsForCourses implements ports.StatsReader
func (s *Store) GroupIDsForCourses(ctx context.Context, courseIDs []int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []int64
	for _, a := range s.access {
		if a.IsActive && containsID(courseIDs, a.CourseID) {
			ids = append(ids, a.GroupID)
		}
	}
	return sortedIDs(ids), nil
}

// CountLoginsByBucket implements ports.StatsReader
func (s *Store) CountLoginsByBucket(ctx context.Context, query ports.ActivityQuery) ([]dashboard.BucketCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stamps []time.Time
	for _, u := range s.users {
		if u.LastLogin == nil {
			continue
		}
		if query.BranchID != nil && !u.InBranch(*query.BranchID) {
			continue
		}
		stamps = append(stamps, *u.LastLogin)
	}
	return bucketize(stamps, query), nil
}

// CountCompletionsByBucket implements ports.StatsReader
func (s *Store) CountCompletionsByBucket(ctx context.Context, query ports.ActivityQuery) ([]dashboard.BucketCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stamps []time.Time
	for _, e := range s.enrollments {
		if !e.Completed || e.CompletionDate == nil {
			continue
		}
		if query.BranchID != nil {
			u, ok := s.users[e.UserID]
			if !ok || !u.InBranch(*query.BranchID) {
				continue
			}
		}
		stamps = append(stamps, *e.CompletionDate)
	}
	return bucketize(stamps, query), nil
}

// bucketize groups timestamps in [From, To) by the query granularity, in From's location
func bucketize(stamps []time.Time, query ports.ActivityQuery) []dashboard.BucketCount {
	loc := query.From.Location()
	counts := make(map[time.Time]int64)
	for _, t := range stamps {
		if t.Before(query.From) || !t.Before(query.To) {
			continue
		}
		lt := t.In(loc)
		var start time.Time
		if query.Granularity == dashboard.GranularityHour {
			start = time.Date(lt.Year(), lt.Month(), lt.Day(), lt.Hour(), 0, 0, 0, loc)
		} else {
			start = time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
		}
		counts[start]++
	}

	out := make([]dashboard.BucketCount, 0, len(counts))
	for start, n := range counts {
		out = append(out, dashboard.BucketCount{Start: start, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// CompletionSyncer

// ResyncBranch implements ports.CompletionSyncer
func (s *Store) ResyncBranch(ctx context.Context, branchID int64) (int64, error) {
	return s.resync(func(u entities.User) bool { return u.InBranch(branchID) }), nil
}

// ResyncUser implements ports.CompletionSyncer
func (s *Store) ResyncUser(ctx context.Context, userID int64) (int64, error) {
	return s.resync(func(u entities.User) bool { return u.ID == userID }), nil
}

func (s *Store) resync(match func(entities.User) bool) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	var changed int64
	for id, e := range s.enrollments {
		u, ok := s.users[e.UserID]
		if !ok || !match(u) {
			continue
		}
		if want := e.ShouldBeCompleted(); want != e.Completed {
			e.Completed = want
			switch {
			case !want:
				e.CompletionDate = nil
			case e.CompletionDate == nil:
				stamp := now
				e.CompletionDate = &stamp
			}
			s.enrollments[id] = e
			changed++
		}
	}
	return changed
}

// AuditLog

// RecentEntries implements ports.AuditLog. Entries recorded without a
// username take the acting user's current one.
func (s *Store) RecentEntries(ctx context.Context, limit int) ([]entities.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]entities.AuditEntry, len(s.audit))
	copy(entries, s.audit)
	for i, e := range entries {
		if e.Username != "" || e.UserID == nil {
			continue
		}
		if u, ok := s.users[*e.UserID]; ok {
			entries[i].Username = u.Username
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Record implements ports.AuditLog
func (s *Store) Record(ctx context.Context, entry entities.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextAuditID++
	entry.ID = s.nextAuditID
	s.audit = append(s.audit, entry)
	return nil
}

// Directory

// UserScope implements ports.Directory
func (s *Store) UserScope(ctx context.Context, userID int64) (entities.UserScope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return entities.UserScope{}, pkgerrors.NewNotFoundError("user")
	}
	scope := entities.UserScope{BranchID: u.BranchID}
	if u.BranchID != nil {
		if b, found := s.branches[*u.BranchID]; found {
			scope.BusinessID = b.BusinessID
		}
	}
	return scope, nil
}

// UserBranches implements ports.Directory
func (s *Store) UserBranches(ctx context.Context, userIDs []int64) (map[int64]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[int64]int64, len(userIDs))
	for _, id := range userIDs {
		if u, ok := s.users[id]; ok && u.BranchID != nil {
			out[id] = *u.BranchID
		}
	}
	return out, nil
}

// BusinessBranchIDs implements ports.Directory
func (s *Store) BusinessBranchIDs(ctx context.Context, businessIDs []int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []int64
	for _, b := range s.branches {
		if b.BusinessID != nil && containsID(businessIDs, *b.BusinessID) {
			ids = append(ids, b.ID)
		}
	}
	return sortedIDs(ids), nil
}

// EnrollmentRepository

// Create implements ports.EnrollmentRepository
func (s *Store) Create(ctx context.Context, enrollment *entities.Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextEnrollmentID++
	enrollment.ID = s.nextEnrollmentID
	s.enrollments[enrollment.ID] = *enrollment
	return nil
}

// GetByID implements ports.EnrollmentRepository
func (s *Store) GetByID(ctx context.Context, id int64) (*entities.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.enrollments[id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("enrollment")
	}
	return &e, nil
}

// Update implements ports.EnrollmentRepository
func (s *Store) Update(ctx context.Context, enrollment *entities.Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.enrollments[enrollment.ID]; !ok {
		return pkgerrors.NewNotFoundError("enrollment")
	}
	s.enrollments[enrollment.ID] = *enrollment
	return nil
}

// Delete implements ports.EnrollmentRepository
func (s *Store) Delete(ctx context.Context, id int64) (*entities.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.enrollments[id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("enrollment")
	}
	delete(s.enrollments, id)
	return &e, nil
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func sortedIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var (
	_ ports.StatsReader          = (*Store)(nil)
	_ ports.CompletionSyncer     = (*Store)(nil)
	_ ports.AuditLog             = (*Store)(nil)
	_ ports.Directory            = (*Store)(nil)
	_ ports.EnrollmentRepository = (*Store)(nil)
)
