package memory

import (
	"context"
	"testing"
	"time"

	"lms-dashboard/application/ports"
	"lms-dashboard/domain/core/entities"
	"lms-dashboard/domain/core/valueobjects"
	"lms-dashboard/domain/dashboard"
	pkgerrors "lms-dashboard/pkg/errors"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64p(v int64) *int64 { return &v }

func TestStore_ResyncIsIdempotent(t *testing.T) {
	// Arrange
	s := NewStore()
	s.AddUser(entities.User{ID: 1, Role: valueobjects.RoleLearner, BranchID: int64p(7)})
	s.AddUser(entities.User{ID: 2, Role: valueobjects.RoleLearner, BranchID: int64p(8)})
	s.AddEnrollment(entities.Enrollment{ID: 1, UserID: 1, CourseID: 1, TopicsCompleted: 3, TotalTopics: 3})
	s.AddEnrollment(entities.Enrollment{ID: 2, UserID: 1, CourseID: 2, Completed: true, TopicsCompleted: 1, TotalTopics: 3})
	s.AddEnrollment(entities.Enrollment{ID: 3, UserID: 2, CourseID: 1, TopicsCompleted: 3, TotalTopics: 3})
	ctx := context.Background()

	// Act
	first, err := s.ResyncBranch(ctx, 7)
	require.NoError(t, err)
	second, err := s.ResyncBranch(ctx, 7)
	require.NoError(t, err)

	// Assert
	assert.Equal(t, int64(2), first)
	assert.Equal(t, int64(0), second)
	e3, err := s.GetByID(ctx, 3)
	require.NoError(t, err)
	assert.False(t, e3.Completed, "other branches are untouched")
}

func TestStore_ResyncStampsCompletionDate(t *testing.T) {
	// Arrange
	now := time.Date(2024, 3, 14, 15, 0, 0, 0, time.UTC)
	earlier := now.Add(-48 * time.Hour)
	s := NewStore(WithClock(clockwork.NewFakeClockAt(now)))
	s.AddUser(entities.User{ID: 1, Role: valueobjects.RoleLearner, BranchID: int64p(7)})
	s.AddEnrollment(entities.Enrollment{ID: 1, UserID: 1, CourseID: 1, TopicsCompleted: 3, TotalTopics: 3})
	s.AddEnrollment(entities.Enrollment{ID: 2, UserID: 1, CourseID: 2, TopicsCompleted: 2, TotalTopics: 2, CompletionDate: &earlier})
	s.AddEnrollment(entities.Enrollment{ID: 3, UserID: 1, CourseID: 3, Completed: true, CompletionDate: &earlier, TopicsCompleted: 1, TotalTopics: 2})
	ctx := context.Background()

	// Act
	changed, err := s.ResyncUser(ctx, 1)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(3), changed)

	e1, err := s.GetByID(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, e1.CompletionDate)
	assert.True(t, e1.CompletionDate.Equal(now))

	e2, err := s.GetByID(ctx, 2)
	require.NoError(t, err)
	assert.True(t, e2.CompletionDate.Equal(earlier), "an existing date is kept")

	e3, err := s.GetByID(ctx, 3)
	require.NoError(t, err)
	assert.Nil(t, e3.CompletionDate)

	buckets, err := s.CountCompletionsByBucket(ctx, ports.ActivityQuery{
		From:        now.Add(-time.Hour),
		To:          now.Add(time.Hour),
		Granularity: dashboard.GranularityHour,
	})
	require.NoError(t, err)
	var total int64
	for _, b := range buckets {
		total += b.Count
	}
	assert.Equal(t, int64(1), total, "the resynced completion is counted in activity")
}

func TestStore_RecentEntriesResolvesUsername(t *testing.T) {
	s := NewStore()
	s.AddUser(entities.User{ID: 5, Username: "jdoe", Role: valueobjects.RoleInstructor})
	ts := time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()
	require.NoError(t, s.Record(ctx, entities.AuditEntry{UserID: int64p(5), Action: "enrollment_created", Timestamp: ts}))
	require.NoError(t, s.Record(ctx, entities.AuditEntry{UserID: int64p(5), Username: "old-name", Action: "login", Timestamp: ts.Add(time.Minute)}))
	require.NoError(t, s.Record(ctx, entities.AuditEntry{Action: "system", Timestamp: ts.Add(2 * time.Minute)}))

	entries, err := s.RecentEntries(ctx, 10)

	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "", entries[0].Username)
	assert.Equal(t, "old-name", entries[1].Username, "a recorded username wins")
	assert.Equal(t, "jdoe", entries[2].Username)
}

func TestStore_CountProgressBusinessFilter(t *testing.T) {
	s := NewStore()
	s.AddBranch(entities.Branch{ID: 7, BusinessID: int64p(1)})
	s.AddBranch(entities.Branch{ID: 9, BusinessID: int64p(2)})
	s.AddUser(entities.User{ID: 1, Role: valueobjects.RoleLearner, BranchID: int64p(7)})
	s.AddUser(entities.User{ID: 2, Role: valueobjects.RoleLearner, BranchID: int64p(9)})
	s.AddUser(entities.User{ID: 3, Role: valueobjects.RoleLearner})
	s.AddEnrollment(entities.Enrollment{ID: 1, UserID: 1, CourseID: 1, Completed: true})
	s.AddEnrollment(entities.Enrollment{ID: 2, UserID: 2, CourseID: 1, TopicsCompleted: 1})
	s.AddEnrollment(entities.Enrollment{ID: 3, UserID: 3, CourseID: 1})

	counts, err := s.CountProgress(context.Background(), ports.EnrollmentFilter{BusinessID: int64p(1), LearnersOnly: true})

	require.NoError(t, err)
	assert.Equal(t, ports.ProgressCounts{Completed: 1}, counts)
}

func TestStore_CountLoginsByBucket(t *testing.T) {
	s := NewStore()
	from := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	stamps := []time.Time{
		from.Add(2 * time.Hour),
		from.Add(5 * time.Hour),
		from.Add(26 * time.Hour),
		from.Add(-time.Hour),
	}
	for i, at := range stamps {
		at := at
		s.AddUser(entities.User{ID: int64(i + 1), Role: valueobjects.RoleLearner, LastLogin: &at})
	}

	counts, err := s.CountLoginsByBucket(context.Background(), ports.ActivityQuery{
		From:        from,
		To:          from.AddDate(0, 0, 7),
		Granularity: dashboard.GranularityDay,
	})

	require.NoError(t, err)
	assert.Equal(t, []dashboard.BucketCount{
		{Start: from, Count: 2},
		{Start: from.AddDate(0, 0, 1), Count: 1},
	}, counts)
}

func TestStore_DirectoryAndRepositories(t *testing.T) {
	s := NewStore()
	s.AddBranch(entities.Branch{ID: 7, BusinessID: int64p(1)})
	s.AddUser(entities.User{ID: 1, Role: valueobjects.RoleLearner, BranchID: int64p(7)})
	s.AddUser(entities.User{ID: 2, Role: valueobjects.RoleLearner})
	ctx := context.Background()

	scope, err := s.UserScope(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64p(7), scope.BranchID)
	assert.Equal(t, int64p(1), scope.BusinessID)

	scope, err = s.UserScope(ctx, 2)
	require.NoError(t, err)
	assert.Nil(t, scope.BranchID)

	_, err = s.UserScope(ctx, 3)
	assert.True(t, pkgerrors.IsNotFound(err))

	branches, err := s.UserBranches(ctx, []int64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, map[int64]int64{1: 7}, branches)

	_, err = s.Delete(ctx, 99)
	assert.True(t, pkgerrors.IsNotFound(err))

	at := time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)
	u, err := s.Users().RecordLogin(ctx, 2, at)
	require.NoError(t, err)
	assert.Equal(t, at, *u.LastLogin)
}
