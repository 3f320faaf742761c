package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"lms-dashboard/application/services"
	"lms-dashboard/domain/core/entities"
	"lms-dashboard/domain/core/valueobjects"
	"lms-dashboard/domain/dashboard"
	"lms-dashboard/infrastructure/persistence/memory"
	"lms-dashboard/pkg/auth"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
)

type mockDashboardReader struct {
	mock.Mock
}

func (m *mockDashboardReader) GetGlobalStats(ctx context.Context) (dashboard.GlobalStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(dashboard.GlobalStats), args.Error(1)
}

func (m *mockDashboardReader) GetBranchStats(ctx context.Context, branchID int64) (dashboard.BranchStats, error) {
	args := m.Called(ctx, branchID)
	return args.Get(0).(dashboard.BranchStats), args.Error(1)
}

func (m *mockDashboardReader) GetInstructorStats(ctx context.Context, userID int64) (dashboard.InstructorStats, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(dashboard.InstructorStats), args.Error(1)
}

func (m *mockDashboardReader) GetProgressData(ctx context.Context, q services.ProgressQuery) (dashboard.ProgressData, error) {
	args := m.Called(ctx, q)
	return args.Get(0).(dashboard.ProgressData), args.Error(1)
}

func (m *mockDashboardReader) GetActivityData(ctx context.Context, tf valueobjects.Timeframe, branchID *int64) (dashboard.ActivityData, error) {
	args := m.Called(ctx, tf, branchID)
	return args.Get(0).(dashboard.ActivityData), args.Error(1)
}

func (m *mockDashboardReader) GetRecentActivities(ctx context.Context, limit int, branchID *int64) ([]dashboard.RecentActivity, error) {
	args := m.Called(ctx, limit, branchID)
	feed, _ := args.Get(0).([]dashboard.RecentActivity)
	return feed, args.Error(1)
}

type mockEnrollmentWriter struct {
	mock.Mock
}

func (m *mockEnrollmentWriter) Enroll(ctx context.Context, actor *entities.Viewer, enrollment *entities.Enrollment) error {
	args := m.Called(ctx, actor, enrollment)
	return args.Error(0)
}

func (m *mockEnrollmentWriter) UpdateProgress(ctx context.Context, actor *entities.Viewer, id int64, update services.ProgressUpdate) (*entities.Enrollment, error) {
	args := m.Called(ctx, actor, id, update)
	e, _ := args.Get(0).(*entities.Enrollment)
	return e, args.Error(1)
}

func (m *mockEnrollmentWriter) Unenroll(ctx context.Context, actor *entities.Viewer, id int64) error {
	args := m.Called(ctx, actor, id)
	return args.Error(0)
}

type mockUserWriter struct {
	mock.Mock
}

func (m *mockUserWriter) Register(ctx context.Context, actor *entities.Viewer, user *entities.User) error {
	args := m.Called(ctx, actor, user)
	return args.Error(0)
}

func (m *mockUserWriter) SetActive(ctx context.Context, actor *entities.Viewer, userID int64, active bool) (*entities.User, error) {
	args := m.Called(ctx, actor, userID, active)
	u, _ := args.Get(0).(*entities.User)
	return u, args.Error(1)
}

func (m *mockUserWriter) RecordLogin(ctx context.Context, actor *entities.Viewer, userID int64) (*entities.User, error) {
	args := m.Called(ctx, actor, userID)
	u, _ := args.Get(0).(*entities.User)
	return u, args.Error(1)
}

type mockClearer struct {
	mock.Mock
}

func (m *mockClearer) ExecuteClear(ctx context.Context, req services.ClearRequest) (services.ClearResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(services.ClearResult), args.Error(1)
}

func int64p(v int64) *int64 { return &v }

var (
	globalAdmin = &entities.Viewer{UserID: 1, Role: valueobjects.RoleGlobalAdmin}
	branchAdmin = &entities.Viewer{UserID: 2, Role: valueobjects.RoleAdmin, BranchID: int64p(7)}
	instructor  = &entities.Viewer{UserID: 3, Role: valueobjects.RoleInstructor, BranchID: int64p(7)}
	learner     = &entities.Viewer{UserID: 4, Role: valueobjects.RoleLearner, BranchID: int64p(7)}
	superAdmin  = &entities.Viewer{UserID: 6, Role: valueobjects.RoleSuperAdmin, BusinessIDs: []int64{1}}
)

// newAccessPolicy resolves tenancy over branches 7 and 8 of business 1 and
// branch 9 of business 2. Instructor 3 and instructor 5 sit in branch 7,
// instructor 10 in branch 9.
func newAccessPolicy() *services.AccessPolicy {
	store := memory.NewStore()
	store.AddBranch(entities.Branch{ID: 7, Name: "North", BusinessID: int64p(1)})
	store.AddBranch(entities.Branch{ID: 8, Name: "South", BusinessID: int64p(1)})
	store.AddBranch(entities.Branch{ID: 9, Name: "East", BusinessID: int64p(2)})
	for _, u := range []entities.User{
		{ID: 3, Username: "ivy", Role: valueobjects.RoleInstructor, BranchID: int64p(7), IsActive: true},
		{ID: 5, Username: "ian", Role: valueobjects.RoleInstructor, BranchID: int64p(7), IsActive: true},
		{ID: 10, Username: "eve", Role: valueobjects.RoleInstructor, BranchID: int64p(9), IsActive: true},
	} {
		store.AddUser(u)
	}
	return services.NewAccessPolicy(store, store)
}

// serve routes one request through a chi router so URL params resolve,
// with the viewer already authenticated
func serve(method, pattern, target, body string, v *entities.Viewer, h http.HandlerFunc) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if v != nil {
				req = req.WithContext(auth.WithViewer(req.Context(), v))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Method(method, pattern, h)

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}
