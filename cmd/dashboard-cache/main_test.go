package main

import (
	"bytes"
	"context"
	"flag"
	"io"
	"testing"

	"lms-dashboard/application/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockClearer struct {
	mock.Mock
}

func (m *mockClearer) ExecuteClear(ctx context.Context, req services.ClearRequest) (services.ClearResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(services.ClearResult), args.Error(1)
}

func int64Ptr(v int64) *int64 { return &v }

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    services.ClearRequest
		wantErr bool
	}{
		{
			name: "all",
			args: []string{"--all"},
			want: services.ClearRequest{All: true},
		},
		{
			name: "branch",
			args: []string{"--branch", "7"},
			want: services.ClearRequest{BranchID: int64Ptr(7)},
		},
		{
			name: "business progress only dry run",
			args: []string{"--business=3", "--progress-only", "--dry-run"},
			want: services.ClearRequest{BusinessID: int64Ptr(3), ProgressOnly: true, DryRun: true},
		},
		{
			name: "branch activity only",
			args: []string{"--branch", "7", "--activity-only"},
			want: services.ClearRequest{BranchID: int64Ptr(7), ActivityOnly: true},
		},
		{
			name:    "zero branch is rejected",
			args:    []string{"--branch", "0"},
			wantErr: true,
		},
		{
			name:    "positional arguments are rejected",
			args:    []string{"--all", "now"},
			wantErr: true,
		},
		{
			name:    "unknown flag",
			args:    []string{"--everything"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _, err := parseFlags(tt.args, io.Discard)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, req)
		})
	}
}

func TestRun_PrintsActions(t *testing.T) {
	// Arrange
	clearer := new(mockClearer)
	clearer.On("ExecuteClear", mock.Anything, services.ClearRequest{BranchID: int64Ptr(7), DryRun: true}).
		Return(services.ClearResult{Actions: []string{"invalidate dashboard data for branch 7"}, DryRun: true}, nil)
	var stdout bytes.Buffer

	// Act
	err := run(context.Background(), []string{"--branch", "7", "--dry-run"}, clearer, &stdout, io.Discard)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "Would clear: invalidate dashboard data for branch 7\n", stdout.String())
	clearer.AssertExpectations(t)
}

func TestRun_JSONOutput(t *testing.T) {
	clearer := new(mockClearer)
	clearer.On("ExecuteClear", mock.Anything, services.ClearRequest{All: true}).
		Return(services.ClearResult{Actions: []string{"clear all dashboard cache entries"}}, nil)
	var stdout bytes.Buffer

	err := run(context.Background(), []string{"--all", "--json"}, clearer, &stdout, io.Discard)

	require.NoError(t, err)
	assert.JSONEq(t, `{"actions":["clear all dashboard cache entries"],"dry_run":false}`, stdout.String())
}

func TestRun_Help(t *testing.T) {
	clearer := new(mockClearer)

	err := run(context.Background(), []string{"-h"}, clearer, io.Discard, io.Discard)

	assert.ErrorIs(t, err, flag.ErrHelp)
	clearer.AssertNotCalled(t, "ExecuteClear", mock.Anything, mock.Anything)
}
