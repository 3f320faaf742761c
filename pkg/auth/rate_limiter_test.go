package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSlidingWindowLimiter(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	limiter := NewSlidingWindowLimiter(2, time.Minute, clock)

	allowed, _ := limiter.Allow(ctx, "user:1")
	assert.True(t, allowed)
	clock.Advance(10 * time.Second)
	allowed, _ = limiter.Allow(ctx, "user:1")
	assert.True(t, allowed)

	allowed, _ = limiter.Allow(ctx, "user:1")
	assert.False(t, allowed, "third request inside the window")

	allowed, _ = limiter.Allow(ctx, "user:2")
	assert.True(t, allowed, "keys are independent")

	clock.Advance(51 * time.Second)
	allowed, _ = limiter.Allow(ctx, "user:1")
	assert.True(t, allowed, "first request slid out of the window")

	require.NoError(t, limiter.Reset(ctx, "user:1"))
	allowed, _ = limiter.Allow(ctx, "user:1")
	assert.True(t, allowed)
}

func TestSlidingWindowLimiter_SweepsIdleKeys(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	limiter := NewSlidingWindowLimiter(5, time.Minute, clock)

	_, _ = limiter.Allow(ctx, "a")
	clock.Advance(2 * time.Minute)
	_, _ = limiter.Allow(ctx, "b")

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.NotContains(t, limiter.windows, "a")
	assert.Contains(t, limiter.windows, "b")
}

type mockCounterClient struct {
	mock.Mock
}

func (m *mockCounterClient) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*dynamodb.UpdateItemOutput)
	return out, args.Error(1)
}

func (m *mockCounterClient) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*dynamodb.DeleteItemOutput)
	return out, args.Error(1)
}

func TestDistributedRateLimiter_Allow(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 30, 0, time.UTC)

	tests := []struct {
		name      string
		out       *dynamodb.UpdateItemOutput
		err       error
		wantAllow bool
		wantErr   bool
	}{
		{
			name: "under limit",
			out: &dynamodb.UpdateItemOutput{Attributes: map[string]types.AttributeValue{
				"Count": &types.AttributeValueMemberN{Value: "2"},
			}},
			wantAllow: true,
		},
		{
			name:      "condition failed means limited",
			err:       &types.ConditionalCheckFailedException{},
			wantAllow: false,
		},
		{
			name:      "store error fails open",
			err:       errors.New("throttled"),
			wantAllow: true,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			client := new(mockCounterClient)
			client.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
				pk := in.Key["PK"].(*types.AttributeValueMemberS).Value
				return *in.TableName == "cache" && pk == "RATELIMIT#ADMIN#7#1709294400"
			})).Return(tt.out, tt.err)
			limiter := NewDistributedRateLimiter(client, "cache", 3, time.Minute, "ADMIN", clockwork.NewFakeClockAt(start))

			// Act
			allowed, err := limiter.Allow(context.Background(), "7")

			// Assert
			assert.Equal(t, tt.wantAllow, allowed)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			client.AssertExpectations(t)
		})
	}
}

func TestDistributedRateLimiter_Reset(t *testing.T) {
	client := new(mockCounterClient)
	client.On("DeleteItem", mock.Anything, mock.Anything).Return(&dynamodb.DeleteItemOutput{}, nil)
	limiter := NewDistributedRateLimiter(client, "cache", 3, time.Minute, "ADMIN", clockwork.NewFakeClock())

	require.NoError(t, limiter.Reset(context.Background(), "7"))
	client.AssertExpectations(t)
}
