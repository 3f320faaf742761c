package dynamodb

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
	"go.uber.org/zap"
)

func TestComputeGuard_Acquire(t *testing.T) {
	tests := []struct {
		name         string
		putErr       error
		wantAcquired bool
		wantErr      bool
	}{
		{name: "free lease", wantAcquired: true},
		{name: "held elsewhere", putErr: &types.ConditionalCheckFailedException{}},
		{name: "store failure", putErr: errors.New("network down"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			client := new(mockClient)
			guard := NewComputeGuard(client, "cache", 10*time.Second, clockwork.NewFakeClockAt(testNow), zap.NewNop())
			client.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
				pk := in.Item["PK"].(*types.AttributeValueMemberS).Value
				return pk == "LEASE#dashboard_global_stats" && in.ConditionExpression != nil
			})).Return(&dynamodb.PutItemOutput{}, tt.putErr)

			// Act
			release, acquired, err := guard.Acquire(context.Background(), "dashboard_global_stats")

			// Assert
			assert.Equal(t, tt.wantAcquired, acquired)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			if tt.wantAcquired {
				assert.NotNil(t, release)
			} else {
				assert.Nil(t, release)
			}
		})
	}
}

func TestComputeGuard_ReleaseDeletesOwnLease(t *testing.T) {
	client := new(mockClient)
	guard := NewComputeGuard(client, "cache", 10*time.Second, clockwork.NewFakeClockAt(testNow), zap.NewNop())
	client.On("PutItem", mock.Anything, mock.Anything).Return(&dynamodb.PutItemOutput{}, nil)
	client.On("DeleteItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.DeleteItemInput) bool {
		return in.Key["PK"].(*types.AttributeValueMemberS).Value == "LEASE#k" && in.ConditionExpression != nil
	})).Return(nil, &types.ConditionalCheckFailedException{})

	release, acquired, err := guard.Acquire(context.Background(), "k")
	require.NoError(t, err)
	require.True(t, acquired)

	release()

	client.AssertCalled(t, "DeleteItem", mock.Anything, mock.Anything)
}
