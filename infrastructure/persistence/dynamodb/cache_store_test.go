package dynamodb

import (
	"context"
	"fmt"
	"testing"
	"time"

	pkgerrors "lms-dashboard/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2024, 3, 14, 15, 27, 0, 0, time.UTC)

func storedItem(t *testing.T, key string, value []byte, expiresAt time.Time) map[string]types.AttributeValue {
	t.Helper()
	item, err := attributevalue.MarshalMap(cacheItem{
		PK:        cachePrefix + key,
		SK:        cacheSortKey,
		Key:       key,
		Value:     value,
		ExpiresAt: expiresAt.UnixMilli(),
		TTL:       expiresAt.Unix(),
	})
	require.NoError(t, err)
	return item
}

func keyItems(keys ...string) []map[string]types.AttributeValue {
	items := make([]map[string]types.AttributeValue, 0, len(keys))
	for _, k := range keys {
		items = append(items, map[string]types.AttributeValue{"Key": &types.AttributeValueMemberS{Value: k}})
	}
	return items
}

func TestCacheStore_Get(t *testing.T) {
	tests := []struct {
		name      string
		item      func(t *testing.T) map[string]types.AttributeValue
		wantFound bool
	}{
		{
			name:      "missing item",
			item:      func(t *testing.T) map[string]types.AttributeValue { return nil },
			wantFound: false,
		},
		{
			name: "live item",
			item: func(t *testing.T) map[string]types.AttributeValue {
				return storedItem(t, "dashboard_global_stats", []byte(`{"total_users":3}`), testNow.Add(time.Minute))
			},
			wantFound: true,
		},
		{
			name: "expired item not yet swept",
			item: func(t *testing.T) map[string]types.AttributeValue {
				return storedItem(t, "dashboard_global_stats", []byte(`{}`), testNow)
			},
			wantFound: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			client := new(mockClient)
			store := NewCacheStore(client, "cache", clockwork.NewFakeClockAt(testNow), zap.NewNop())
			client.On("GetItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
				pk := in.Key["PK"].(*types.AttributeValueMemberS).Value
				return *in.TableName == "cache" && pk == "CACHE#dashboard_global_stats"
			})).Return(&dynamodb.GetItemOutput{Item: tt.item(t)}, nil)

			// Act
			value, found, err := store.Get(context.Background(), "dashboard_global_stats")

			// Assert
			require.NoError(t, err)
			assert.Equal(t, tt.wantFound, found)
			if tt.wantFound {
				assert.JSONEq(t, `{"total_users":3}`, string(value))
			}
			client.AssertExpectations(t)
		})
	}
}

func TestCacheStore_SetWritesExpiry(t *testing.T) {
	client := new(mockClient)
	store := NewCacheStore(client, "cache", clockwork.NewFakeClockAt(testNow), zap.NewNop())

	var written cacheItem
	client.On("PutItem", mock.Anything, mock.AnythingOfType("*dynamodb.PutItemInput")).
		Run(func(args mock.Arguments) {
			in := args.Get(1).(*dynamodb.PutItemInput)
			require.NoError(t, attributevalue.UnmarshalMap(in.Item, &written))
		}).
		Return(&dynamodb.PutItemOutput{}, nil)

	err := store.Set(context.Background(), "k", []byte("v"), 10*time.Minute)

	require.NoError(t, err)
	assert.Equal(t, "CACHE#k", written.PK)
	assert.Equal(t, []byte("v"), written.Value)
	assert.Equal(t, testNow.Add(10*time.Minute).UnixMilli(), written.ExpiresAt)
	assert.Greater(t, written.TTL, testNow.Unix())
}

func TestCacheStore_ErrorsKeepAWSCode(t *testing.T) {
	client := new(mockClient)
	store := NewCacheStore(client, "cache", clockwork.NewFakeClockAt(testNow), zap.NewNop())
	client.On("GetItem", mock.Anything, mock.Anything).Return(nil, &smithy.GenericAPIError{
		Code:    "ProvisionedThroughputExceededException",
		Message: "slow down",
	})

	_, _, err := store.Get(context.Background(), "k")

	appErr := pkgerrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.ErrorTypeCache, appErr.Type)
	assert.Equal(t, "ProvisionedThroughputExceededException", appErr.Code)
	assert.Equal(t, true, appErr.Details["throttled"])
}

func TestLiteralPrefix(t *testing.T) {
	tests := []struct {
		pattern  string
		expected string
	}{
		{"dashboard_progress_*_b7_*", "dashboard_progress_"},
		{"instructor_stats_?", "instructor_stats_"},
		{"dashboard_global_stats", "dashboard_global_stats"},
		{"*", ""},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			assert.Equal(t, tt.expected, literalPrefix(tt.pattern))
		})
	}
}

func TestCacheStore_DeletePattern(t *testing.T) {
	// Arrange
	client := new(mockClient)
	store := NewCacheStore(client, "cache", clockwork.NewFakeClockAt(testNow), zap.NewNop())

	client.On("Scan", mock.Anything, mock.AnythingOfType("*dynamodb.ScanInput")).
		Return(&dynamodb.ScanOutput{Items: keyItems(
			"dashboard_progress_b7_f1",
			"dashboard_progress_b8_f1",
			"dashboard_progress_b7_f0",
		)}, nil).Once()

	var deleted []string
	client.On("BatchWriteItem", mock.Anything, mock.AnythingOfType("*dynamodb.BatchWriteItemInput")).
		Run(func(args mock.Arguments) {
			in := args.Get(1).(*dynamodb.BatchWriteItemInput)
			for _, req := range in.RequestItems["cache"] {
				deleted = append(deleted, req.DeleteRequest.Key["PK"].(*types.AttributeValueMemberS).Value)
			}
		}).
		Return(&dynamodb.BatchWriteItemOutput{}, nil).Once()

	// Act
	n, err := store.DeletePattern(context.Background(), "dashboard_progress_b7_*")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, []string{"CACHE#dashboard_progress_b7_f1", "CACHE#dashboard_progress_b7_f0"}, deleted)
	client.AssertExpectations(t)
}

func TestCacheStore_DeletePatternBatchesAndRetries(t *testing.T) {
	// Arrange
	client := new(mockClient)
	clock := clockwork.NewFakeClockAt(testNow)
	store := NewCacheStore(client, "cache", clock, zap.NewNop())

	keys := make([]string, 30)
	for i := range keys {
		keys[i] = fmt.Sprintf("dashboard_activity_week_b%d", i)
	}
	client.On("Scan", mock.Anything, mock.Anything).
		Return(&dynamodb.ScanOutput{Items: keyItems(keys...)}, nil).Once()

	batchSizes := []int{}
	unprocessed := map[string][]types.WriteRequest{
		"cache": {{DeleteRequest: &types.DeleteRequest{Key: cacheKey(keys[0])}}},
	}
	client.On("BatchWriteItem", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			batchSizes = append(batchSizes, len(args.Get(1).(*dynamodb.BatchWriteItemInput).RequestItems["cache"]))
		}).
		Return(&dynamodb.BatchWriteItemOutput{UnprocessedItems: unprocessed}, nil).Once()
	client.On("BatchWriteItem", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			batchSizes = append(batchSizes, len(args.Get(1).(*dynamodb.BatchWriteItemInput).RequestItems["cache"]))
		}).
		Return(&dynamodb.BatchWriteItemOutput{}, nil)

	// Act
	done := make(chan error, 1)
	go func() {
		_, err := store.DeletePattern(context.Background(), "dashboard_activity_*")
		done <- err
	}()
	clock.BlockUntil(1)
	clock.Advance(batchRetryInterval)

	// Assert
	require.NoError(t, <-done)
	assert.Equal(t, []int{25, 1, 5}, batchSizes)
}

func TestCacheStore_DeletePatternRejectsMalformedPattern(t *testing.T) {
	client := new(mockClient)
	store := NewCacheStore(client, "cache", clockwork.NewFakeClockAt(testNow), zap.NewNop())

	_, err := store.DeletePattern(context.Background(), "dashboard_[")

	assert.Error(t, err)
	client.AssertNotCalled(t, "Scan", mock.Anything, mock.Anything)
}

func TestCacheStore_FlushScansOnlyCacheEntries(t *testing.T) {
	client := new(mockClient)
	store := NewCacheStore(client, "cache", clockwork.NewFakeClockAt(testNow), zap.NewNop())

	client.On("Scan", mock.Anything, mock.MatchedBy(func(in *dynamodb.ScanInput) bool {
		for _, v := range in.ExpressionAttributeValues {
			if s, ok := v.(*types.AttributeValueMemberS); ok && s.Value == cachePrefix {
				return true
			}
		}
		return false
	})).Return(&dynamodb.ScanOutput{Items: keyItems("a", "b")}, nil).Once()
	client.On("BatchWriteItem", mock.Anything, mock.Anything).Return(&dynamodb.BatchWriteItemOutput{}, nil).Once()

	require.NoError(t, store.Flush(context.Background()))
	client.AssertExpectations(t)
}
