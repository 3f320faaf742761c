package dynamodb

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"lms-dashboard/application/ports"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const (
	cachePrefix  = "CACHE#"
	cacheSortKey = "ENTRY"

	// BatchWriteItem accepts at most 25 requests
	maxBatchWrite      = 25
	maxBatchAttempts   = 3
	batchRetryInterval = 50 * time.Millisecond
)

// cacheItem represents the DynamoDB item structure for a cache entry
type cacheItem struct {
	PK        string `dynamodbav:"PK"`        // CACHE#<key>
	SK        string `dynamodbav:"SK"`        // ENTRY
	Key       string `dynamodbav:"Key"`
	Value     []byte `dynamodbav:"Value"`
	ExpiresAt int64  `dynamodbav:"ExpiresAt"` // Unix millis, checked on read
	TTL       int64  `dynamodbav:"TTL"`       // Unix seconds for DynamoDB TTL
}

// CacheStore is a shared cache over a DynamoDB table. DynamoDB's TTL sweep is
// lazy, so reads compare ExpiresAt against the clock themselves.
type CacheStore struct {
	client    Client
	tableName string
	clock     clockwork.Clock
	logger    *zap.Logger
}

// NewCacheStore creates a new DynamoDB-backed cache store
func NewCacheStore(client Client, tableName string, clock clockwork.Clock, logger *zap.Logger) *CacheStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &CacheStore{
		client:    client,
		tableName: tableName,
		clock:     clock,
		logger:    logger,
	}
}

func cacheKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: cachePrefix + key},
		"SK": &types.AttributeValueMemberS{Value: cacheSortKey},
	}
}

// Get implements ports.Cache
func (s *CacheStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            cacheKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, false, cacheError("get", err)
	}
	if len(out.Item) == 0 {
		return nil, false, nil
	}

	var item cacheItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, false, cacheError("get", fmt.Errorf("failed to unmarshal cache item: %w", err))
	}
	if s.clock.Now().UnixMilli() >= item.ExpiresAt {
		return nil, false, nil
	}
	return item.Value, true, nil
}

// Set implements ports.Cache
func (s *CacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	expiresAt := s.clock.Now().Add(ttl)
	item, err := attributevalue.MarshalMap(cacheItem{
		PK:        cachePrefix + key,
		SK:        cacheSortKey,
		Key:       key,
		Value:     value,
		ExpiresAt: expiresAt.UnixMilli(),
		TTL:       expiresAt.Unix() + 1,
	})
	if err != nil {
		return cacheError("set", fmt.Errorf("failed to marshal cache item: %w", err))
	}

	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	}); err != nil {
		return cacheError("set", err)
	}
	return nil
}

// Delete implements ports.Cache
func (s *CacheStore) Delete(ctx context.Context, key string) error {
	if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       cacheKey(key),
	}); err != nil {
		return cacheError("delete", err)
	}
	return nil
}

// DeletePattern implements ports.PatternDeleter. The scan is narrowed to the
// pattern's literal prefix and matches are confirmed with path.Match.
func (s *CacheStore) DeletePattern(ctx context.Context, pattern string) (int, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return 0, cacheError("delete_pattern", fmt.Errorf("invalid pattern %q: %w", pattern, err))
	}

	keys, err := s.scanKeys(ctx, cachePrefix+literalPrefix(pattern), func(key string) bool {
		ok, _ := path.Match(pattern, key)
		return ok
	})
	if err != nil {
		return 0, err
	}
	if err := s.batchDelete(ctx, keys); err != nil {
		return 0, err
	}

	s.logger.Debug("Deleted cache entries by pattern",
		zap.String("pattern", pattern),
		zap.Int("deleted", len(keys)),
	)
	return len(keys), nil
}

// Flush implements ports.Cache. Only cache entries are removed; leases in the
// same table are left alone.
func (s *CacheStore) Flush(ctx context.Context) error {
	keys, err := s.scanKeys(ctx, cachePrefix, func(string) bool { return true })
	if err != nil {
		return err
	}
	if err := s.batchDelete(ctx, keys); err != nil {
		return err
	}
	s.logger.Info("Flushed DynamoDB cache entries", zap.Int("deleted", len(keys)))
	return nil
}

// literalPrefix returns the part of a glob before its first metacharacter
func literalPrefix(pattern string) string {
	if i := strings.IndexAny(pattern, `*?[\`); i >= 0 {
		return pattern[:i]
	}
	return pattern
}

// scanKeys returns the cache keys under pkPrefix accepted by match
func (s *CacheStore) scanKeys(ctx context.Context, pkPrefix string, match func(string) bool) ([]string, error) {
	filter := expression.Name("PK").BeginsWith(pkPrefix).
		And(expression.Name("SK").Equal(expression.Value(cacheSortKey)))
	expr, err := expression.NewBuilder().
		WithFilter(filter).
		WithProjection(expression.NamesList(expression.Name("Key"))).
		Build()
	if err != nil {
		return nil, cacheError("scan", fmt.Errorf("failed to build expression: %w", err))
	}

	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:                 aws.String(s.tableName),
		FilterExpression:          expr.Filter(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})

	var keys []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, cacheError("scan", err)
		}
		for _, raw := range page.Items {
			var item struct {
				Key string `dynamodbav:"Key"`
			}
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, cacheError("scan", err)
			}
			if match(item.Key) {
				keys = append(keys, item.Key)
			}
		}
	}
	return keys, nil
}

// batchDelete removes keys 25 at a time, retrying unprocessed requests
func (s *CacheStore) batchDelete(ctx context.Context, keys []string) error {
	for start := 0; start < len(keys); start += maxBatchWrite {
		end := start + maxBatchWrite
		if end > len(keys) {
			end = len(keys)
		}

		requests := make([]types.WriteRequest, 0, end-start)
		for _, key := range keys[start:end] {
			requests = append(requests, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: cacheKey(key)},
			})
		}

		pending := map[string][]types.WriteRequest{s.tableName: requests}
		for attempt := 1; len(pending[s.tableName]) > 0; attempt++ {
			if attempt > maxBatchAttempts {
				return cacheError("batch_delete",
					fmt.Errorf("%d deletes unprocessed after %d attempts", len(pending[s.tableName]), maxBatchAttempts))
			}
			if attempt > 1 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-s.clock.After(batchRetryInterval * time.Duration(attempt-1)):
				}
			}

			out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
			if err != nil {
				return cacheError("batch_delete", err)
			}
			pending = out.UnprocessedItems
		}
	}
	return nil
}

var (
	_ ports.Cache          = (*CacheStore)(nil)
	_ ports.PatternDeleter = (*CacheStore)(nil)
)
