package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lms-dashboard/application/ports"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const (
	leasePrefix  = "LEASE#"
	leaseSortKey = "LEASE"
)

// leaseRecord represents a compute lease in DynamoDB
type leaseRecord struct {
	PK         string `dynamodbav:"PK"`         // LEASE#<cache_key>
	SK         string `dynamodbav:"SK"`         // LEASE
	LeaseID    string `dynamodbav:"LeaseID"`    // Unique per acquisition
	Owner      string `dynamodbav:"Owner"`      // Process identifier
	AcquiredAt string `dynamodbav:"AcquiredAt"` // RFC3339 timestamp
	ExpiresAt  int64  `dynamodbav:"ExpiresAt"`  // Unix millis
	TTL        int64  `dynamodbav:"TTL"`        // Unix timestamp for DynamoDB TTL
}

// ComputeGuard grants one process at a time the right to recompute a cache
// entry, using conditional writes. A lease expires on its own if its holder
// dies before releasing it.
type ComputeGuard struct {
	client    Client
	tableName string
	owner     string
	lease     time.Duration
	clock     clockwork.Clock
	logger    *zap.Logger
}

// NewComputeGuard creates a guard whose leases last lease
func NewComputeGuard(client Client, tableName string, lease time.Duration, clock clockwork.Clock, logger *zap.Logger) *ComputeGuard {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ComputeGuard{
		client:    client,
		tableName: tableName,
		owner:     uuid.NewString(),
		lease:     lease,
		clock:     clock,
		logger:    logger,
	}
}

// Acquire implements ports.ComputeGuard. Losing to a live lease is not an error.
func (g *ComputeGuard) Acquire(ctx context.Context, key string) (func(), bool, error) {
	now := g.clock.Now()
	expiresAt := now.Add(g.lease)
	record := leaseRecord{
		PK:         leasePrefix + key,
		SK:         leaseSortKey,
		LeaseID:    uuid.NewString(),
		Owner:      g.owner,
		AcquiredAt: now.Format(time.RFC3339),
		ExpiresAt:  expiresAt.UnixMilli(),
		TTL:        expiresAt.Unix() + 1,
	}

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal lease: %w", err)
	}

	// Take the lease when nobody holds it or the holder's lease ran out
	cond := expression.AttributeNotExists(expression.Name("PK")).
		Or(expression.Name("ExpiresAt").LessThan(expression.Value(now.UnixMilli())))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return nil, false, fmt.Errorf("failed to build lease condition: %w", err)
	}

	_, err = g.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(g.tableName),
		Item:                      item,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var conditionalCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionalCheckFailed) {
			g.logger.Debug("Compute lease held elsewhere", zap.String("key", key))
			return nil, false, nil
		}
		return nil, false, cacheError("acquire_lease", err)
	}

	g.logger.Debug("Compute lease acquired",
		zap.String("key", key),
		zap.String("leaseID", record.LeaseID),
		zap.Duration("duration", g.lease),
	)

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := g.release(releaseCtx, key, record.LeaseID); err != nil {
			g.logger.Warn("Failed to release compute lease", zap.String("key", key), zap.Error(err))
		}
	}
	return release, true, nil
}

// release deletes the lease if this acquisition still owns it
func (g *ComputeGuard) release(ctx context.Context, key, leaseID string) error {
	cond := expression.Name("LeaseID").Equal(expression.Value(leaseID))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("failed to build release condition: %w", err)
	}

	_, err = g.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(g.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: leasePrefix + key},
			"SK": &types.AttributeValueMemberS{Value: leaseSortKey},
		},
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var conditionalCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionalCheckFailed) {
			// Lease expired and was taken over; nothing of ours to delete
			return nil
		}
		return cacheError("release_lease", err)
	}
	return nil
}

var _ ports.ComputeGuard = (*ComputeGuard)(nil)
