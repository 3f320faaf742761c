// Package dynamodb stores dashboard cache entries and compute leases in a
// DynamoDB table keyed by PK/SK, with expiry on the TTL attribute.
package dynamodb

import (
	"context"
	"errors"

	pkgerrors "lms-dashboard/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/smithy-go"
)

// Client is the subset of the DynamoDB API the cache uses
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

var _ Client = (*dynamodb.Client)(nil)

var throttlingCodes = map[string]bool{
	"ProvisionedThroughputExceededException": true,
	"ThrottlingException":                    true,
	"RequestLimitExceeded":                   true,
}

// cacheError wraps an SDK error, keeping the service error code when present
func cacheError(op string, err error) error {
	appErr := pkgerrors.NewCacheError(op, err)
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		appErr = appErr.WithCode(apiErr.ErrorCode()).WithDetails(map[string]interface{}{
			"aws_code":  apiErr.ErrorCode(),
			"throttled": throttlingCodes[apiErr.ErrorCode()],
			"fault":     apiErr.ErrorFault().String(),
		})
	}
	return appErr
}
