package observability

import (
	"context"
	"sync"
	"time"

	"lms-dashboard/application/ports"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// PutMetricData accepts at most 1000 datums per call
const maxMetricDatums = 1000

// CloudWatchClient is the subset of the CloudWatch API the recorder uses
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchRecorder buffers cache measurements and ships them on Flush.
// Lambdas flush once at the end of each invocation.
type CloudWatchRecorder struct {
	namespace string
	client    CloudWatchClient
	clock     clockwork.Clock
	logger    *zap.Logger

	mu      sync.Mutex
	pending []types.MetricDatum
}

// NewCloudWatchRecorder creates a recorder publishing under namespace
func NewCloudWatchRecorder(namespace string, client CloudWatchClient, clock clockwork.Clock, logger *zap.Logger) *CloudWatchRecorder {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &CloudWatchRecorder{
		namespace: namespace,
		client:    client,
		clock:     clock,
		logger:    logger,
	}
}

func (r *CloudWatchRecorder) add(name string, value float64, unit types.StandardUnit, dims map[string]string) {
	dimensions := make([]types.Dimension, 0, len(dims))
	for k, v := range dims {
		dimensions = append(dimensions, types.Dimension{Name: aws.String(k), Value: aws.String(v)})
	}

	r.mu.Lock()
	r.pending = append(r.pending, types.MetricDatum{
		MetricName: aws.String(name),
		Dimensions: dimensions,
		Value:      aws.Float64(value),
		Unit:       unit,
		Timestamp:  aws.Time(r.clock.Now()),
	})
	r.mu.Unlock()
}

// CacheHit implements ports.MetricsRecorder
func (r *CloudWatchRecorder) CacheHit(family string) {
	r.add("CacheHit", 1, types.StandardUnitCount, map[string]string{"Family": family})
}

// CacheMiss implements ports.MetricsRecorder
func (r *CloudWatchRecorder) CacheMiss(family string) {
	r.add("CacheMiss", 1, types.StandardUnitCount, map[string]string{"Family": family})
}

// CacheError implements ports.MetricsRecorder
func (r *CloudWatchRecorder) CacheError(operation string) {
	r.add("CacheError", 1, types.StandardUnitCount, map[string]string{"Operation": operation})
}

// ComputeDuration implements ports.MetricsRecorder
func (r *CloudWatchRecorder) ComputeDuration(family string, d time.Duration, err error) {
	r.add("ComputeLatency", float64(d.Milliseconds()), types.StandardUnitMilliseconds,
		map[string]string{"Family": family, "Status": status(err)})
}

// KeysInvalidated implements ports.MetricsRecorder
func (r *CloudWatchRecorder) KeysInvalidated(reason string, count int) {
	r.add("KeysInvalidated", float64(count), types.StandardUnitCount, map[string]string{"Reason": reason})
}

// Flush sends everything buffered so far. Failures are logged and the
// batch is dropped; metrics never fail the caller.
func (r *CloudWatchRecorder) Flush(ctx context.Context) {
	r.mu.Lock()
	data := r.pending
	r.pending = nil
	r.mu.Unlock()

	for start := 0; start < len(data); start += maxMetricDatums {
		end := start + maxMetricDatums
		if end > len(data) {
			end = len(data)
		}
		if _, err := r.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(r.namespace),
			MetricData: data[start:end],
		}); err != nil {
			r.logger.Warn("Failed to send metrics", zap.Int("datums", end-start), zap.Error(err))
		}
	}
}

var _ ports.MetricsRecorder = (*CloudWatchRecorder)(nil)
