// Package eventbridge publishes dashboard invalidations to an EventBridge bus,
// where the invalidation worker and other subscribers of the shared store consume them
package eventbridge

import (
	"context"
	"encoding/json"
	"fmt"

	"lms-dashboard/application/ports"
	"lms-dashboard/domain/events"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"
)

// SourceDashboard is the EventBridge source of invalidation events
const SourceDashboard = "lms.dashboard"

// Client is the subset of the EventBridge API the broadcaster uses
type Client interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

var _ Client = (*eventbridge.Client)(nil)

// Broadcaster implements ports.InvalidationBroadcaster using AWS EventBridge
type Broadcaster struct {
	client       Client
	eventBusName string
	logger       *zap.Logger
}

// NewBroadcaster creates a new EventBridge broadcaster
func NewBroadcaster(client Client, eventBusName string, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		client:       client,
		eventBusName: eventBusName,
		logger:       logger,
	}
}

// Broadcast implements ports.InvalidationBroadcaster
func (b *Broadcaster) Broadcast(ctx context.Context, event events.InvalidationEvent) error {
	detail, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal invalidation: %w", err)
	}

	result, err := b.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []types.PutEventsRequestEntry{{
			EventBusName: aws.String(b.eventBusName),
			Source:       aws.String(SourceDashboard),
			DetailType:   aws.String(event.GetEventType()),
			Detail:       aws.String(string(detail)),
			Time:         aws.Time(event.GetTimestamp()),
			Resources:    []string{"arn:aws:lms:::" + event.GetAggregateID()},
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to publish invalidation to EventBridge: %w", err)
	}

	if result.FailedEntryCount > 0 {
		for _, entry := range result.Entries {
			if entry.ErrorCode != nil {
				b.logger.Error("EventBridge rejected invalidation",
					zap.String("target", string(event.Target)),
					zap.String("errorCode", *entry.ErrorCode),
					zap.String("errorMessage", aws.ToString(entry.ErrorMessage)),
				)
			}
		}
		return fmt.Errorf("%d invalidation events failed to publish", result.FailedEntryCount)
	}

	b.logger.Debug("Invalidation published to EventBridge",
		zap.String("target", string(event.Target)),
		zap.String("aggregateID", event.AggregateID),
		zap.String("eventBus", b.eventBusName),
	)
	return nil
}

// Decode extracts an invalidation from an EventBridge detail payload
func Decode(detailType string, detail json.RawMessage) (events.InvalidationEvent, error) {
	if detailType != events.EventTypeDashboardInvalidated {
		return events.InvalidationEvent{}, fmt.Errorf("unexpected detail type %q", detailType)
	}
	return events.DecodeInvalidation(detail)
}

var _ ports.InvalidationBroadcaster = (*Broadcaster)(nil)
