package events

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// EntityType names the kind of record whose change triggers an invalidation
type EntityType string

const (
	EntityEnrollment EntityType = "enrollment"
	EntityUser       EntityType = "user"
	EntityBranch     EntityType = "branch"
	EntityOperator   EntityType = "operator"
)

// Operation is the write that happened to the entity
type Operation string

const (
	OperationCreated Operation = "created"
	OperationUpdated Operation = "updated"
	OperationDeleted Operation = "deleted"
)

// Target names the eviction a receiver must replay
type Target string

const (
	// TargetDashboard replays the composite invalidation for the derived scope
	TargetDashboard Target = "dashboard"
	TargetBranch    Target = "branch"
	TargetUser      Target = "user"
	TargetProgress  Target = "progress"
	TargetActivity  Target = "activity"
	TargetAll       Target = "all"
)

// EventTypeDashboardInvalidated is the detail type used when the event leaves the process
const EventTypeDashboardInvalidated = "dashboard.invalidated"

// InvalidationEvent is the transient signal that dashboard entries derived
// from an entity are stale. It is never persisted.
type InvalidationEvent struct {
	BaseEvent
	EntityType EntityType `json:"entity_type"`
	EntityID   int64      `json:"entity_id"`
	Operation  Operation  `json:"operation"`
	Target     Target     `json:"target"`
	BranchID   *int64     `json:"branch_id,omitempty"`
	BusinessID *int64     `json:"business_id,omitempty"`
	UserID     *int64     `json:"user_id,omitempty"`
	// Origin identifies the process that evicted locally, so receivers can skip their own events
	Origin string `json:"origin,omitempty"`
}

// NewInvalidationEvent creates an InvalidationEvent
func NewInvalidationEvent(target Target, entity EntityType, entityID int64, op Operation, branchID, businessID, userID *int64, timestamp time.Time) InvalidationEvent {
	return InvalidationEvent{
		BaseEvent: BaseEvent{
			AggregateID: string(entity) + "#" + strconv.FormatInt(entityID, 10),
			EventType:   EventTypeDashboardInvalidated,
			Timestamp:   timestamp,
			Version:     CurrentVersion,
		},
		EntityType: entity,
		EntityID:   entityID,
		Operation:  op,
		Target:     target,
		BranchID:   branchID,
		BusinessID: businessID,
		UserID:     userID,
	}
}

// DecodeInvalidation parses an invalidation received from another process
func DecodeInvalidation(data []byte) (InvalidationEvent, error) {
	var event InvalidationEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return event, fmt.Errorf("failed to unmarshal invalidation: %w", err)
	}
	if event.Target == "" {
		return event, fmt.Errorf("invalidation %s has no target", event.AggregateID)
	}
	return event, nil
}
