package events

import "time"

// CurrentVersion is the detail schema version written by this service.
// Receivers ignore fields they do not know, so additive changes keep it.
const CurrentVersion = 1

// DomainEvent is what a transport needs to route an event without decoding it
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent carries the routing header shared by every event
type BaseEvent struct {
	// AggregateID is "<entity type>#<entity id>"
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

var _ DomainEvent = InvalidationEvent{}
