package websocket

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents the type of event (created, updated, paid, ...)
type EventType string

const (
	EventTypeCreated  EventType = "created"
	EventTypeUpdated  EventType = "updated"
	EventTypePaid     EventType = "paid"
	EventTypeReplaced EventType = "replaced"
)

// EntityType represents the type of entity the event is about
type EntityType string

const (
	EntityTypeApplication EntityType = "application"
	EntityTypeInstallment EntityType = "installment"
	EntityTypeSchedule    EntityType = "schedule"
	EntityTypeSettlement  EntityType = "settlement"
)

// Event represents a WebSocket event message sent to clients
// Format: { type, entity, payload, timestamp }
type Event struct {
	Type      string      `json:"type"`      // Combined type e.g. "installment.paid"
	Entity    EntityType  `json:"entity"`    // Entity type e.g. "installment"
	Payload   interface{} `json:"payload"`   // Full entity data
	Timestamp time.Time   `json:"timestamp"` // Event timestamp
}

// NewEvent creates a new event with the given type, entity, and payload
func NewEvent(eventType EventType, entityType EntityType, payload interface{}) Event {
	return Event{
		Type:      fmt.Sprintf("%s.%s", entityType, eventType),
		Entity:    entityType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON serializes the event to JSON bytes
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// ApplicationUpdated creates an application.updated event
func ApplicationUpdated(payload interface{}) Event {
	return NewEvent(EventTypeUpdated, EntityTypeApplication, payload)
}

// InstallmentPaid creates an installment.paid event
func InstallmentPaid(payload interface{}) Event {
	return NewEvent(EventTypePaid, EntityTypeInstallment, payload)
}

// ScheduleReplaced creates a schedule.replaced event
func ScheduleReplaced(payload interface{}) Event {
	return NewEvent(EventTypeReplaced, EntityTypeSchedule, payload)
}

// SettlementCreated creates a settlement.created event
func SettlementCreated(payload interface{}) Event {
	return NewEvent(EventTypeCreated, EntityTypeSettlement, payload)
}
