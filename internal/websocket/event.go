package websocket

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents what happened to an entity
type EventType string

const (
	EventTypeCreated   EventType = "created"
	EventTypeUpdated   EventType = "updated"
	EventTypeDeleted   EventType = "deleted"
	EventTypePaid      EventType = "paid"
	EventTypeUnpaid    EventType = "unpaid"
	EventTypeGenerated EventType = "generated"
)

// EntityType represents the type of entity the event is about
type EntityType string

const (
	EntityTypeObligation EntityType = "obligation"
	EntityTypeTemplate   EntityType = "template"
	EntityTypeSettings   EntityType = "settings"
)

// Event represents a change event sent to clients
// Format: { type, entity, payload, timestamp }
type Event struct {
	Type      string     `json:"type"`      // Combined type e.g. "obligation.paid"
	Entity    EntityType `json:"entity"`    // Entity type e.g. "obligation"
	Payload   any        `json:"payload"`   // Full entity data
	Timestamp time.Time  `json:"timestamp"` // Event timestamp
}

// NewEvent creates a new event with the given type, entity, and payload
func NewEvent(eventType EventType, entityType EntityType, payload any) Event {
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

// ObligationCreated creates an obligation.created event
func ObligationCreated(payload any) Event {
	return NewEvent(EventTypeCreated, EntityTypeObligation, payload)
}

// ObligationUpdated creates an obligation.updated event
func ObligationUpdated(payload any) Event {
	return NewEvent(EventTypeUpdated, EntityTypeObligation, payload)
}

// ObligationDeleted creates an obligation.deleted event
func ObligationDeleted(payload any) Event {
	return NewEvent(EventTypeDeleted, EntityTypeObligation, payload)
}

// ObligationPaid creates an obligation.paid event
func ObligationPaid(payload any) Event {
	return NewEvent(EventTypePaid, EntityTypeObligation, payload)
}

// ObligationUnpaid creates an obligation.unpaid event
func ObligationUnpaid(payload any) Event {
	return NewEvent(EventTypeUnpaid, EntityTypeObligation, payload)
}

// ObligationsGenerated creates an obligation.generated event for a generation batch
func ObligationsGenerated(payload any) Event {
	return NewEvent(EventTypeGenerated, EntityTypeObligation, payload)
}

// TemplateCreated creates a template.created event
func TemplateCreated(payload any) Event {
	return NewEvent(EventTypeCreated, EntityTypeTemplate, payload)
}

// TemplateDeleted creates a template.deleted event
func TemplateDeleted(payload any) Event {
	return NewEvent(EventTypeDeleted, EntityTypeTemplate, payload)
}

// SettingsUpdated creates a settings.updated event
func SettingsUpdated(payload any) Event {
	return NewEvent(EventTypeUpdated, EntityTypeSettings, payload)
}
