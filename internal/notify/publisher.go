// Package notify publishes domain events for downstream consumers
// (reminder senders, analytics).
package notify

import (
	"context"
	"time"
)

// Event types
const (
	AppointmentBooked    = "appointment.booked"
	AppointmentConfirmed = "appointment.confirmed"
	AppointmentCancelled = "appointment.cancelled"
	AppointmentNoShow    = "appointment.no_show"
	AppointmentCompleted = "appointment.completed"
	InvoicePaid          = "invoice.paid"
)

// Event is a domain event.
type Event struct {
	Type       string                 `json:"type"`
	OccurredAt time.Time              `json:"occurredAt"`
	Payload    map[string]interface{} `json:"payload"`
}

// NewEvent stamps an event with the current time.
func NewEvent(eventType string, payload map[string]interface{}) Event {
	return Event{Type: eventType, OccurredAt: time.Now().UTC(), Payload: payload}
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                        { return nil }
