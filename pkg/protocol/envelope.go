package protocol

import "time"

// Meta describes one published event.
type Meta struct {
	// Unique event ID
	ID string `json:"id"`
	// Event name and version, e.g. hr.ticket.v1
	Type string `json:"type"`
	// Timestamp when the event was emitted
	Time time.Time `json:"time"`
	// Emitting service
	Producer string `json:"producer,omitempty"`
	// WhatsApp message id that triggered the event
	CorrelationID string `json:"correlation_id,omitempty"`
}

// Envelope wraps every event payload published on the bus.
type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}
