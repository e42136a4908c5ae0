package types

import "time"

// EventType identifies the kind of domain event carried by an envelope
type EventType string

const (
	EventPatientCreated   EventType = "patient.created"
	EventPatientUpdated   EventType = "patient.updated"
	EventPatientDeleted   EventType = "patient.deleted"
	EventPatientValidated EventType = "patient.validated"
)

// FieldChange records a single field-level difference in an update event
type FieldChange struct {
	Field    string      `json:"field"`
	OldValue interface{} `json:"old_value"`
	NewValue interface{} `json:"new_value"`
}

// EventEnvelope is the message payload published for external consumers.
// PatientID is the correlation key: a transport that preserves per-key
// ordering lets consumers order events for a given patient. No ordering
// guarantee exists across patients.
type EventEnvelope struct {
	MessageID string        `json:"message_id"`
	EventType EventType     `json:"event_type"`
	PatientID string        `json:"patient_id"`
	Data      *Patient      `json:"data,omitempty"`
	OldData   *Patient      `json:"old_data,omitempty"`
	NewData   *Patient      `json:"new_data,omitempty"`
	Changes   []FieldChange `json:"changes,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Service   string        `json:"service"`
}
