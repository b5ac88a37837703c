// Package workflow implements the patient case workflow session and engine.
package workflow

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of workflow event.
type EventType string

const (
	EventSessionStarted EventType = "SessionStarted"
	EventStepCompleted  EventType = "StepCompleted"
	EventStepRevisited  EventType = "StepRevisited"
	EventItemSelected   EventType = "ItemSelected"
	EventItemRemoved    EventType = "ItemRemoved"
	EventReportSent     EventType = "ReportSent"
)

// Event is one entry of a session's in-memory event log. The log is
// diagnostic: it is exposed over the API for the session's lifetime and
// discarded with the session.
type Event struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	PatientID string          `json:"patient_id"`
	EventType EventType       `json:"event_type"`
	EventData json.RawMessage `json:"event_data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

func newEvent(sessionID, patientID string, eventType EventType, data any) *Event {
	var eventData json.RawMessage
	if data != nil {
		eventData, _ = json.Marshal(data)
	}
	return &Event{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		PatientID: patientID,
		EventType: eventType,
		EventData: eventData,
		Timestamp: time.Now().UTC(),
	}
}

// StepCompletedData records one step boundary.
type StepCompletedData struct {
	CompletedStep int `json:"completed_step"`
	ActiveStep    int `json:"active_step"`
	Watermark     int `json:"watermark"`
}

// ItemSelectedData records one catalog selection.
type ItemSelectedData struct {
	Kind   ItemKind `json:"kind"`
	ItemID int      `json:"item_id"`
	Name   string   `json:"name"`
}

// ItemRemovedData records one catalog removal.
type ItemRemovedData struct {
	Kind    ItemKind `json:"kind"`
	ItemID  int      `json:"item_id"`
	Removed int      `json:"removed"`
}

// ReportSentData records the terminal send.
type ReportSentData struct {
	PatientID string    `json:"patient_id"`
	Doctor    string    `json:"doctor,omitempty"`
	SentAt    time.Time `json:"sent_at"`
}
