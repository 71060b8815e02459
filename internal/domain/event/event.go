package event

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Event represents one observable fact about a requisition's lifecycle.
// Events are fan-out payloads for notification channels, so they carry
// the human-facing requisition number alongside the internal ID.
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	RequisitionID int64                  `json:"requisition_id"`
	RequisitionNo string                 `json:"requisition_no"`
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
}

// New creates a new domain event with auto-generated ID and timestamp
func New(eventType Type, requisitionID int64, requisitionNo string, payload map[string]interface{}) *Event {
	return &Event{
		ID:            generateID(),
		Type:          eventType,
		RequisitionID: requisitionID,
		RequisitionNo: requisitionNo,
		Payload:       payload,
		Timestamp:     time.Now(),
	}
}

// WithPayload returns a copy of the event with one added payload entry.
// The original event is left untouched.
func (e *Event) WithPayload(key string, value interface{}) *Event {
	newPayload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		newPayload[k] = v
	}
	newPayload[key] = value

	return &Event{
		ID:            e.ID,
		Type:          e.Type,
		RequisitionID: e.RequisitionID,
		RequisitionNo: e.RequisitionNo,
		Payload:       newPayload,
		Timestamp:     e.Timestamp,
	}
}

// generateID creates a unique ID using timestamp and random bytes
func generateID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return fmt.Sprintf("%d-%s", time.Now().UnixNano(), hex.EncodeToString(b))
}
