package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusProcessed OutboxStatus = "processed"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// Outbox event types
const (
	EventAlertCreated   = "ALERT_CREATED"
	EventAlertEscalated = "ALERT_ESCALATED"
)

type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
}

// AlertEventPayload is the body of ALERT_CREATED and ALERT_ESCALATED events
type AlertEventPayload struct {
	AlertID   uuid.UUID   `json:"alert_id"`
	PatientID uuid.UUID   `json:"patient_id"`
	ReadingID *uuid.UUID  `json:"reading_id,omitempty"`
	Type      AlertType   `json:"type"`
	Severity  Severity    `json:"severity"`
	Status    AlertStatus `json:"status"`
	Title     string      `json:"title"`
	Message   string      `json:"message"`
	At        time.Time   `json:"at"`
}

// NewAlertEvent builds an outbox event describing alert
func NewAlertEvent(eventType string, alert *Alert, at time.Time) (*OutboxEvent, error) {
	payload, err := json.Marshal(AlertEventPayload{
		AlertID:   alert.ID,
		PatientID: alert.PatientID,
		ReadingID: alert.ReadingID,
		Type:      alert.Type,
		Severity:  alert.Severity,
		Status:    alert.Status,
		Title:     alert.Title,
		Message:   alert.Message,
		At:        at,
	})
	if err != nil {
		return nil, err
	}

	return &OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   payload,
		Status:    OutboxStatusPending,
		CreatedAt: at,
	}, nil
}
