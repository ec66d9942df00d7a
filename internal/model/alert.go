package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type AlertType string

const (
	AlertTypeVitalBreach        AlertType = "vital_breach"
	AlertTypeFallDetected       AlertType = "fall_detected"
	AlertTypeMedicationReminder AlertType = "medication_reminder"
	AlertTypeInactivity         AlertType = "inactivity"
	AlertTypeOverExertion       AlertType = "over_exertion"
	AlertTypeBandDisconnected   AlertType = "band_disconnected"
	AlertTypeLowBattery         AlertType = "low_battery"
	AlertTypeEmergency          AlertType = "emergency"
	AlertTypeSystem             AlertType = "system"
)

// AlertTypes lists every accepted alert type
var AlertTypes = []AlertType{
	AlertTypeVitalBreach,
	AlertTypeFallDetected,
	AlertTypeMedicationReminder,
	AlertTypeInactivity,
	AlertTypeOverExertion,
	AlertTypeBandDisconnected,
	AlertTypeLowBattery,
	AlertTypeEmergency,
	AlertTypeSystem,
}

func (t AlertType) Valid() bool {
	for _, v := range AlertTypes {
		if t == v {
			return true
		}
	}
	return false
}

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Severities in ascending order
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

type AlertStatus string

const (
	AlertStatusPending      AlertStatus = "pending"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResolved     AlertStatus = "resolved"
	AlertStatusEscalated    AlertStatus = "escalated"
)

func (s AlertStatus) Valid() bool {
	switch s {
	case AlertStatusPending, AlertStatusAcknowledged, AlertStatusResolved, AlertStatusEscalated:
		return true
	}
	return false
}

// Open reports whether the alert still suppresses duplicates
func (s AlertStatus) Open() bool {
	return s == AlertStatusPending || s == AlertStatusAcknowledged
}

// AlertDetails describes the measurement that raised an alert
type AlertDetails struct {
	Parameter      string   `json:"parameter,omitempty"`
	Observed       *float64 `json:"value,omitempty"`
	SecondaryValue *float64 `json:"secondary_value,omitempty"`
	NormalRange    string   `json:"normal_range,omitempty"`
	Threshold      *float64 `json:"threshold,omitempty"`
	Parameters     []string `json:"parameters,omitempty"`
}

func (d AlertDetails) Value() (driver.Value, error) {
	return json.Marshal(d)
}

func (d *AlertDetails) Scan(src interface{}) error {
	if d == nil {
		return errNilReceiver
	}
	return scanJSON(src, d)
}

// Alert is a detected breach or a manually raised notice. Alerts are never
// deleted; status moves only through explicit transitions.
type Alert struct {
	Base
	PatientID        uuid.UUID    `json:"patient_id" db:"patient_id"`
	ReadingID        *uuid.UUID   `json:"reading_id,omitempty" db:"reading_id"`
	Type             AlertType    `json:"type" db:"type"`
	Severity         Severity     `json:"severity" db:"severity"`
	Status           AlertStatus  `json:"status" db:"status"`
	Title            string       `json:"title" db:"title"`
	Message          string       `json:"message" db:"message"`
	Details          AlertDetails `json:"details" db:"details"`
	CreatedBy        *uuid.UUID   `json:"created_by,omitempty" db:"created_by"`
	AcknowledgedBy   *uuid.UUID   `json:"acknowledged_by,omitempty" db:"acknowledged_by"`
	AcknowledgedAt   *time.Time   `json:"acknowledged_at,omitempty" db:"acknowledged_at"`
	ResolvedBy       *uuid.UUID   `json:"resolved_by,omitempty" db:"resolved_by"`
	ResolvedAt       *time.Time   `json:"resolved_at,omitempty" db:"resolved_at"`
	ResolutionNotes  *string      `json:"resolution_notes,omitempty" db:"resolution_notes"`
	EscalatedBy      *uuid.UUID   `json:"escalated_by,omitempty" db:"escalated_by"`
	EscalatedAt      *time.Time   `json:"escalated_at,omitempty" db:"escalated_at"`
	EscalationReason *string      `json:"escalation_reason,omitempty" db:"escalation_reason"`
}

// AlertFilter narrows alert listings. DoctorID restricts results to the
// doctor's assigned patients.
type AlertFilter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	Status    *AlertStatus
	Severity  *Severity
	Type      *AlertType
	Since     *time.Time
	Limit     int
	Offset    int
}

// AlertTransition is a status change with its audit stamp
type AlertTransition struct {
	AlertID uuid.UUID
	From    []AlertStatus
	To      AlertStatus
	ActorID *uuid.UUID
	At      time.Time
	Notes   *string
	Reason  *string
}

// CreateAlertRequest represents a manually raised alert
type CreateAlertRequest struct {
	PatientID uuid.UUID     `json:"patient_id" binding:"required"`
	Type      AlertType     `json:"type" binding:"required,alerttype"`
	Severity  Severity      `json:"severity" binding:"required,severity"`
	Title     string        `json:"title" binding:"required,max=200"`
	Message   string        `json:"message" binding:"max=2000"`
	Details   *AlertDetails `json:"details"`
}

// ResolveAlertRequest carries optional resolution notes
type ResolveAlertRequest struct {
	Notes string `json:"notes" binding:"max=2000"`
}

// EscalateAlertRequest carries the escalation reason
type EscalateAlertRequest struct {
	Reason string `json:"reason" binding:"max=2000"`
}

// ListAlertsQuery is the query string accepted by the alert listing
type ListAlertsQuery struct {
	Status    string `form:"status" binding:"omitempty,alertstatus"`
	Severity  string `form:"severity" binding:"omitempty,severity"`
	Type      string `form:"type" binding:"omitempty,alerttype"`
	PatientID string `form:"patientId" binding:"omitempty,uuid"`
	Limit     int    `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset    int    `form:"offset" binding:"omitempty,min=0"`
}
