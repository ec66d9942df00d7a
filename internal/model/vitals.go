package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// VitalsSource identifies where a reading came from
type VitalsSource string

const (
	SourceMock       VitalsSource = "mock"
	SourceThingSpeak VitalsSource = "thingspeak"
	SourceManual     VitalsSource = "manual"
)

// Vital parameter names, also used as details.parameter on alerts
const (
	ParamHeartRate     = "heart_rate"
	ParamBloodPressure = "blood_pressure"
	ParamTemperature   = "temperature"
	ParamSpO2          = "spo2"
	ParamSteps         = "steps"
	ParamMultiple      = "multiple"
)

// DeviceMetadata holds the raw device payload a reading was decoded from
type DeviceMetadata struct {
	ChannelID string            `json:"channel_id,omitempty"`
	EntryID   int64             `json:"entry_id,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

func (d DeviceMetadata) Value() (driver.Value, error) {
	return json.Marshal(d)
}

func (d *DeviceMetadata) Scan(src interface{}) error {
	if d == nil {
		return errNilReceiver
	}
	return scanJSON(src, d)
}

// VitalsReading is one timestamped snapshot for one patient. Readings are
// never updated once stored; nil fields were not measured.
type VitalsReading struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	PatientID   uuid.UUID       `json:"patient_id" db:"patient_id"`
	DeviceID    string          `json:"device_id" db:"device_id"`
	RecordedAt  time.Time       `json:"recorded_at" db:"recorded_at"`
	HeartRate   *float64        `json:"heart_rate,omitempty" db:"heart_rate"`
	Systolic    *float64        `json:"systolic,omitempty" db:"systolic"`
	Diastolic   *float64        `json:"diastolic,omitempty" db:"diastolic"`
	Temperature *float64        `json:"temperature,omitempty" db:"temperature"`
	SpO2        *float64        `json:"spo2,omitempty" db:"spo2"`
	Steps       *int            `json:"steps,omitempty" db:"steps"`
	Source      VitalsSource    `json:"source" db:"source"`
	Raw         *DeviceMetadata `json:"raw,omitempty" db:"raw"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// ManualReadingRequest is a vitals snapshot submitted through the API
type ManualReadingRequest struct {
	PatientID   uuid.UUID  `json:"patient_id" binding:"required"`
	DeviceID    string     `json:"device_id"`
	RecordedAt  *time.Time `json:"recorded_at"`
	HeartRate   *float64   `json:"heart_rate" binding:"omitempty,gt=0,lte=300"`
	Systolic    *float64   `json:"systolic" binding:"omitempty,gt=0,lte=300"`
	Diastolic   *float64   `json:"diastolic" binding:"omitempty,gt=0,lte=250"`
	Temperature *float64   `json:"temperature" binding:"omitempty,gte=80,lte=115"`
	SpO2        *float64   `json:"spo2" binding:"omitempty,gte=0,lte=100"`
	Steps       *int       `json:"steps" binding:"omitempty,gte=0"`
}

// HasVitals reports whether at least one measurement was supplied
func (r *ManualReadingRequest) HasVitals() bool {
	return r.HeartRate != nil || r.Systolic != nil || r.Diastolic != nil ||
		r.Temperature != nil || r.SpO2 != nil || r.Steps != nil
}

// Float64 returns a pointer to v
func Float64(v float64) *float64 {
	return &v
}

// Int returns a pointer to v
func Int(v int) *int {
	return &v
}
