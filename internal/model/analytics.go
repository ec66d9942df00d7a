package model

import (
	"github.com/google/uuid"
)

// Trend is a coarse direction label for a vital over a window
type Trend string

const (
	TrendStable     Trend = "stable"
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
)

// ParameterStats summarises one vital over a window
type ParameterStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	Count int     `json:"count"`
	Trend Trend   `json:"trend"`
}

// ParameterAggregate is the raw aggregate of one vital over a window.
// FirstMean and SecondMean average the older and newer half of the samples,
// split by count in recording order; they are nil when a half is empty.
type ParameterAggregate struct {
	Parameter  string   `db:"parameter"`
	Min        float64  `db:"min"`
	Max        float64  `db:"max"`
	Mean       float64  `db:"mean"`
	Count      int      `db:"count"`
	FirstMean  *float64 `db:"first_mean"`
	SecondMean *float64 `db:"second_mean"`
}

// WindowSummary aggregates every reading recorded in a window
type WindowSummary struct {
	Readings   int
	Parameters []ParameterAggregate
}

// VitalsAnalytics is the aggregate view returned by the analytics endpoint
type VitalsAnalytics struct {
	PatientID   uuid.UUID                 `json:"patient_id"`
	Period      string                    `json:"period"`
	Window      TimeRange                 `json:"window"`
	Readings    int                       `json:"readings"`
	Parameters  map[string]ParameterStats `json:"parameters"`
	AlertCounts map[Severity]int          `json:"alert_counts"`
}

// Dashboard is the per-patient summary card
type Dashboard struct {
	PatientID  uuid.UUID                 `json:"patient_id"`
	Latest     *VitalsReading            `json:"latest,omitempty"`
	Last24h    map[string]ParameterStats `json:"last_24h"`
	OpenAlerts int                       `json:"open_alerts"`
	Critical   int                       `json:"open_critical_alerts"`
}
