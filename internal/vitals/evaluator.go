package vitals

import (
	"fmt"
	"strings"

	"github.com/jwalitptl/postop-monitor/internal/model"
)

// Candidate is an alert the evaluator proposes for one reading
type Candidate struct {
	Type     model.AlertType
	Severity model.Severity
	Title    string
	Message  string
	Details  model.AlertDetails
}

// Evaluator compares readings against fixed bands. It holds no state beyond
// its thresholds and is safe for concurrent use.
type Evaluator struct {
	t Thresholds
}

func NewEvaluator(t Thresholds) *Evaluator {
	return &Evaluator{t: t}
}

// Thresholds returns the bands in use
func (e *Evaluator) Thresholds() Thresholds {
	return e.t
}

// Evaluate returns the candidates raised by r, in parameter order followed by
// the composite candidate when two or more parameters breach. Missing fields
// are skipped.
func (e *Evaluator) Evaluate(r *model.VitalsReading) []Candidate {
	if r == nil {
		return nil
	}

	var out []Candidate
	if c, ok := e.heartRate(r.HeartRate); ok {
		out = append(out, c)
	}
	if c, ok := e.bloodPressure(r.Systolic, r.Diastolic); ok {
		out = append(out, c)
	}
	if c, ok := e.temperature(r.Temperature); ok {
		out = append(out, c)
	}
	if c, ok := e.spo2(r.SpO2); ok {
		out = append(out, c)
	}

	if len(out) >= 2 {
		out = append(out, composite(out))
	}
	return out
}

func (e *Evaluator) heartRate(v *float64) (Candidate, bool) {
	if v == nil {
		return Candidate{}, false
	}
	hr := *v
	normal := fmt.Sprintf("%g-%g bpm", e.t.HeartRateLow, e.t.HeartRateHigh)

	switch {
	case hr > e.t.HeartRateCritical:
		return breach(model.ParamHeartRate, model.SeverityCritical, "High Heart Rate",
			fmt.Sprintf("Heart rate %.0f bpm exceeds critical threshold of %g bpm", hr, e.t.HeartRateCritical),
			hr, nil, normal, e.t.HeartRateCritical), true
	case hr > e.t.HeartRateHigh:
		return breach(model.ParamHeartRate, model.SeverityHigh, "High Heart Rate",
			fmt.Sprintf("Heart rate %.0f bpm is above %g bpm", hr, e.t.HeartRateHigh),
			hr, nil, normal, e.t.HeartRateHigh), true
	case hr < e.t.HeartRateLow:
		return breach(model.ParamHeartRate, model.SeverityMedium, "Low Heart Rate",
			fmt.Sprintf("Heart rate %.0f bpm is below %g bpm", hr, e.t.HeartRateLow),
			hr, nil, normal, e.t.HeartRateLow), true
	}
	return Candidate{}, false
}

func (e *Evaluator) bloodPressure(sys, dia *float64) (Candidate, bool) {
	if sys == nil && dia == nil {
		return Candidate{}, false
	}
	above := func(v *float64, limit float64) bool { return v != nil && *v > limit }
	normal := fmt.Sprintf("<=%g/%g mmHg", e.t.SystolicHigh, e.t.DiastolicHigh)

	// threshold is the limit that tripped, systolic first
	var severity model.Severity
	var threshold float64
	switch {
	case above(sys, e.t.SystolicCritical):
		severity, threshold = model.SeverityCritical, e.t.SystolicCritical
	case above(dia, e.t.DiastolicCritical):
		severity, threshold = model.SeverityCritical, e.t.DiastolicCritical
	case above(sys, e.t.SystolicHigh):
		severity, threshold = model.SeverityHigh, e.t.SystolicHigh
	case above(dia, e.t.DiastolicHigh):
		severity, threshold = model.SeverityHigh, e.t.DiastolicHigh
	default:
		return Candidate{}, false
	}

	c := Candidate{
		Type:     model.AlertTypeVitalBreach,
		Severity: severity,
		Title:    "High Blood Pressure",
		Message:  fmt.Sprintf("Blood pressure %s mmHg is above %s", formatBP(sys, dia), normal),
		Details: model.AlertDetails{
			Parameter:      model.ParamBloodPressure,
			Observed:       copyPtr(sys),
			SecondaryValue: copyPtr(dia),
			NormalRange:    normal,
			Threshold:      model.Float64(threshold),
		},
	}
	return c, true
}

func (e *Evaluator) temperature(v *float64) (Candidate, bool) {
	if v == nil {
		return Candidate{}, false
	}
	temp := *v
	normal := fmt.Sprintf("<=%.1f°F", e.t.TemperatureHigh)

	switch {
	case temp > e.t.TemperatureCritical:
		return breach(model.ParamTemperature, model.SeverityCritical, "High Temperature",
			fmt.Sprintf("Temperature %.1f°F exceeds critical threshold of %.1f°F", temp, e.t.TemperatureCritical),
			temp, nil, normal, e.t.TemperatureCritical), true
	case temp > e.t.TemperatureHigh:
		return breach(model.ParamTemperature, model.SeverityHigh, "High Temperature",
			fmt.Sprintf("Temperature %.1f°F is above %.1f°F", temp, e.t.TemperatureHigh),
			temp, nil, normal, e.t.TemperatureHigh), true
	}
	return Candidate{}, false
}

func (e *Evaluator) spo2(v *float64) (Candidate, bool) {
	if v == nil {
		return Candidate{}, false
	}
	sat := *v
	normal := fmt.Sprintf(">=%g%%", e.t.SpO2Low)

	switch {
	case sat < e.t.SpO2Critical:
		return breach(model.ParamSpO2, model.SeverityCritical, "Low Blood Oxygen",
			fmt.Sprintf("SpO2 %.0f%% is below critical threshold of %g%%", sat, e.t.SpO2Critical),
			sat, nil, normal, e.t.SpO2Critical), true
	case sat < e.t.SpO2Low:
		return breach(model.ParamSpO2, model.SeverityHigh, "Low Blood Oxygen",
			fmt.Sprintf("SpO2 %.0f%% is below %g%%", sat, e.t.SpO2Low),
			sat, nil, normal, e.t.SpO2Low), true
	}
	return Candidate{}, false
}

func composite(breaches []Candidate) Candidate {
	params := make([]string, 0, len(breaches))
	for _, b := range breaches {
		params = append(params, b.Details.Parameter)
	}

	return Candidate{
		Type:     model.AlertTypeVitalBreach,
		Severity: model.SeverityCritical,
		Title:    "Multiple Vital Signs Anomaly",
		Message:  fmt.Sprintf("%d vital signs out of range: %s", len(params), strings.Join(params, ", ")),
		Details: model.AlertDetails{
			Parameter:  model.ParamMultiple,
			Parameters: params,
		},
	}
}

func breach(param string, severity model.Severity, title, message string, value float64, secondary *float64, normal string, threshold float64) Candidate {
	return Candidate{
		Type:     model.AlertTypeVitalBreach,
		Severity: severity,
		Title:    title,
		Message:  message,
		Details: model.AlertDetails{
			Parameter:      param,
			Observed:       model.Float64(value),
			SecondaryValue: secondary,
			NormalRange:    normal,
			Threshold:      model.Float64(threshold),
		},
	}
}

func formatBP(sys, dia *float64) string {
	f := func(v *float64) string {
		if v == nil {
			return "-"
		}
		return fmt.Sprintf("%.0f", *v)
	}
	return f(sys) + "/" + f(dia)
}

func copyPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
