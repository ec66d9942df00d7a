package vitals

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/postop-monitor/internal/model"
)

func normalReading() *model.VitalsReading {
	return &model.VitalsReading{
		HeartRate:   model.Float64(75),
		Systolic:    model.Float64(120),
		Diastolic:   model.Float64(78),
		Temperature: model.Float64(98.6),
		SpO2:        model.Float64(97),
	}
}

func TestEvaluate_NormalReading(t *testing.T) {
	e := NewEvaluator(DefaultThresholds())
	assert.Empty(t, e.Evaluate(normalReading()))
}

func TestEvaluate_HeartRateBands(t *testing.T) {
	e := NewEvaluator(DefaultThresholds())

	tests := []struct {
		name     string
		hr       float64
		severity model.Severity
		title    string
	}{
		{"critical", 135, model.SeverityCritical, "High Heart Rate"},
		{"high", 115, model.SeverityHigh, "High Heart Rate"},
		{"low", 50, model.SeverityMedium, "Low Heart Rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := normalReading()
			r.HeartRate = model.Float64(tt.hr)

			got := e.Evaluate(r)
			require.Len(t, got, 1)
			assert.Equal(t, model.AlertTypeVitalBreach, got[0].Type)
			assert.Equal(t, tt.severity, got[0].Severity)
			assert.Equal(t, tt.title, got[0].Title)
			assert.Equal(t, model.ParamHeartRate, got[0].Details.Parameter)
			require.NotNil(t, got[0].Details.Observed)
			assert.Equal(t, tt.hr, *got[0].Details.Observed)
			assert.NotEmpty(t, got[0].Details.NormalRange)
		})
	}
}

func TestEvaluate_BoundariesAreExclusive(t *testing.T) {
	e := NewEvaluator(DefaultThresholds())

	r := &model.VitalsReading{
		HeartRate:   model.Float64(110),
		Systolic:    model.Float64(150),
		Diastolic:   model.Float64(95),
		Temperature: model.Float64(101.0),
		SpO2:        model.Float64(94),
	}
	assert.Empty(t, e.Evaluate(r))

	r.HeartRate = model.Float64(55)
	assert.Empty(t, e.Evaluate(r))
}

func TestEvaluate_BloodPressure(t *testing.T) {
	e := NewEvaluator(DefaultThresholds())

	r := normalReading()
	r.Diastolic = model.Float64(112)

	got := e.Evaluate(r)
	require.Len(t, got, 1)
	assert.Equal(t, model.SeverityCritical, got[0].Severity)
	assert.Equal(t, model.ParamBloodPressure, got[0].Details.Parameter)
	assert.Equal(t, 120.0, *got[0].Details.Observed)
	assert.Equal(t, 112.0, *got[0].Details.SecondaryValue)
	assert.Equal(t, 110.0, *got[0].Details.Threshold)

	r = normalReading()
	r.Systolic = model.Float64(155)
	got = e.Evaluate(r)
	require.Len(t, got, 1)
	assert.Equal(t, model.SeverityHigh, got[0].Severity)
	assert.Equal(t, 150.0, *got[0].Details.Threshold)

	r = normalReading()
	r.Diastolic = model.Float64(100)
	got = e.Evaluate(r)
	require.Len(t, got, 1)
	assert.Equal(t, model.SeverityHigh, got[0].Severity)
	assert.Equal(t, 95.0, *got[0].Details.Threshold)

	// critical diastolic outranks a merely high systolic
	r = normalReading()
	r.Systolic = model.Float64(160)
	r.Diastolic = model.Float64(115)
	got = e.Evaluate(r)
	require.Len(t, got, 1)
	assert.Equal(t, model.SeverityCritical, got[0].Severity)
	assert.Equal(t, 110.0, *got[0].Details.Threshold)
}

func TestEvaluate_SpO2AndTemperatureComposite(t *testing.T) {
	e := NewEvaluator(DefaultThresholds())

	r := normalReading()
	r.SpO2 = model.Float64(90)
	r.Temperature = model.Float64(102.0)

	got := e.Evaluate(r)
	require.Len(t, got, 3)

	assert.Equal(t, model.ParamTemperature, got[0].Details.Parameter)
	assert.Equal(t, model.SeverityHigh, got[0].Severity)
	assert.Equal(t, model.ParamSpO2, got[1].Details.Parameter)
	assert.Equal(t, model.SeverityHigh, got[1].Severity)

	assert.Equal(t, "Multiple Vital Signs Anomaly", got[2].Title)
	assert.Equal(t, model.SeverityCritical, got[2].Severity)
	assert.Equal(t, model.ParamMultiple, got[2].Details.Parameter)
	assert.Equal(t, []string{model.ParamTemperature, model.ParamSpO2}, got[2].Details.Parameters)
}

func TestEvaluate_CompositeAlwaysAddedForTwoOrMore(t *testing.T) {
	e := NewEvaluator(DefaultThresholds())

	r := &model.VitalsReading{
		HeartRate:   model.Float64(140),
		Systolic:    model.Float64(180),
		Temperature: model.Float64(104),
		SpO2:        model.Float64(85),
	}

	got := e.Evaluate(r)
	require.Len(t, got, 5)

	composites := 0
	for _, c := range got {
		if c.Details.Parameter == model.ParamMultiple {
			composites++
			assert.Equal(t, model.SeverityCritical, c.Severity)
		}
	}
	assert.Equal(t, 1, composites)
}

func TestEvaluate_MissingFieldsSkipped(t *testing.T) {
	e := NewEvaluator(DefaultThresholds())

	assert.Empty(t, e.Evaluate(&model.VitalsReading{}))
	assert.Nil(t, e.Evaluate(nil))

	got := e.Evaluate(&model.VitalsReading{SpO2: model.Float64(86)})
	require.Len(t, got, 1)
	assert.Equal(t, model.SeverityCritical, got[0].Severity)
}

func TestEvaluate_Deterministic(t *testing.T) {
	e := NewEvaluator(DefaultThresholds())

	r := normalReading()
	r.HeartRate = model.Float64(131)
	r.Temperature = model.Float64(103.5)

	first := e.Evaluate(r)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, e.Evaluate(r))
	}
}

func TestEvaluate_CustomThresholds(t *testing.T) {
	th := DefaultThresholds()
	th.HeartRateHigh = 100
	e := NewEvaluator(th)

	r := normalReading()
	r.HeartRate = model.Float64(105)

	got := e.Evaluate(r)
	require.Len(t, got, 1)
	assert.Equal(t, model.SeverityHigh, got[0].Severity)
}

func TestThresholds_Validate(t *testing.T) {
	assert.NoError(t, DefaultThresholds().Validate())

	th := DefaultThresholds()
	th.SpO2Critical = 96
	assert.Error(t, th.Validate())

	th = DefaultThresholds()
	th.HeartRateLow = 120
	assert.Error(t, th.Validate())
}
