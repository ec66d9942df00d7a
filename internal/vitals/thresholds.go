package vitals

import (
	"fmt"
)

// Thresholds are the alerting bands. Values are exclusive bounds: a heart rate
// of exactly 110 does not breach HeartRateHigh.
type Thresholds struct {
	HeartRateLow        float64 `mapstructure:"heart_rate_low" envconfig:"HEART_RATE_LOW"`
	HeartRateHigh       float64 `mapstructure:"heart_rate_high" envconfig:"HEART_RATE_HIGH"`
	HeartRateCritical   float64 `mapstructure:"heart_rate_critical" envconfig:"HEART_RATE_CRITICAL"`
	SystolicHigh        float64 `mapstructure:"systolic_high" envconfig:"SYSTOLIC_HIGH"`
	SystolicCritical    float64 `mapstructure:"systolic_critical" envconfig:"SYSTOLIC_CRITICAL"`
	DiastolicHigh       float64 `mapstructure:"diastolic_high" envconfig:"DIASTOLIC_HIGH"`
	DiastolicCritical   float64 `mapstructure:"diastolic_critical" envconfig:"DIASTOLIC_CRITICAL"`
	TemperatureHigh     float64 `mapstructure:"temperature_high" envconfig:"TEMPERATURE_HIGH"`
	TemperatureCritical float64 `mapstructure:"temperature_critical" envconfig:"TEMPERATURE_CRITICAL"`
	SpO2Low             float64 `mapstructure:"spo2_low" envconfig:"SPO2_LOW"`
	SpO2Critical        float64 `mapstructure:"spo2_critical" envconfig:"SPO2_CRITICAL"`
}

// DefaultThresholds returns the standard post-operative bands
func DefaultThresholds() Thresholds {
	return Thresholds{
		HeartRateLow:        55,
		HeartRateHigh:       110,
		HeartRateCritical:   130,
		SystolicHigh:        150,
		SystolicCritical:    170,
		DiastolicHigh:       95,
		DiastolicCritical:   110,
		TemperatureHigh:     101.0,
		TemperatureCritical: 103.0,
		SpO2Low:             94,
		SpO2Critical:        88,
	}
}

// Validate checks the bands are ordered
func (t Thresholds) Validate() error {
	switch {
	case t.HeartRateLow >= t.HeartRateHigh:
		return fmt.Errorf("heart_rate_low (%v) must be below heart_rate_high (%v)", t.HeartRateLow, t.HeartRateHigh)
	case t.HeartRateHigh > t.HeartRateCritical:
		return fmt.Errorf("heart_rate_high (%v) must not exceed heart_rate_critical (%v)", t.HeartRateHigh, t.HeartRateCritical)
	case t.SystolicHigh > t.SystolicCritical:
		return fmt.Errorf("systolic_high (%v) must not exceed systolic_critical (%v)", t.SystolicHigh, t.SystolicCritical)
	case t.DiastolicHigh > t.DiastolicCritical:
		return fmt.Errorf("diastolic_high (%v) must not exceed diastolic_critical (%v)", t.DiastolicHigh, t.DiastolicCritical)
	case t.TemperatureHigh > t.TemperatureCritical:
		return fmt.Errorf("temperature_high (%v) must not exceed temperature_critical (%v)", t.TemperatureHigh, t.TemperatureCritical)
	case t.SpO2Critical > t.SpO2Low:
		return fmt.Errorf("spo2_critical (%v) must not exceed spo2_low (%v)", t.SpO2Critical, t.SpO2Low)
	}
	return nil
}
