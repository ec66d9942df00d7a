package vitals

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/jwalitptl/postop-monitor/internal/model"
)

// TrendThresholdPct is the second-half versus first-half change, in percent,
// beyond which a series is no longer stable
const TrendThresholdPct = 5.0

// DefaultPeriod is used when the caller gives none
const DefaultPeriod = "24h"

var periods = map[string]struct {
	name string
	d    time.Duration
}{
	"1h":    {"1h", time.Hour},
	"24h":   {"24h", 24 * time.Hour},
	"day":   {"24h", 24 * time.Hour},
	"7d":    {"7d", 7 * 24 * time.Hour},
	"week":  {"7d", 7 * 24 * time.Hour},
	"30d":   {"30d", 30 * 24 * time.Hour},
	"month": {"30d", 30 * 24 * time.Hour},
}

// ParsePeriod resolves a period name to its canonical name and length
func ParsePeriod(p string) (string, time.Duration, error) {
	if p == "" {
		p = DefaultPeriod
	}
	v, ok := periods[p]
	if !ok {
		return "", 0, fmt.Errorf("unsupported period %q", p)
	}
	return v.name, v.d, nil
}

// Classify labels a chronologically ordered series
func Classify(values []float64) model.Trend {
	n := len(values)
	if n < 2 {
		return model.TrendStable
	}
	return classifyHalves(mean(values[:n/2]), mean(values[n/2:]))
}

func classifyHalves(first, second float64) model.Trend {
	if first == 0 {
		return model.TrendStable
	}

	change := (second - first) / math.Abs(first) * 100
	switch {
	case change > TrendThresholdPct:
		return model.TrendIncreasing
	case change < -TrendThresholdPct:
		return model.TrendDecreasing
	default:
		return model.TrendStable
	}
}

// Summarize computes per-parameter statistics over readings in any order.
// Parameters with no samples are omitted.
func Summarize(readings []*model.VitalsReading) map[string]model.ParameterStats {
	return Stats(Aggregate(readings).Parameters)
}

// Aggregate reduces readings in any order to the same summary the store
// computes for a window
func Aggregate(readings []*model.VitalsReading) *model.WindowSummary {
	sorted := make([]*model.VitalsReading, 0, len(readings))
	for _, r := range readings {
		if r != nil {
			sorted = append(sorted, r)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].RecordedAt.Before(sorted[j].RecordedAt)
	})

	series := map[string][]float64{}
	add := func(name string, v *float64) {
		if v != nil {
			series[name] = append(series[name], *v)
		}
	}
	for _, r := range sorted {
		add(model.ParamHeartRate, r.HeartRate)
		add("systolic", r.Systolic)
		add("diastolic", r.Diastolic)
		add(model.ParamTemperature, r.Temperature)
		add(model.ParamSpO2, r.SpO2)
		if r.Steps != nil {
			series[model.ParamSteps] = append(series[model.ParamSteps], float64(*r.Steps))
		}
	}

	summary := &model.WindowSummary{Readings: len(sorted)}
	for name, values := range series {
		agg := model.ParameterAggregate{
			Parameter: name,
			Min:       values[0],
			Max:       values[0],
			Mean:      mean(values),
			Count:     len(values),
		}
		for _, v := range values[1:] {
			agg.Min = math.Min(agg.Min, v)
			agg.Max = math.Max(agg.Max, v)
		}
		if half := len(values) / 2; half > 0 {
			first, second := mean(values[:half]), mean(values[half:])
			agg.FirstMean, agg.SecondMean = &first, &second
		}
		summary.Parameters = append(summary.Parameters, agg)
	}
	sort.Slice(summary.Parameters, func(i, j int) bool {
		return summary.Parameters[i].Parameter < summary.Parameters[j].Parameter
	})
	return summary
}

// Stats turns window aggregates into the reported statistics
func Stats(aggs []model.ParameterAggregate) map[string]model.ParameterStats {
	out := make(map[string]model.ParameterStats, len(aggs))
	for _, a := range aggs {
		if a.Count == 0 {
			continue
		}
		s := model.ParameterStats{
			Min:   a.Min,
			Max:   a.Max,
			Mean:  math.Round(a.Mean*100) / 100,
			Count: a.Count,
			Trend: model.TrendStable,
		}
		if a.FirstMean != nil && a.SecondMean != nil {
			s.Trend = classifyHalves(*a.FirstMean, *a.SecondMean)
		}
		out[a.Parameter] = s
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
