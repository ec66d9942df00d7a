package vitals

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/postop-monitor/internal/model"
)

// Range is an inclusive clamp interval
type Range struct {
	Min, Max float64
}

func (r Range) Clamp(v float64) float64 {
	return math.Max(r.Min, math.Min(r.Max, v))
}

func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Hard physiological limits applied to every generated reading
var (
	HeartRateRange   = Range{45, 150}
	SystolicRange    = Range{85, 200}
	DiastolicRange   = Range{50, 130}
	TemperatureRange = Range{95, 106}
	SpO2Range        = Range{80, 100}
	StepsRange       = Range{0, 400}
)

// Jitter as a fraction of baseline
const (
	heartRateJitter   = 0.10
	pressureJitter    = 0.08
	temperatureJitter = 0.01
	spo2Jitter        = 0.02
)

// Generator produces synthetic readings around a baseline. It performs no
// I/O and never fails.
type Generator struct {
	spikes SpikeSource

	mu  sync.Mutex
	rng *rand.Rand
}

func NewGenerator(spikes SpikeSource, seed int64) *Generator {
	if spikes == nil {
		spikes = NoSpikes{}
	}
	return &Generator{
		spikes: spikes,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

type modifier struct {
	heartRate, pressure, temperature, activity float64
}

func timeOfDay(hour int) modifier {
	switch {
	case hour < 6:
		return modifier{heartRate: -6, pressure: -5, temperature: -0.2, activity: 0.1}
	case hour < 12:
		return modifier{heartRate: 3, activity: 1.2}
	case hour < 18:
		return modifier{heartRate: 5, pressure: 2, temperature: 0.3, activity: 1.5}
	default:
		return modifier{activity: 0.6}
	}
}

// Generate returns one reading for patientID at now
func (g *Generator) Generate(patientID uuid.UUID, b Baseline, now time.Time) model.VitalsReading {
	mod := timeOfDay(now.Hour())
	spike := g.spikes.Spikes(patientID, now)

	g.mu.Lock()
	hr := b.HeartRate + mod.heartRate + g.jitter(b.HeartRate, heartRateJitter)
	sys := b.Systolic + mod.pressure + g.jitter(b.Systolic, pressureJitter)
	dia := b.Diastolic + mod.pressure + g.jitter(b.Diastolic, pressureJitter)
	temp := b.Temperature + mod.temperature + g.jitter(b.Temperature, temperatureJitter)
	spo2 := b.SpO2 + g.jitter(b.SpO2, spo2Jitter)
	steps := b.Steps * mod.activity * 2 * g.rng.Float64()
	if spike.HeartRate {
		hr += 40 + 20*g.rng.Float64()
	}
	g.mu.Unlock()

	if spike.BloodPressure {
		sys += 40
		dia += 25
	}
	if spike.Temperature {
		temp += 3.5
	}
	if spike.SpO2 {
		spo2 -= 8
	}

	return model.VitalsReading{
		PatientID:   patientID,
		RecordedAt:  now,
		HeartRate:   model.Float64(math.Round(HeartRateRange.Clamp(hr))),
		Systolic:    model.Float64(math.Round(SystolicRange.Clamp(sys))),
		Diastolic:   model.Float64(math.Round(DiastolicRange.Clamp(dia))),
		Temperature: model.Float64(math.Round(TemperatureRange.Clamp(temp)*10) / 10),
		SpO2:        model.Float64(math.Round(SpO2Range.Clamp(spo2))),
		Steps:       model.Int(int(math.Round(StepsRange.Clamp(steps)))),
		Source:      model.SourceMock,
	}
}

// jitter returns a uniform offset in [-frac*base, +frac*base]; callers hold g.mu
func (g *Generator) jitter(base, frac float64) float64 {
	return (g.rng.Float64()*2 - 1) * frac * base
}
