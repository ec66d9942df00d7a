package vitals

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Spikes marks the parameters that get a large excursion on one tick
type Spikes struct {
	HeartRate     bool
	BloodPressure bool
	Temperature   bool
	SpO2          bool
}

// Any reports whether at least one parameter spikes
func (s Spikes) Any() bool {
	return s.HeartRate || s.BloodPressure || s.Temperature || s.SpO2
}

// SpikeSource decides which parameters spike for a patient on a tick
type SpikeSource interface {
	Spikes(patientID uuid.UUID, now time.Time) Spikes
}

// NoSpikes never spikes
type NoSpikes struct{}

func (NoSpikes) Spikes(uuid.UUID, time.Time) Spikes { return Spikes{} }

// FixedSpikes always returns the same decision
type FixedSpikes Spikes

func (f FixedSpikes) Spikes(uuid.UUID, time.Time) Spikes { return Spikes(f) }

// RandSpikes draws an independent decision per parameter at Rate from a
// seeded generator, so a given seed replays the same schedule.
type RandSpikes struct {
	Rate float64

	mu  sync.Mutex
	rng *rand.Rand
}

// DefaultSpikeRate is the per-parameter excursion probability per tick
const DefaultSpikeRate = 0.2

func NewRandSpikes(seed int64, rate float64) *RandSpikes {
	if rate < 0 {
		rate = 0
	}
	if rate > 1 {
		rate = 1
	}
	return &RandSpikes{
		Rate: rate,
		rng:  rand.New(rand.NewSource(seed)),
	}
}

func (r *RandSpikes) Spikes(uuid.UUID, time.Time) Spikes {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Spikes{
		HeartRate:     r.rng.Float64() < r.Rate,
		BloodPressure: r.rng.Float64() < r.Rate,
		Temperature:   r.rng.Float64() < r.Rate,
		SpO2:          r.rng.Float64() < r.Rate,
	}
}
