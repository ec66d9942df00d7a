package vitals

import (
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/postop-monitor/internal/model"
)

// Baseline is a patient's resting vitals before time-of-day and jitter
type Baseline struct {
	HeartRate   float64 `json:"heart_rate"`
	Systolic    float64 `json:"systolic"`
	Diastolic   float64 `json:"diastolic"`
	Temperature float64 `json:"temperature"`
	SpO2        float64 `json:"spo2"`
	Steps       float64 `json:"steps"`
}

// BaselineFor derives resting vitals from age and recovery stage
func BaselineFor(age, daysSinceSurgery int) Baseline {
	b := Baseline{
		HeartRate:   72,
		Systolic:    118,
		Diastolic:   76,
		Temperature: 98.4,
		SpO2:        97.5,
		Steps:       60,
	}

	if age > 65 {
		b.HeartRate += 5
	}
	if age > 40 {
		b.Systolic += float64(age-40) * 0.5
		b.Diastolic += float64(age-40) * 0.2
	}
	if age > 70 {
		b.SpO2 -= 1
	}

	switch {
	case daysSinceSurgery < 3:
		b.HeartRate += 10
		b.Temperature += 0.6
		b.SpO2 -= 1
		b.Steps = 10
	case daysSinceSurgery < 7:
		b.HeartRate += 5
		b.Temperature += 0.3
		b.Steps = 30
	}

	return b
}

// BaselineCache holds per-patient baselines. It is rebuilt from the patient
// roster on startup and whenever the roster changes.
type BaselineCache struct {
	c   *cache.Cache
	now func() time.Time
}

func NewBaselineCache(now func() time.Time) *BaselineCache {
	if now == nil {
		now = time.Now
	}
	return &BaselineCache{
		c:   cache.New(cache.NoExpiration, 0),
		now: now,
	}
}

// Get returns the cached baseline for patient, deriving it on a miss
func (bc *BaselineCache) Get(patient *model.User) Baseline {
	key := patient.ID.String()
	if v, ok := bc.c.Get(key); ok {
		return v.(Baseline)
	}

	b := bc.derive(patient)
	bc.c.Set(key, b, cache.DefaultExpiration)
	return b
}

// Rebuild replaces every entry with baselines derived from patients
func (bc *BaselineCache) Rebuild(patients []*model.User) {
	bc.c.Flush()
	for _, p := range patients {
		bc.c.Set(p.ID.String(), bc.derive(p), cache.DefaultExpiration)
	}
}

// Invalidate drops the entry for one patient
func (bc *BaselineCache) Invalidate(patientID uuid.UUID) {
	bc.c.Delete(patientID.String())
}

// Len returns the number of cached baselines
func (bc *BaselineCache) Len() int {
	return bc.c.ItemCount()
}

func (bc *BaselineCache) derive(p *model.User) Baseline {
	now := bc.now()
	return BaselineFor(p.Age(now), p.DaysSinceSurgery(now))
}
