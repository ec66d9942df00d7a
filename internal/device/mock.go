package device

import (
	"context"
	"time"

	"github.com/jwalitptl/postop-monitor/internal/model"
	"github.com/jwalitptl/postop-monitor/internal/vitals"
)

// MockSource synthesises readings from each patient's cached baseline
type MockSource struct {
	baselines *vitals.BaselineCache
	gen       *vitals.Generator
}

func NewMockSource(baselines *vitals.BaselineCache, gen *vitals.Generator) *MockSource {
	return &MockSource{
		baselines: baselines,
		gen:       gen,
	}
}

func (s *MockSource) Read(_ context.Context, patient *model.User, now time.Time) (*model.VitalsReading, error) {
	reading := s.gen.Generate(patient.ID, s.baselines.Get(patient), now)
	reading.DeviceID = DeviceID(patient)
	return &reading, nil
}
