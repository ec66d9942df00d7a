package device

import (
	"context"
	"errors"
	"time"

	"github.com/jwalitptl/postop-monitor/internal/model"
)

// ErrNoNewData means the source has nothing new for the patient this tick
var ErrNoNewData = errors.New("no new vitals data")

// Source produces the next reading for a patient
type Source interface {
	Read(ctx context.Context, patient *model.User, now time.Time) (*model.VitalsReading, error)
}

// DeviceID returns the identifier readings for patient are attributed to
func DeviceID(patient *model.User) string {
	if patient.BandID != nil && *patient.BandID != "" {
		return *patient.BandID
	}
	return "mock-" + patient.ID.String()[:8]
}
