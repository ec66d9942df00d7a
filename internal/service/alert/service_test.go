package alert

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/postop-monitor/internal/model"
	"github.com/jwalitptl/postop-monitor/internal/repository/repotest"
	"github.com/jwalitptl/postop-monitor/internal/service/access"
	apperrors "github.com/jwalitptl/postop-monitor/pkg/errors"
	"github.com/jwalitptl/postop-monitor/pkg/logger"
)

type fixture struct {
	alerts  *repotest.Alerts
	service *Service
	clock   *clock
	doctor  model.CurrentUser
	patient model.CurrentUser
	admin   model.CurrentUser
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	doctorID := uuid.New()
	patientID := uuid.New()
	users := repotest.NewUsers(
		&model.User{Base: model.Base{ID: doctorID}, Role: model.RoleDoctor, Status: model.UserStatusActive},
		&model.User{Base: model.Base{ID: patientID}, Role: model.RolePatient, Status: model.UserStatusActive, AssignedDoctorID: &doctorID},
	)
	alerts := repotest.NewAlerts()
	clk := newClock()

	return &fixture{
		alerts:  alerts,
		service: NewService(alerts, access.NewPolicy(users), logger.Nop()).WithClock(clk.Now),
		clock:   clk,
		doctor:  model.CurrentUser{ID: doctorID, Role: model.RoleDoctor},
		patient: model.CurrentUser{ID: patientID, Role: model.RolePatient},
		admin:   model.CurrentUser{ID: uuid.New(), Role: model.RoleSuperAdmin},
	}
}

func (f *fixture) seed(t *testing.T, status model.AlertStatus) *model.Alert {
	t.Helper()
	a := &model.Alert{
		Base:      model.Base{ID: uuid.New(), CreatedAt: f.clock.t, UpdatedAt: f.clock.t},
		PatientID: f.patient.ID,
		Type:      model.AlertTypeVitalBreach,
		Severity:  model.SeverityCritical,
		Status:    status,
		Title:     "High Heart Rate",
	}
	require.NoError(t, f.alerts.CreateWithEvent(context.Background(), a, nil))
	return a
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to model.AlertStatus
		want     bool
	}{
		{model.AlertStatusPending, model.AlertStatusAcknowledged, true},
		{model.AlertStatusAcknowledged, model.AlertStatusAcknowledged, false},
		{model.AlertStatusEscalated, model.AlertStatusAcknowledged, false},
		{model.AlertStatusPending, model.AlertStatusResolved, true},
		{model.AlertStatusAcknowledged, model.AlertStatusResolved, true},
		{model.AlertStatusEscalated, model.AlertStatusResolved, true},
		{model.AlertStatusResolved, model.AlertStatusResolved, false},
		{model.AlertStatusPending, model.AlertStatusEscalated, true},
		{model.AlertStatusAcknowledged, model.AlertStatusEscalated, true},
		{model.AlertStatusEscalated, model.AlertStatusEscalated, false},
		{model.AlertStatusResolved, model.AlertStatusEscalated, false},
		{model.AlertStatusResolved, model.AlertStatusPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestService_AcknowledgeThenResolve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seed(t, model.AlertStatusPending)

	f.clock.Advance(3 * time.Minute)
	acked, err := f.service.Acknowledge(ctx, f.doctor, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AlertStatusAcknowledged, acked.Status)
	require.NotNil(t, acked.AcknowledgedBy)
	assert.Equal(t, f.doctor.ID, *acked.AcknowledgedBy)
	assert.Equal(t, f.clock.t, *acked.AcknowledgedAt)

	// A second acknowledge conflicts
	_, err = f.service.Acknowledge(ctx, f.doctor, a.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))

	resolved, err := f.service.Resolve(ctx, f.doctor, a.ID, "  rate settled after fluids ")
	require.NoError(t, err)
	assert.Equal(t, model.AlertStatusResolved, resolved.Status)
	require.NotNil(t, resolved.ResolutionNotes)
	assert.Equal(t, "rate settled after fluids", *resolved.ResolutionNotes)

	_, err = f.service.Escalate(ctx, f.doctor, a.ID, "late")
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))
}

func TestService_EscalateWritesEvent(t *testing.T) {
	f := newFixture(t)
	a := f.seed(t, model.AlertStatusAcknowledged)

	escalated, err := f.service.Escalate(context.Background(), f.admin, a.ID, "no response from ward")
	require.NoError(t, err)
	assert.Equal(t, model.AlertStatusEscalated, escalated.Status)
	assert.Equal(t, f.admin.ID, *escalated.EscalatedBy)
	assert.Equal(t, "no response from ward", *escalated.EscalationReason)

	events := f.alerts.Events()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventAlertEscalated, events[0].EventType)
}

func TestService_TransitionPermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seed(t, model.AlertStatusPending)

	_, err := f.service.Acknowledge(ctx, f.patient, a.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

	otherDoctor := model.CurrentUser{ID: uuid.New(), Role: model.RoleDoctor}
	_, err = f.service.Acknowledge(ctx, otherDoctor, a.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

	_, err = f.service.Acknowledge(ctx, f.doctor, uuid.New())
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))

	current, err := f.alerts.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AlertStatusPending, current.Status)
}

func TestService_Create(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alert, err := f.service.Create(ctx, f.patient, &model.CreateAlertRequest{
		PatientID: f.patient.ID,
		Type:      model.AlertTypeEmergency,
		Severity:  model.SeverityCritical,
		Title:     "Chest pain",
	})
	require.NoError(t, err)
	assert.Equal(t, model.AlertStatusPending, alert.Status)
	assert.Equal(t, f.patient.ID, *alert.CreatedBy)
	require.Len(t, f.alerts.Events(), 1)
	assert.Equal(t, model.EventAlertCreated, f.alerts.Events()[0].EventType)

	_, err = f.service.Create(ctx, f.patient, &model.CreateAlertRequest{
		PatientID: f.patient.ID,
		Type:      model.AlertTypeVitalBreach,
		Severity:  model.SeverityHigh,
		Title:     "Feeling unwell",
	})
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

	_, err = f.service.Create(ctx, f.patient, &model.CreateAlertRequest{
		PatientID: uuid.New(),
		Type:      model.AlertTypeEmergency,
		Severity:  model.SeverityCritical,
		Title:     "Not me",
	})
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

	_, err = f.service.Create(ctx, f.doctor, &model.CreateAlertRequest{
		PatientID: f.patient.ID,
		Type:      model.AlertTypeMedicationReminder,
		Severity:  "urgent",
		Title:     "Antibiotics",
	})
	assert.True(t, apperrors.IsKind(err, apperrors.KindBadRequest))

	_, err = f.service.Create(ctx, f.admin, &model.CreateAlertRequest{
		PatientID: uuid.New(),
		Type:      model.AlertTypeSystem,
		Severity:  model.SeverityLow,
		Title:     "Band offline",
	})
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestService_ListScoping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, model.AlertStatusPending)
	f.seed(t, model.AlertStatusResolved)

	alerts, err := f.service.List(ctx, f.patient, model.AlertFilter{})
	require.NoError(t, err)
	assert.Len(t, alerts, 2)

	pending := model.AlertStatusPending
	alerts, err = f.service.List(ctx, f.admin, model.AlertFilter{Status: &pending})
	require.NoError(t, err)
	assert.Len(t, alerts, 1)

	stranger := uuid.New()
	alerts, err = f.service.List(ctx, model.CurrentUser{ID: stranger, Role: model.RolePatient}, model.AlertFilter{})
	require.NoError(t, err)
	assert.NotNil(t, alerts)
	assert.Empty(t, alerts)
}
