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
	"github.com/jwalitptl/postop-monitor/pkg/logger"
	"github.com/jwalitptl/postop-monitor/pkg/metrics"
)

func TestEscalator_Sweep(t *testing.T) {
	repo := repotest.NewAlerts()
	clk := newClock()
	ctx := context.Background()

	add := func(sev model.Severity, status model.AlertStatus, age time.Duration) *model.Alert {
		created := clk.t.Add(-age)
		a := &model.Alert{
			Base:      model.Base{ID: uuid.New(), CreatedAt: created, UpdatedAt: created},
			PatientID: uuid.New(),
			Type:      model.AlertTypeVitalBreach,
			Severity:  sev,
			Status:    status,
		}
		require.NoError(t, repo.CreateWithEvent(ctx, a, nil))
		return a
	}

	stale := add(model.SeverityCritical, model.AlertStatusPending, 20*time.Minute)
	fresh := add(model.SeverityCritical, model.AlertStatusPending, 5*time.Minute)
	high := add(model.SeverityHigh, model.AlertStatusPending, time.Hour)
	acked := add(model.SeverityCritical, model.AlertStatusAcknowledged, time.Hour)

	e := NewEscalator(repo, EscalatorConfig{After: 15 * time.Minute, Interval: time.Minute}, logger.Nop(), metrics.NewNop()).
		WithClock(clk.Now)

	n, err := e.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := repo.Get(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AlertStatusEscalated, got.Status)
	assert.Nil(t, got.EscalatedBy)
	require.NotNil(t, got.EscalationReason)
	assert.Contains(t, *got.EscalationReason, "15m0s")

	for _, id := range []uuid.UUID{fresh.ID, high.ID, acked.ID} {
		a, err := repo.Get(ctx, id)
		require.NoError(t, err)
		assert.NotEqual(t, model.AlertStatusEscalated, a.Status)
	}

	events := repo.Events()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventAlertEscalated, events[0].EventType)

	// Nothing left to do on a second pass
	n, err = e.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestEscalator_StartStopsOnCancel(t *testing.T) {
	e := NewEscalator(repotest.NewAlerts(), EscalatorConfig{After: time.Minute, Interval: 10 * time.Millisecond}, logger.Nop(), metrics.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Start(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("escalator did not stop")
	}
}
