package alert

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/postop-monitor/internal/model"
	"github.com/jwalitptl/postop-monitor/internal/repository/repotest"
	"github.com/jwalitptl/postop-monitor/internal/vitals"
	"github.com/jwalitptl/postop-monitor/pkg/logger"
	"github.com/jwalitptl/postop-monitor/pkg/metrics"
)

type clock struct {
	t time.Time
}

func (c *clock) Now() time.Time { return c.t }

func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *clock {
	return &clock{t: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)}
}

func hrCandidate() vitals.Candidate {
	return vitals.NewEvaluator(vitals.DefaultThresholds()).Evaluate(&model.VitalsReading{
		HeartRate: model.Float64(135),
	})[0]
}

func TestWriter_HeartRateCritical(t *testing.T) {
	repo := repotest.NewAlerts()
	clk := newClock()
	w := NewWriter(repo, 0, logger.Nop(), metrics.NewNop()).WithClock(clk.Now)

	patientID := uuid.New()
	readingID := uuid.New()
	outcome, alert, err := w.Submit(context.Background(), patientID, &readingID, hrCandidate())
	require.NoError(t, err)

	assert.Equal(t, OutcomeCreated, outcome)
	assert.Equal(t, model.SeverityCritical, alert.Severity)
	assert.Equal(t, model.AlertStatusPending, alert.Status)
	assert.Equal(t, "High Heart Rate", alert.Title)
	assert.Equal(t, model.ParamHeartRate, alert.Details.Parameter)
	assert.Equal(t, &readingID, alert.ReadingID)
	assert.Equal(t, clk.t, alert.CreatedAt)

	events := repo.Events()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventAlertCreated, events[0].EventType)
	assert.Equal(t, model.OutboxStatusPending, events[0].Status)
}

func TestWriter_DedupWindow(t *testing.T) {
	repo := repotest.NewAlerts()
	clk := newClock()
	w := NewWriter(repo, 60*time.Minute, logger.Nop(), metrics.NewNop()).WithClock(clk.Now)
	ctx := context.Background()
	patientID := uuid.New()

	outcome, first, err := w.Submit(ctx, patientID, nil, hrCandidate())
	require.NoError(t, err)
	require.Equal(t, OutcomeCreated, outcome)

	// Repeats inside the window are suppressed
	for _, step := range []time.Duration{5 * time.Minute, 30 * time.Minute, 24 * time.Minute} {
		clk.Advance(step)
		outcome, existing, err := w.Submit(ctx, patientID, nil, hrCandidate())
		require.NoError(t, err)
		assert.Equal(t, OutcomeSuppressed, outcome)
		assert.Equal(t, first.ID, existing.ID)
	}
	assert.Len(t, repo.All(), 1)

	// exactly 60 minutes after the first alert a new one is accepted
	clk.Advance(time.Minute)
	outcome, second, err := w.Submit(ctx, patientID, nil, hrCandidate())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Len(t, repo.All(), 2)
	assert.Len(t, repo.Events(), 2)

	// the new alert opens its own window
	clk.Advance(59*time.Minute + 59*time.Second)
	outcome, _, err = w.Submit(ctx, patientID, nil, hrCandidate())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuppressed, outcome)
}

func TestWriter_DedupScope(t *testing.T) {
	repo := repotest.NewAlerts()
	clk := newClock()
	w := NewWriter(repo, time.Hour, logger.Nop(), metrics.NewNop()).WithClock(clk.Now)
	ctx := context.Background()
	patientID := uuid.New()

	_, _, err := w.Submit(ctx, patientID, nil, hrCandidate())
	require.NoError(t, err)

	// Another patient is unaffected
	outcome, _, err := w.Submit(ctx, uuid.New(), nil, hrCandidate())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)

	// Another parameter of the same type is unaffected
	temp := vitals.NewEvaluator(vitals.DefaultThresholds()).Evaluate(&model.VitalsReading{
		Temperature: model.Float64(102.5),
	})[0]
	outcome, _, err = w.Submit(ctx, patientID, nil, temp)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)
}

func TestWriter_ResolvedAlertDoesNotSuppress(t *testing.T) {
	repo := repotest.NewAlerts()
	clk := newClock()
	w := NewWriter(repo, time.Hour, logger.Nop(), metrics.NewNop()).WithClock(clk.Now)
	ctx := context.Background()
	patientID := uuid.New()

	_, first, err := w.Submit(ctx, patientID, nil, hrCandidate())
	require.NoError(t, err)

	_, err = repo.Transition(ctx, model.AlertTransition{
		AlertID: first.ID,
		From:    []model.AlertStatus{model.AlertStatusPending},
		To:      model.AlertStatusResolved,
		At:      clk.t,
	}, "")
	require.NoError(t, err)

	clk.Advance(time.Minute)
	outcome, _, err := w.Submit(ctx, patientID, nil, hrCandidate())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)
}

func TestWriter_RepositoryError(t *testing.T) {
	repo := repotest.NewAlerts()
	repo.Err = errors.New("connection refused")
	w := NewWriter(repo, time.Hour, logger.Nop(), metrics.NewNop())

	_, _, err := w.Submit(context.Background(), uuid.New(), nil, hrCandidate())
	assert.Error(t, err)
	assert.Empty(t, repo.All())
}
