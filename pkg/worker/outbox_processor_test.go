package worker

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
	"github.com/jwalitptl/postop-monitor/pkg/logger"
	"github.com/jwalitptl/postop-monitor/pkg/metrics"
)

type handlerFunc func(ctx context.Context, event *model.OutboxEvent) error

func (f handlerFunc) Handle(ctx context.Context, event *model.OutboxEvent) error {
	return f(ctx, event)
}

func pendingEvent() *model.OutboxEvent {
	return &model.OutboxEvent{
		ID:        uuid.New(),
		EventType: model.EventAlertCreated,
		Payload:   []byte(`{}`),
		Status:    model.OutboxStatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

func testConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		BatchSize:     10,
		PollInterval:  10 * time.Millisecond,
		RetryAttempts: 2,
		RetryDelay:    time.Millisecond,
		MaxRetries:    2,
	}
}

func TestNewOutboxProcessor_ValidatesConfig(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 0
	_, err := NewOutboxProcessor(repotest.NewOutbox(), nil, cfg, logger.Nop(), metrics.NewNop())
	assert.Error(t, err)

	_, err = NewOutboxProcessor(repotest.NewOutbox(), nil, testConfig(), logger.Nop(), metrics.NewNop())
	assert.NoError(t, err)
}

func TestProcessEvents_Delivers(t *testing.T) {
	a, b := pendingEvent(), pendingEvent()
	repo := repotest.NewOutbox(a, b)

	var handled []uuid.UUID
	p, err := NewOutboxProcessor(repo, handlerFunc(func(_ context.Context, e *model.OutboxEvent) error {
		handled = append(handled, e.ID)
		return nil
	}), testConfig(), logger.Nop(), metrics.NewNop())
	require.NoError(t, err)

	n, err := p.ProcessEvents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []uuid.UUID{a.ID, b.ID}, handled)
	assert.Equal(t, model.OutboxStatusProcessed, repo.Get(a.ID).Status)
	assert.NotNil(t, repo.Get(b.ID).ProcessedAt)

	n, err = p.ProcessEvents(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProcessEvents_RetriesThenFails(t *testing.T) {
	e := pendingEvent()
	repo := repotest.NewOutbox(e)

	calls := 0
	p, err := NewOutboxProcessor(repo, handlerFunc(func(context.Context, *model.OutboxEvent) error {
		calls++
		return errors.New("redis unavailable")
	}), testConfig(), logger.Nop(), metrics.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	// First poll: two attempts, event stays pending with one recorded failure
	n, err := p.ProcessEvents(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 2, calls)
	got := repo.Get(e.ID)
	assert.Equal(t, model.OutboxStatusPending, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "redis unavailable", *got.ErrorMessage)

	// Second poll exhausts MaxRetries
	_, err = p.ProcessEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.OutboxStatusFailed, repo.Get(e.ID).Status)

	_, err = p.ProcessEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, calls)
}

func TestProcessEvents_RecoversOnRetry(t *testing.T) {
	e := pendingEvent()
	repo := repotest.NewOutbox(e)

	calls := 0
	p, err := NewOutboxProcessor(repo, handlerFunc(func(context.Context, *model.OutboxEvent) error {
		calls++
		if calls == 1 {
			return errors.New("transient")
		}
		return nil
	}), testConfig(), logger.Nop(), metrics.NewNop())
	require.NoError(t, err)

	n, err := p.ProcessEvents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, model.OutboxStatusProcessed, repo.Get(e.ID).Status)
}

func TestOutboxCleanup(t *testing.T) {
	now := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	old := now.Add(-8 * 24 * time.Hour)
	recent := now.Add(-time.Hour)

	oldProcessed := pendingEvent()
	oldProcessed.Status = model.OutboxStatusProcessed
	oldProcessed.ProcessedAt = &old

	recentProcessed := pendingEvent()
	recentProcessed.Status = model.OutboxStatusProcessed
	recentProcessed.ProcessedAt = &recent

	failed := pendingEvent()
	failed.Status = model.OutboxStatusFailed

	repo := repotest.NewOutbox(oldProcessed, recentProcessed, failed)
	w := NewOutboxCleanupWorker(repo, 7*24*time.Hour, time.Hour, logger.Nop())

	rows, err := w.Cleanup(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)
	assert.Nil(t, repo.Get(oldProcessed.ID))
	assert.NotNil(t, repo.Get(recentProcessed.ID))
	assert.NotNil(t, repo.Get(failed.ID))
}
