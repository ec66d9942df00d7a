package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jwalitptl/postop-monitor/internal/model"
	"github.com/jwalitptl/postop-monitor/internal/repository"
	"github.com/jwalitptl/postop-monitor/pkg/logger"
	"github.com/jwalitptl/postop-monitor/pkg/metrics"
)

type EscalatorConfig struct {
	After      time.Duration
	Interval   time.Duration
	Severities []model.Severity
	BatchSize  int
}

// Escalator moves alerts that stayed pending too long to escalated. These
// are system escalations: no actor is recorded.
type Escalator struct {
	repo    repository.AlertRepository
	config  EscalatorConfig
	now     func() time.Time
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewEscalator(repo repository.AlertRepository, config EscalatorConfig, logger *logger.Logger, metrics *metrics.Metrics) *Escalator {
	if len(config.Severities) == 0 {
		config.Severities = []model.Severity{model.SeverityCritical}
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	return &Escalator{
		repo:    repo,
		config:  config,
		now:     time.Now,
		logger:  logger,
		metrics: metrics,
	}
}

// WithClock replaces the escalator's time source
func (e *Escalator) WithClock(now func() time.Time) *Escalator {
	e.now = now
	return e
}

func (e *Escalator) Start(ctx context.Context) {
	ticker := time.NewTicker(e.config.Interval)
	defer ticker.Stop()

	e.logger.Info("Starting escalation sweep", "after", e.config.After.String())

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Shutting down escalation sweep")
			return
		case <-ticker.C:
			if _, err := e.Sweep(ctx); err != nil {
				e.logger.Error(err, "Escalation sweep failed")
			}
		}
	}
}

// Sweep escalates every eligible alert and returns how many were escalated.
// Failures on single alerts are logged and skipped.
func (e *Escalator) Sweep(ctx context.Context) (int, error) {
	now := e.now().UTC()

	candidates, err := e.repo.ListEscalationCandidates(ctx, now.Add(-e.config.After), e.config.Severities, e.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list escalation candidates: %w", err)
	}

	reason := fmt.Sprintf("not acknowledged within %s", e.config.After)
	escalated := 0
	for _, a := range candidates {
		_, err := e.repo.Transition(ctx, model.AlertTransition{
			AlertID: a.ID,
			From:    []model.AlertStatus{model.AlertStatusPending},
			To:      model.AlertStatusEscalated,
			At:      now,
			Reason:  &reason,
		}, model.EventAlertEscalated)
		if err != nil {
			if errors.Is(err, repository.ErrStaleTransition) {
				continue
			}
			e.logger.Error(err, "Failed to escalate alert", "alert_id", a.ID.String())
			continue
		}

		escalated++
		e.metrics.AlertsEscalated.Inc()
		e.logger.Warn("Alert escalated",
			"alert_id", a.ID.String(),
			"patient_id", a.PatientID.String(),
			"age", now.Sub(a.CreatedAt).String())
	}
	return escalated, nil
}
