package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/postop-monitor/internal/model"
	"github.com/jwalitptl/postop-monitor/internal/repository"
	"github.com/jwalitptl/postop-monitor/internal/vitals"
	"github.com/jwalitptl/postop-monitor/pkg/logger"
	"github.com/jwalitptl/postop-monitor/pkg/metrics"
)

// Outcome of submitting a candidate
type Outcome string

const (
	OutcomeCreated    Outcome = "created"
	OutcomeSuppressed Outcome = "suppressed"
)

// DefaultDedupWindow is how long an open alert suppresses repeats
const DefaultDedupWindow = 60 * time.Minute

// Writer persists candidate alerts, discarding repeats of an alert that is
// still pending or acknowledged for the same patient, type and parameter
// within the dedup window.
type Writer struct {
	repo    repository.AlertRepository
	window  time.Duration
	now     func() time.Time
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewWriter(repo repository.AlertRepository, window time.Duration, logger *logger.Logger, metrics *metrics.Metrics) *Writer {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &Writer{
		repo:    repo,
		window:  window,
		now:     time.Now,
		logger:  logger,
		metrics: metrics,
	}
}

// WithClock replaces the writer's time source
func (w *Writer) WithClock(now func() time.Time) *Writer {
	w.now = now
	return w
}

// Submit writes c for patientID unless an open duplicate exists. On
// suppression the existing alert is returned.
func (w *Writer) Submit(ctx context.Context, patientID uuid.UUID, readingID *uuid.UUID, c vitals.Candidate) (Outcome, *model.Alert, error) {
	now := w.now().UTC()

	existing, err := w.repo.FindRecentOpen(ctx, patientID, c.Type, c.Details.Parameter, now.Add(-w.window))
	if err != nil {
		return "", nil, fmt.Errorf("failed to check for duplicate alert: %w", err)
	}
	if existing != nil {
		w.metrics.AlertsSuppressed.WithLabelValues(string(c.Type)).Inc()
		w.logger.Debug("Alert suppressed",
			"patient_id", patientID.String(),
			"parameter", c.Details.Parameter,
			"existing_alert_id", existing.ID.String())
		return OutcomeSuppressed, existing, nil
	}

	alert := &model.Alert{
		Base: model.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		PatientID: patientID,
		ReadingID: readingID,
		Type:      c.Type,
		Severity:  c.Severity,
		Status:    model.AlertStatusPending,
		Title:     c.Title,
		Message:   c.Message,
		Details:   c.Details,
	}

	event, err := model.NewAlertEvent(model.EventAlertCreated, alert, now)
	if err != nil {
		return "", nil, fmt.Errorf("failed to build alert event: %w", err)
	}
	if err := w.repo.CreateWithEvent(ctx, alert, event); err != nil {
		return "", nil, fmt.Errorf("failed to create alert: %w", err)
	}

	w.metrics.AlertsCreated.WithLabelValues(string(alert.Type), string(alert.Severity)).Inc()
	w.logger.Info("Alert created",
		"alert_id", alert.ID.String(),
		"patient_id", patientID.String(),
		"severity", string(alert.Severity),
		"title", alert.Title)

	return OutcomeCreated, alert, nil
}
