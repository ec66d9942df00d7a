package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/postop-monitor/internal/model"
	"github.com/jwalitptl/postop-monitor/internal/repository"
	"github.com/jwalitptl/postop-monitor/internal/service/alert"
	"github.com/jwalitptl/postop-monitor/internal/vitals"
	"github.com/jwalitptl/postop-monitor/pkg/logger"
	"github.com/jwalitptl/postop-monitor/pkg/metrics"
)

// AlertSubmitter writes candidate alerts with deduplication
type AlertSubmitter interface {
	Submit(ctx context.Context, patientID uuid.UUID, readingID *uuid.UUID, c vitals.Candidate) (alert.Outcome, *model.Alert, error)
}

// Result summarises one processed reading
type Result struct {
	Reading    *model.VitalsReading
	Created    []*model.Alert
	Suppressed int
}

// Pipeline stores a reading, evaluates it and hands every candidate to the
// alert writer. The scheduler and manual submissions share it.
type Pipeline struct {
	store     repository.VitalsRepository
	evaluator *vitals.Evaluator
	alerts    AlertSubmitter
	logger    *logger.Logger
	metrics   *metrics.Metrics
}

func NewPipeline(store repository.VitalsRepository, evaluator *vitals.Evaluator, alerts AlertSubmitter, logger *logger.Logger, metrics *metrics.Metrics) *Pipeline {
	return &Pipeline{
		store:     store,
		evaluator: evaluator,
		alerts:    alerts,
		logger:    logger,
		metrics:   metrics,
	}
}

// Process persists reading for patientID. A reading that fails to store is
// not evaluated. Alert write failures are logged and the remaining
// candidates are still submitted; the first such error is returned.
func (p *Pipeline) Process(ctx context.Context, patientID uuid.UUID, reading *model.VitalsReading) (*Result, error) {
	reading.PatientID = patientID

	stored, err := p.store.Append(ctx, reading)
	if err != nil {
		p.metrics.ReadingsFailed.WithLabelValues("store").Inc()
		return nil, fmt.Errorf("failed to store reading: %w", err)
	}
	p.metrics.ReadingsStored.WithLabelValues(string(stored.Source)).Inc()

	result := &Result{Reading: stored}
	readingID := stored.ID

	var firstErr error
	for _, c := range p.evaluator.Evaluate(stored) {
		outcome, a, err := p.alerts.Submit(ctx, patientID, &readingID, c)
		if err != nil {
			p.metrics.ReadingsFailed.WithLabelValues("alert").Inc()
			p.logger.Error(err, "Failed to write alert",
				"patient_id", patientID.String(),
				"reading_id", readingID.String(),
				"parameter", c.Details.Parameter)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		if outcome == alert.OutcomeCreated {
			result.Created = append(result.Created, a)
		} else {
			result.Suppressed++
		}
	}

	return result, firstErr
}
