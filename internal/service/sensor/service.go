package sensor

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/postop-monitor/internal/model"
	"github.com/jwalitptl/postop-monitor/internal/repository"
	"github.com/jwalitptl/postop-monitor/internal/service/access"
	"github.com/jwalitptl/postop-monitor/internal/service/ingest"
	"github.com/jwalitptl/postop-monitor/internal/vitals"
	apperrors "github.com/jwalitptl/postop-monitor/pkg/errors"
	"github.com/jwalitptl/postop-monitor/pkg/logger"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Processor runs a reading through storage and alerting
type Processor interface {
	Process(ctx context.Context, patientID uuid.UUID, reading *model.VitalsReading) (*ingest.Result, error)
}

// DataQuery selects stored readings. Zero times default to the last 24h.
type DataQuery struct {
	From  *time.Time
	To    *time.Time
	Limit int
}

type Service struct {
	vitals   repository.VitalsRepository
	alerts   repository.AlertRepository
	policy   *access.Policy
	pipeline Processor
	now      func() time.Time
	logger   *logger.Logger
}

func NewService(
	vitals repository.VitalsRepository,
	alerts repository.AlertRepository,
	policy *access.Policy,
	pipeline Processor,
	logger *logger.Logger,
) *Service {
	return &Service{
		vitals:   vitals,
		alerts:   alerts,
		policy:   policy,
		pipeline: pipeline,
		now:      time.Now,
		logger:   logger,
	}
}

// WithClock replaces the service's time source
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Data returns readings for patientID in the window, newest first
func (s *Service) Data(ctx context.Context, user model.CurrentUser, patientID uuid.UUID, q DataQuery) ([]*model.VitalsReading, error) {
	if err := s.policy.Authorize(ctx, user, patientID); err != nil {
		return nil, err
	}

	end := s.now().UTC()
	if q.To != nil {
		end = *q.To
	}
	start := end.Add(-24 * time.Hour)
	if q.From != nil {
		start = *q.From
	}
	if start.After(end) {
		return nil, apperrors.BadRequest("from must not be after to", nil)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	readings, err := s.vitals.Range(ctx, patientID, start, end, limit)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if readings == nil {
		readings = []*model.VitalsReading{}
	}
	return readings, nil
}

// Latest returns the newest reading, NotFound when the patient has none
func (s *Service) Latest(ctx context.Context, user model.CurrentUser, patientID uuid.UUID) (*model.VitalsReading, error) {
	if err := s.policy.Authorize(ctx, user, patientID); err != nil {
		return nil, err
	}

	r, err := s.vitals.Latest(ctx, patientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("vitals reading", err)
		}
		return nil, apperrors.Internal(err)
	}
	return r, nil
}

func (s *Service) Analytics(ctx context.Context, user model.CurrentUser, patientID uuid.UUID, period string) (*model.VitalsAnalytics, error) {
	name, length, err := vitals.ParsePeriod(period)
	if err != nil {
		return nil, apperrors.BadRequest(err.Error(), err)
	}
	if err := s.policy.Authorize(ctx, user, patientID); err != nil {
		return nil, err
	}

	end := s.now().UTC()
	start := end.Add(-length)

	summary, err := s.vitals.Summarize(ctx, patientID, start, end)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	counts, err := s.alerts.CountBySeverity(ctx, patientID, start, end)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	return &model.VitalsAnalytics{
		PatientID:   patientID,
		Period:      name,
		Window:      model.TimeRange{Start: start, End: end},
		Readings:    summary.Readings,
		Parameters:  vitals.Stats(summary.Parameters),
		AlertCounts: counts,
	}, nil
}

// Dashboard combines the latest reading, 24h statistics and open alerts
func (s *Service) Dashboard(ctx context.Context, user model.CurrentUser, patientID uuid.UUID) (*model.Dashboard, error) {
	if err := s.policy.Authorize(ctx, user, patientID); err != nil {
		return nil, err
	}

	d := &model.Dashboard{PatientID: patientID}

	latest, err := s.vitals.Latest(ctx, patientID)
	switch {
	case err == nil:
		d.Latest = latest
	case !errors.Is(err, repository.ErrNotFound):
		return nil, apperrors.Internal(err)
	}

	end := s.now().UTC()
	summary, err := s.vitals.Summarize(ctx, patientID, end.Add(-24*time.Hour), end)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	d.Last24h = vitals.Stats(summary.Parameters)

	d.OpenAlerts, d.Critical, err = s.alerts.CountOpen(ctx, patientID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return d, nil
}

// SubmitManual stores a reading entered by hand and evaluates it like any
// device reading
func (s *Service) SubmitManual(ctx context.Context, user model.CurrentUser, req *model.ManualReadingRequest) (*ingest.Result, error) {
	if !req.HasVitals() {
		return nil, apperrors.BadRequest("at least one vital sign is required", nil)
	}
	if err := s.policy.Authorize(ctx, user, req.PatientID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	recorded := now
	if req.RecordedAt != nil {
		if req.RecordedAt.After(now.Add(5 * time.Minute)) {
			return nil, apperrors.BadRequest("recorded_at is in the future", nil)
		}
		recorded = req.RecordedAt.UTC()
	}
	deviceID := req.DeviceID
	if deviceID == "" {
		deviceID = "manual"
	}

	result, err := s.pipeline.Process(ctx, req.PatientID, &model.VitalsReading{
		DeviceID:    deviceID,
		RecordedAt:  recorded,
		HeartRate:   req.HeartRate,
		Systolic:    req.Systolic,
		Diastolic:   req.Diastolic,
		Temperature: req.Temperature,
		SpO2:        req.SpO2,
		Steps:       req.Steps,
		Source:      model.SourceManual,
	})
	if result == nil {
		return nil, apperrors.Internal(err)
	}
	if err != nil {
		s.logger.Error(err, "Manual reading stored with alert errors", "patient_id", req.PatientID.String())
	}
	return result, nil
}
