package alert

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/postop-monitor/internal/model"
	"github.com/jwalitptl/postop-monitor/internal/repository"
	"github.com/jwalitptl/postop-monitor/internal/service/access"
	apperrors "github.com/jwalitptl/postop-monitor/pkg/errors"
	"github.com/jwalitptl/postop-monitor/pkg/logger"
)

// allowedFrom lists the statuses each target status may be entered from
var allowedFrom = map[model.AlertStatus][]model.AlertStatus{
	model.AlertStatusAcknowledged: {model.AlertStatusPending},
	model.AlertStatusResolved:     {model.AlertStatusPending, model.AlertStatusAcknowledged, model.AlertStatusEscalated},
	model.AlertStatusEscalated:    {model.AlertStatusPending, model.AlertStatusAcknowledged},
}

// CanTransition reports whether an alert in from may move to to
func CanTransition(from, to model.AlertStatus) bool {
	for _, s := range allowedFrom[to] {
		if s == from {
			return true
		}
	}
	return false
}

// Service implements the alert lifecycle for API callers
type Service struct {
	repo   repository.AlertRepository
	policy *access.Policy
	now    func() time.Time
	logger *logger.Logger
}

func NewService(repo repository.AlertRepository, policy *access.Policy, logger *logger.Logger) *Service {
	return &Service{
		repo:   repo,
		policy: policy,
		now:    time.Now,
		logger: logger,
	}
}

// WithClock replaces the service's time source
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) List(ctx context.Context, user model.CurrentUser, filter model.AlertFilter) ([]*model.Alert, error) {
	scoped, err := s.policy.ScopeAlerts(ctx, user, filter)
	if err != nil {
		return nil, err
	}

	alerts, err := s.repo.List(ctx, scoped)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if alerts == nil {
		alerts = []*model.Alert{}
	}
	return alerts, nil
}

func (s *Service) Get(ctx context.Context, user model.CurrentUser, id uuid.UUID) (*model.Alert, error) {
	alert, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("alert", err)
		}
		return nil, apperrors.Internal(err)
	}

	if err := s.policy.Authorize(ctx, user, alert.PatientID); err != nil {
		return nil, err
	}
	return alert, nil
}

// Create raises a manual alert. Patients may only raise emergencies for
// themselves; doctors and admins any type for patients they can see.
func (s *Service) Create(ctx context.Context, user model.CurrentUser, req *model.CreateAlertRequest) (*model.Alert, error) {
	if !req.Type.Valid() {
		return nil, apperrors.BadRequest("invalid alert type", nil)
	}
	if !req.Severity.Valid() {
		return nil, apperrors.BadRequest("invalid severity", nil)
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, apperrors.BadRequest("title is required", nil)
	}
	if user.Role == model.RolePatient && req.Type != model.AlertTypeEmergency {
		return nil, apperrors.Forbidden("patients may only raise emergency alerts")
	}
	if err := s.policy.Authorize(ctx, user, req.PatientID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	actor := user.ID
	alert := &model.Alert{
		Base: model.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		PatientID: req.PatientID,
		Type:      req.Type,
		Severity:  req.Severity,
		Status:    model.AlertStatusPending,
		Title:     strings.TrimSpace(req.Title),
		Message:   req.Message,
		CreatedBy: &actor,
	}
	if req.Details != nil {
		alert.Details = *req.Details
	}

	event, err := model.NewAlertEvent(model.EventAlertCreated, alert, now)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if err := s.repo.CreateWithEvent(ctx, alert, event); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to create alert: %w", err))
	}

	s.logger.Info("Manual alert created",
		"alert_id", alert.ID.String(),
		"patient_id", alert.PatientID.String(),
		"created_by", actor.String())
	return alert, nil
}

func (s *Service) Acknowledge(ctx context.Context, user model.CurrentUser, id uuid.UUID) (*model.Alert, error) {
	return s.transition(ctx, user, id, model.AlertStatusAcknowledged, nil, nil, "")
}

func (s *Service) Resolve(ctx context.Context, user model.CurrentUser, id uuid.UUID, notes string) (*model.Alert, error) {
	return s.transition(ctx, user, id, model.AlertStatusResolved, optional(notes), nil, "")
}

func (s *Service) Escalate(ctx context.Context, user model.CurrentUser, id uuid.UUID, reason string) (*model.Alert, error) {
	return s.transition(ctx, user, id, model.AlertStatusEscalated, nil, optional(reason), model.EventAlertEscalated)
}

func (s *Service) transition(ctx context.Context, user model.CurrentUser, id uuid.UUID, to model.AlertStatus, notes, reason *string, eventType string) (*model.Alert, error) {
	if !access.CanManageAlerts(user) {
		return nil, apperrors.Forbidden("only clinicians may change alert status")
	}

	current, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(current.Status, to) {
		return nil, apperrors.Conflict(fmt.Sprintf("cannot move alert from %s to %s", current.Status, to), nil)
	}

	actor := user.ID
	updated, err := s.repo.Transition(ctx, model.AlertTransition{
		AlertID: id,
		From:    allowedFrom[to],
		To:      to,
		ActorID: &actor,
		At:      s.now().UTC(),
		Notes:   notes,
		Reason:  reason,
	}, eventType)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.NotFound("alert", err)
		case errors.Is(err, repository.ErrStaleTransition):
			return nil, apperrors.Conflict("alert status changed concurrently", err)
		default:
			return nil, apperrors.Internal(err)
		}
	}

	s.logger.Info("Alert status changed",
		"alert_id", id.String(),
		"from", string(current.Status),
		"to", string(to),
		"actor", actor.String())
	return updated, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
