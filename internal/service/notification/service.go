package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jwalitptl/postop-monitor/internal/email"
	"github.com/jwalitptl/postop-monitor/internal/model"
	"github.com/jwalitptl/postop-monitor/internal/repository"
	"github.com/jwalitptl/postop-monitor/pkg/logger"
	"github.com/jwalitptl/postop-monitor/pkg/messaging"
)

// DefaultChannel is the pub/sub channel alert events are published on
const DefaultChannel = "alerts"

// Dispatcher delivers outbox events. Every event is published to the
// broker; critical alert events are also emailed to the patient's assigned
// doctor.
type Dispatcher struct {
	publisher messaging.Publisher
	channel   string
	users     repository.UserRepository
	emailSvc  email.Service
	logger    *logger.Logger
}

func NewDispatcher(publisher messaging.Publisher, channel string, users repository.UserRepository, emailSvc email.Service, logger *logger.Logger) *Dispatcher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Dispatcher{
		publisher: publisher,
		channel:   channel,
		users:     users,
		emailSvc:  emailSvc,
		logger:    logger,
	}
}

// Handle publishes event. A publish failure is returned so the event is
// retried; email failures are only logged, since a retry would publish the
// event again.
func (d *Dispatcher) Handle(ctx context.Context, event *model.OutboxEvent) error {
	msg := messaging.Message{
		Type:    event.EventType,
		Payload: event.Payload,
	}
	if err := d.publisher.Publish(ctx, d.channel, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.EventType, err)
	}

	switch event.EventType {
	case model.EventAlertCreated, model.EventAlertEscalated:
	default:
		return nil
	}

	var payload model.AlertEventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		d.logger.Error(err, "Malformed alert event payload", "event_id", event.ID.String())
		return nil
	}
	if payload.Severity != model.SeverityCritical {
		return nil
	}

	if err := d.emailDoctor(ctx, event.EventType, &payload); err != nil {
		d.logger.Error(err, "Failed to email assigned doctor",
			"event_id", event.ID.String(),
			"alert_id", payload.AlertID.String())
	}
	return nil
}

func (d *Dispatcher) emailDoctor(ctx context.Context, eventType string, p *model.AlertEventPayload) error {
	patient, err := d.users.Get(ctx, p.PatientID)
	if err != nil {
		return fmt.Errorf("failed to load patient: %w", err)
	}
	if patient.AssignedDoctorID == nil {
		return nil
	}

	doctor, err := d.users.Get(ctx, *patient.AssignedDoctorID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to load doctor: %w", err)
	}

	subject, body := alertEmail(eventType, patient, p)
	return d.emailSvc.SendCustom(ctx, doctor.Email, subject, body)
}

func alertEmail(eventType string, patient *model.User, p *model.AlertEventPayload) (string, string) {
	prefix := "Critical alert"
	if eventType == model.EventAlertEscalated {
		prefix = "Escalated alert"
	}
	name := patient.Name
	if name == "" {
		name = patient.ID.String()
	}

	subject := fmt.Sprintf("%s: %s (%s)", prefix, p.Title, name)

	var b strings.Builder
	fmt.Fprintf(&b, "%s for patient %s\n\n", prefix, name)
	fmt.Fprintf(&b, "%s\n", p.Title)
	if p.Message != "" {
		fmt.Fprintf(&b, "%s\n", p.Message)
	}
	fmt.Fprintf(&b, "\nStatus: %s\nRaised: %s\nAlert ID: %s\n", p.Status, p.At.Format("2006-01-02 15:04 MST"), p.AlertID)
	return subject, b.String()
}
