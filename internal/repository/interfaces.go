package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/postop-monitor/internal/model"
)

var (
	// ErrNotFound is returned when a lookup matches no row
	ErrNotFound = errors.New("record not found")
	// ErrStaleTransition is returned when an alert is no longer in a status the
	// requested transition accepts
	ErrStaleTransition = errors.New("alert status changed")
)

// All repository interfaces in one file
type (
	// UserRepository reads the user directory. The pipeline never writes users.
	UserRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		ListPatients(ctx context.Context) ([]*model.User, error)
	}

	// VitalsRepository is the append-only vitals store
	VitalsRepository interface {
		Append(ctx context.Context, reading *model.VitalsReading) (*model.VitalsReading, error)
		Latest(ctx context.Context, patientID uuid.UUID) (*model.VitalsReading, error)
		Range(ctx context.Context, patientID uuid.UUID, start, end time.Time, limit int) ([]*model.VitalsReading, error)
		// Summarize aggregates every reading in [start, end] without a row cap
		Summarize(ctx context.Context, patientID uuid.UUID, start, end time.Time) (*model.WindowSummary, error)
	}

	AlertRepository interface {
		// CreateWithEvent persists alert and its outbox event atomically
		CreateWithEvent(ctx context.Context, alert *model.Alert, event *model.OutboxEvent) error
		Get(ctx context.Context, id uuid.UUID) (*model.Alert, error)
		List(ctx context.Context, filter model.AlertFilter) ([]*model.Alert, error)
		// FindRecentOpen returns the newest pending or acknowledged alert matching
		// patient, type and parameter created strictly after since, or nil.
		FindRecentOpen(ctx context.Context, patientID uuid.UUID, alertType model.AlertType, parameter string, since time.Time) (*model.Alert, error)
		// Transition applies t only when the alert is still in one of t.From.
		// A non-empty eventType also records an outbox event for the updated
		// alert in the same transaction.
		Transition(ctx context.Context, t model.AlertTransition, eventType string) (*model.Alert, error)
		ListEscalationCandidates(ctx context.Context, olderThan time.Time, severities []model.Severity, limit int) ([]*model.Alert, error)
		CountBySeverity(ctx context.Context, patientID uuid.UUID, start, end time.Time) (map[model.Severity]int, error)
		CountOpen(ctx context.Context, patientID uuid.UUID) (total int, critical int, err error)
	}

	OutboxRepository interface {
		GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, maxRetries int) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
