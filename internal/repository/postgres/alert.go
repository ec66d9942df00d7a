package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/postop-monitor/internal/model"
	"github.com/jwalitptl/postop-monitor/internal/repository"
)

const alertColumns = `id, patient_id, reading_id, type, severity, status, title, message,
	details, created_by, acknowledged_by, acknowledged_at, resolved_by, resolved_at,
	resolution_notes, escalated_by, escalated_at, escalation_reason, created_at, updated_at`

const defaultAlertLimit = 50

type alertRepository struct {
	BaseRepository
}

func NewAlertRepository(base BaseRepository) repository.AlertRepository {
	return &alertRepository{base}
}

func (r *alertRepository) CreateWithEvent(ctx context.Context, alert *model.Alert, event *model.OutboxEvent) error {
	query := `
		INSERT INTO alerts (
			id, patient_id, reading_id, type, severity, status, title, message,
			details, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, query,
			alert.ID,
			alert.PatientID,
			alert.ReadingID,
			alert.Type,
			alert.Severity,
			alert.Status,
			alert.Title,
			alert.Message,
			alert.Details,
			alert.CreatedBy,
			alert.CreatedAt,
			alert.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create alert: %w", err)
		}

		if event == nil {
			return nil
		}
		return insertOutboxEvent(ctx, tx, event)
	})
}

func (r *alertRepository) Get(ctx context.Context, id uuid.UUID) (*model.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = $1`

	var alert model.Alert
	if err := r.db.GetContext(ctx, &alert, query, id); err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", notFound(err))
	}
	return &alert, nil
}

func (r *alertRepository) List(ctx context.Context, filter model.AlertFilter) ([]*model.Alert, error) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.PatientID != nil {
		add("patient_id = $%d", *filter.PatientID)
	}
	if filter.DoctorID != nil {
		add("patient_id IN (SELECT id FROM users WHERE assigned_doctor_id = $%d)", *filter.DoctorID)
	}
	if filter.Status != nil {
		add("status = $%d", *filter.Status)
	}
	if filter.Severity != nil {
		add("severity = $%d", *filter.Severity)
	}
	if filter.Type != nil {
		add("type = $%d", *filter.Type)
	}
	if filter.Since != nil {
		add("created_at >= $%d", *filter.Since)
	}

	query := `SELECT ` + alertColumns + ` FROM alerts`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultAlertLimit
	}
	args = append(args, limit, filter.Offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	var alerts []*model.Alert
	if err := r.db.SelectContext(ctx, &alerts, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, nil
}

func (r *alertRepository) FindRecentOpen(ctx context.Context, patientID uuid.UUID, alertType model.AlertType, parameter string, since time.Time) (*model.Alert, error) {
	query := `SELECT ` + alertColumns + `
		FROM alerts
		WHERE patient_id = $1
		AND type = $2
		AND COALESCE(details->>'parameter', '') = $3
		AND status IN ('pending', 'acknowledged')
		AND created_at > $4
		ORDER BY created_at DESC
		LIMIT 1`

	var alert model.Alert
	err := r.db.GetContext(ctx, &alert, query, patientID, alertType, parameter, since)
	if err != nil {
		if errors.Is(notFound(err), repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find recent alert: %w", err)
	}
	return &alert, nil
}

func (r *alertRepository) Transition(ctx context.Context, t model.AlertTransition, eventType string) (*model.Alert, error) {
	from := make([]string, 0, len(t.From))
	for _, s := range t.From {
		from = append(from, string(s))
	}
	args := []interface{}{t.To, t.At, t.AlertID, pq.Array(from), t.ActorID}

	var stamp string
	switch t.To {
	case model.AlertStatusAcknowledged:
		stamp = "acknowledged_by = $5, acknowledged_at = $2"
	case model.AlertStatusResolved:
		stamp = "resolved_by = $5, resolved_at = $2, resolution_notes = $6"
		args = append(args, t.Notes)
	case model.AlertStatusEscalated:
		stamp = "escalated_by = $5, escalated_at = $2, escalation_reason = $6"
		args = append(args, t.Reason)
	default:
		return nil, fmt.Errorf("unsupported alert transition to %q", t.To)
	}

	query := `
		UPDATE alerts
		SET status = $1, updated_at = $2, ` + stamp + `
		WHERE id = $3 AND status = ANY($4)
		RETURNING ` + alertColumns

	var updated model.Alert
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &updated, query, args...)
		if err != nil {
			if !errors.Is(notFound(err), repository.ErrNotFound) {
				return fmt.Errorf("failed to update alert status: %w", err)
			}
			var exists bool
			if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM alerts WHERE id = $1)`, t.AlertID); err != nil {
				return fmt.Errorf("failed to check alert: %w", err)
			}
			if !exists {
				return repository.ErrNotFound
			}
			return repository.ErrStaleTransition
		}

		if eventType == "" {
			return nil
		}
		event, err := model.NewAlertEvent(eventType, &updated, t.At)
		if err != nil {
			return fmt.Errorf("failed to build outbox event: %w", err)
		}
		return insertOutboxEvent(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *alertRepository) ListEscalationCandidates(ctx context.Context, olderThan time.Time, severities []model.Severity, limit int) ([]*model.Alert, error) {
	sev := make([]string, 0, len(severities))
	for _, s := range severities {
		sev = append(sev, string(s))
	}

	query := `SELECT ` + alertColumns + `
		FROM alerts
		WHERE status = 'pending'
		AND severity = ANY($1)
		AND created_at <= $2
		ORDER BY created_at ASC
		LIMIT $3`

	var alerts []*model.Alert
	if err := r.db.SelectContext(ctx, &alerts, query, pq.Array(sev), olderThan, limit); err != nil {
		return nil, fmt.Errorf("failed to list escalation candidates: %w", err)
	}
	return alerts, nil
}

func (r *alertRepository) CountBySeverity(ctx context.Context, patientID uuid.UUID, start, end time.Time) (map[model.Severity]int, error) {
	query := `
		SELECT severity, COUNT(*) AS count
		FROM alerts
		WHERE patient_id = $1 AND created_at >= $2 AND created_at <= $3
		GROUP BY severity`

	var rows []struct {
		Severity model.Severity `db:"severity"`
		Count    int            `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, patientID, start, end); err != nil {
		return nil, fmt.Errorf("failed to count alerts: %w", err)
	}

	counts := make(map[model.Severity]int, len(model.Severities))
	for _, s := range model.Severities {
		counts[s] = 0
	}
	for _, row := range rows {
		counts[row.Severity] = row.Count
	}
	return counts, nil
}

func (r *alertRepository) CountOpen(ctx context.Context, patientID uuid.UUID) (int, int, error) {
	query := `
		SELECT COUNT(*) AS total,
			COUNT(*) FILTER (WHERE severity = 'critical') AS critical
		FROM alerts
		WHERE patient_id = $1 AND status <> 'resolved'`

	var row struct {
		Total    int `db:"total"`
		Critical int `db:"critical"`
	}
	if err := r.db.GetContext(ctx, &row, query, patientID); err != nil {
		return 0, 0, fmt.Errorf("failed to count open alerts: %w", err)
	}
	return row.Total, row.Critical, nil
}
