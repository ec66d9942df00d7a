package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/postop-monitor/internal/model"
	"github.com/jwalitptl/postop-monitor/internal/repository"
)

const vitalsColumns = `id, patient_id, device_id, recorded_at, heart_rate, systolic,
	diastolic, temperature, spo2, steps, source, raw, created_at`

type vitalsRepository struct {
	BaseRepository
	now func() time.Time
}

func NewVitalsRepository(base BaseRepository) repository.VitalsRepository {
	return &vitalsRepository{BaseRepository: base, now: time.Now}
}

// Append stores a copy of reading with a fresh id
func (r *vitalsRepository) Append(ctx context.Context, reading *model.VitalsReading) (*model.VitalsReading, error) {
	query := `
		INSERT INTO vitals_readings (` + vitalsColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	stored := *reading
	stored.ID = uuid.New()
	stored.CreatedAt = r.now().UTC()
	if stored.RecordedAt.IsZero() {
		stored.RecordedAt = stored.CreatedAt
	}

	_, err := r.db.ExecContext(ctx, query,
		stored.ID,
		stored.PatientID,
		stored.DeviceID,
		stored.RecordedAt,
		stored.HeartRate,
		stored.Systolic,
		stored.Diastolic,
		stored.Temperature,
		stored.SpO2,
		stored.Steps,
		stored.Source,
		stored.Raw,
		stored.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to append vitals reading: %w", err)
	}
	return &stored, nil
}

func (r *vitalsRepository) Latest(ctx context.Context, patientID uuid.UUID) (*model.VitalsReading, error) {
	query := `SELECT ` + vitalsColumns + `
		FROM vitals_readings
		WHERE patient_id = $1
		ORDER BY recorded_at DESC
		LIMIT 1`

	var reading model.VitalsReading
	if err := r.db.GetContext(ctx, &reading, query, patientID); err != nil {
		return nil, fmt.Errorf("failed to get latest reading: %w", notFound(err))
	}
	return &reading, nil
}

// Range returns readings recorded within [start, end], newest first
func (r *vitalsRepository) Range(ctx context.Context, patientID uuid.UUID, start, end time.Time, limit int) ([]*model.VitalsReading, error) {
	query := `SELECT ` + vitalsColumns + `
		FROM vitals_readings
		WHERE patient_id = $1 AND recorded_at >= $2 AND recorded_at <= $3
		ORDER BY recorded_at DESC
		LIMIT $4`

	var readings []*model.VitalsReading
	if err := r.db.SelectContext(ctx, &readings, query, patientID, start, end, limit); err != nil {
		return nil, fmt.Errorf("failed to list readings: %w", err)
	}
	return readings, nil
}

// Summarize aggregates the window in the database. Samples of each parameter
// are numbered in recording order so the halves match the in-memory split.
func (r *vitalsRepository) Summarize(ctx context.Context, patientID uuid.UUID, start, end time.Time) (*model.WindowSummary, error) {
	countQuery := `
		SELECT COUNT(*)
		FROM vitals_readings
		WHERE patient_id = $1 AND recorded_at >= $2 AND recorded_at <= $3`

	summary := &model.WindowSummary{}
	if err := r.db.GetContext(ctx, &summary.Readings, countQuery, patientID, start, end); err != nil {
		return nil, fmt.Errorf("failed to count readings: %w", err)
	}
	if summary.Readings == 0 {
		return summary, nil
	}

	query := `
		WITH samples AS (
			SELECT p.parameter, p.value, v.recorded_at, v.id
			FROM vitals_readings v
			CROSS JOIN LATERAL (VALUES
				('heart_rate', v.heart_rate),
				('systolic', v.systolic),
				('diastolic', v.diastolic),
				('temperature', v.temperature),
				('spo2', v.spo2),
				('steps', v.steps::double precision)
			) AS p(parameter, value)
			WHERE v.patient_id = $1 AND v.recorded_at >= $2 AND v.recorded_at <= $3
			AND p.value IS NOT NULL
		), ranked AS (
			SELECT parameter, value,
				row_number() OVER (PARTITION BY parameter ORDER BY recorded_at, id) AS rn,
				count(*) OVER (PARTITION BY parameter) AS n
			FROM samples
		)
		SELECT parameter,
			MIN(value) AS min,
			MAX(value) AS max,
			AVG(value) AS mean,
			COUNT(*) AS count,
			AVG(value) FILTER (WHERE rn <= n / 2) AS first_mean,
			AVG(value) FILTER (WHERE rn > n / 2) AS second_mean
		FROM ranked
		GROUP BY parameter
		ORDER BY parameter`

	if err := r.db.SelectContext(ctx, &summary.Parameters, query, patientID, start, end); err != nil {
		return nil, fmt.Errorf("failed to aggregate readings: %w", err)
	}
	return summary, nil
}
