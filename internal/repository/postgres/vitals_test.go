package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/postop-monitor/internal/model"
	"github.com/jwalitptl/postop-monitor/internal/repository"
)

var vitalsCols = []string{"id", "patient_id", "device_id", "recorded_at", "heart_rate", "systolic",
	"diastolic", "temperature", "spo2", "steps", "source", "raw", "created_at"}

func TestVitalsAppend(t *testing.T) {
	base, mock := setupMockDB(t)
	repo := NewVitalsRepository(base)

	patientID := uuid.New()
	recorded := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	in := &model.VitalsReading{
		PatientID:  patientID,
		DeviceID:   "band-1",
		RecordedAt: recorded,
		HeartRate:  model.Float64(80),
		SpO2:       model.Float64(97),
		Source:     model.SourceMock,
	}

	mock.ExpectExec(`INSERT INTO vitals_readings`).
		WithArgs(sqlmock.AnyArg(), patientID, "band-1", recorded, 80.0, nil, nil, nil, 97.0, nil,
			"mock", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	got, err := repo.Append(context.Background(), in)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, got.ID)
	assert.Equal(t, uuid.Nil, in.ID, "input must not be mutated")
	assert.Equal(t, recorded, got.RecordedAt)
	assert.False(t, got.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVitalsAppend_Error(t *testing.T) {
	base, mock := setupMockDB(t)
	repo := NewVitalsRepository(base)

	mock.ExpectExec(`INSERT INTO vitals_readings`).WillReturnError(errors.New("connection reset"))

	_, err := repo.Append(context.Background(), &model.VitalsReading{PatientID: uuid.New()})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVitalsLatest(t *testing.T) {
	base, mock := setupMockDB(t)
	repo := NewVitalsRepository(base)

	patientID := uuid.New()
	id := uuid.New()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(vitalsCols).
		AddRow(id.String(), patientID.String(), "ch-9", now, 72.0, 118.0, 76.0, 98.4, 97.0, 12,
			"thingspeak", []byte(`{"channel_id":"9","entry_id":42}`), now)
	mock.ExpectQuery(`SELECT (.+) FROM vitals_readings WHERE patient_id = \$1`).
		WithArgs(patientID).
		WillReturnRows(rows)

	got, err := repo.Latest(context.Background(), patientID)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, 72.0, *got.HeartRate)
	assert.Equal(t, 12, *got.Steps)
	assert.Equal(t, model.SourceThingSpeak, got.Source)
	require.NotNil(t, got.Raw)
	assert.Equal(t, int64(42), got.Raw.EntryID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVitalsLatest_NotFound(t *testing.T) {
	base, mock := setupMockDB(t)
	repo := NewVitalsRepository(base)

	patientID := uuid.New()
	mock.ExpectQuery(`SELECT (.+) FROM vitals_readings`).
		WithArgs(patientID).
		WillReturnRows(sqlmock.NewRows(vitalsCols))

	_, err := repo.Latest(context.Background(), patientID)
	assert.True(t, errors.Is(err, repository.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVitalsRange(t *testing.T) {
	base, mock := setupMockDB(t)
	repo := NewVitalsRepository(base)

	patientID := uuid.New()
	end := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	start := end.Add(-time.Hour)

	rows := sqlmock.NewRows(vitalsCols).
		AddRow(uuid.NewString(), patientID.String(), "", end, 80.0, nil, nil, nil, nil, nil, "manual", nil, end).
		AddRow(uuid.NewString(), patientID.String(), "", start, 78.0, nil, nil, nil, nil, nil, "manual", nil, start)
	mock.ExpectQuery(`ORDER BY recorded_at DESC`).
		WithArgs(patientID, start, end, 100).
		WillReturnRows(rows)

	got, err := repo.Range(context.Background(), patientID, start, end, 100)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].RecordedAt.After(got[1].RecordedAt))
	assert.Nil(t, got[0].Systolic)
	assert.Nil(t, got[0].Raw)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVitalsSummarize(t *testing.T) {
	base, mock := setupMockDB(t)
	repo := NewVitalsRepository(base)

	patientID := uuid.New()
	end := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	start := end.Add(-30 * 24 * time.Hour)

	mock.ExpectQuery(`SELECT COUNT\(\*\)\s+FROM vitals_readings`).
		WithArgs(patientID, start, end).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(86400))
	mock.ExpectQuery(`row_number\(\) OVER \(PARTITION BY parameter ORDER BY recorded_at, id\)`).
		WithArgs(patientID, start, end).
		WillReturnRows(sqlmock.NewRows([]string{"parameter", "min", "max", "mean", "count", "first_mean", "second_mean"}).
			AddRow("heart_rate", 60.0, 90.0, 75.0, 86400, 60.0, 90.0).
			AddRow("steps", 12.0, 12.0, 12.0, 1, nil, 12.0))

	got, err := repo.Summarize(context.Background(), patientID, start, end)
	require.NoError(t, err)
	assert.Equal(t, 86400, got.Readings)
	require.Len(t, got.Parameters, 2)

	hr := got.Parameters[0]
	assert.Equal(t, "heart_rate", hr.Parameter)
	assert.Equal(t, 75.0, hr.Mean)
	require.NotNil(t, hr.FirstMean)
	assert.Equal(t, 60.0, *hr.FirstMean)
	assert.Nil(t, got.Parameters[1].FirstMean)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVitalsSummarize_EmptyWindow(t *testing.T) {
	base, mock := setupMockDB(t)
	repo := NewVitalsRepository(base)

	mock.ExpectQuery(`SELECT COUNT`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	got, err := repo.Summarize(context.Background(), uuid.New(), time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)
	assert.Zero(t, got.Readings)
	assert.Empty(t, got.Parameters)
	assert.NoError(t, mock.ExpectationsWereMet())
}
