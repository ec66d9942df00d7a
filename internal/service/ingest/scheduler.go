package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jwalitptl/postop-monitor/internal/device"
	"github.com/jwalitptl/postop-monitor/internal/model"
	"github.com/jwalitptl/postop-monitor/internal/repository"
	"github.com/jwalitptl/postop-monitor/internal/vitals"
	"github.com/jwalitptl/postop-monitor/pkg/logger"
	"github.com/jwalitptl/postop-monitor/pkg/metrics"
)

// DefaultInterval between ingestion ticks
const DefaultInterval = 30 * time.Second

// TickStats reports what one tick did
type TickStats struct {
	Patients int
	Stored   int
	Skipped  int
	Failed   int
	Alerts   int
}

// Scheduler periodically reads a snapshot for every active patient and runs
// it through the pipeline. A failing patient never stops the tick.
type Scheduler struct {
	users     repository.UserRepository
	source    device.Source
	baselines *vitals.BaselineCache
	pipeline  *Pipeline
	interval  time.Duration
	now       func() time.Time
	logger    *logger.Logger
	metrics   *metrics.Metrics

	roster string
}

func NewScheduler(
	users repository.UserRepository,
	source device.Source,
	baselines *vitals.BaselineCache,
	pipeline *Pipeline,
	interval time.Duration,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		users:     users,
		source:    source,
		baselines: baselines,
		pipeline:  pipeline,
		interval:  interval,
		now:       time.Now,
		logger:    logger,
		metrics:   metrics,
	}
}

// WithClock replaces the scheduler's time source
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Start runs a tick immediately and then on every interval until ctx is
// cancelled. Ticks never overlap; a slow tick makes the ticker drop beats.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Starting ingestion scheduler", "interval", s.interval.String())
	s.runTick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Shutting down ingestion scheduler")
			return
		case <-ticker.C:
			s.runTick(ctx)
		}
	}
}

func (s *Scheduler) runTick(ctx context.Context) {
	if _, err := s.Tick(ctx); err != nil {
		s.logger.Error(err, "Ingestion tick failed")
	}
}

// Tick ingests one snapshot per patient. Only a roster lookup failure is
// returned; per-patient failures are logged and counted.
func (s *Scheduler) Tick(ctx context.Context) (TickStats, error) {
	start := time.Now()
	defer func() {
		s.metrics.IngestionTicks.Inc()
		s.metrics.IngestionTickDuration.Observe(time.Since(start).Seconds())
	}()

	var stats TickStats
	patients, err := s.users.ListPatients(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to list patients: %w", err)
	}
	stats.Patients = len(patients)

	if key := rosterKey(patients); key != s.roster {
		s.baselines.Rebuild(patients)
		s.roster = key
		s.logger.Info("Baseline cache rebuilt", "patients", len(patients))
	}

	now := s.now().UTC()
	for _, patient := range patients {
		if ctx.Err() != nil {
			return stats, nil
		}

		reading, err := s.source.Read(ctx, patient, now)
		if err != nil {
			if errors.Is(err, device.ErrNoNewData) {
				stats.Skipped++
				continue
			}
			stats.Failed++
			s.metrics.ReadingsFailed.WithLabelValues("read").Inc()
			s.logger.Error(err, "Failed to read vitals", "patient_id", patient.ID.String())
			continue
		}

		result, err := s.pipeline.Process(ctx, patient.ID, reading)
		if result != nil {
			stats.Stored++
			stats.Alerts += len(result.Created)
		}
		if err != nil {
			stats.Failed++
			s.logger.Error(err, "Failed to process vitals", "patient_id", patient.ID.String())
		}
	}

	s.logger.Debug("Ingestion tick complete",
		"patients", stats.Patients,
		"stored", stats.Stored,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"alerts", stats.Alerts)
	return stats, nil
}

// rosterKey identifies the roster including profile edits, which change a
// patient's baseline
func rosterKey(patients []*model.User) string {
	keys := make([]string, 0, len(patients))
	for _, p := range patients {
		keys = append(keys, fmt.Sprintf("%s@%d", p.ID, p.UpdatedAt.UnixNano()))
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}
