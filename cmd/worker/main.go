package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/postop-monitor/internal/config"
	"github.com/jwalitptl/postop-monitor/internal/device"
	"github.com/jwalitptl/postop-monitor/internal/device/thingspeak"
	"github.com/jwalitptl/postop-monitor/internal/email"
	"github.com/jwalitptl/postop-monitor/internal/handler/health"
	promhandler "github.com/jwalitptl/postop-monitor/internal/handler/prometheus"
	"github.com/jwalitptl/postop-monitor/internal/model"
	"github.com/jwalitptl/postop-monitor/internal/repository/postgres"
	"github.com/jwalitptl/postop-monitor/internal/service/alert"
	"github.com/jwalitptl/postop-monitor/internal/service/ingest"
	"github.com/jwalitptl/postop-monitor/internal/service/notification"
	"github.com/jwalitptl/postop-monitor/internal/vitals"
	"github.com/jwalitptl/postop-monitor/pkg/logger"
	"github.com/jwalitptl/postop-monitor/pkg/messaging/redis"
	"github.com/jwalitptl/postop-monitor/pkg/metrics"
	"github.com/jwalitptl/postop-monitor/pkg/worker"
)

func main() {
	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	appLogger := logger.NewLogger(&logger.Config{
		Level:   logger.ParseLevel(cfg.Log.Level),
		Format:  cfg.Log.Format,
		Service: "postop-worker",
	})
	log.Logger = appLogger.Zerolog()
	gin.SetMode(cfg.Server.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		appLogger.Fatal(err, "Failed to connect to database")
	}
	defer db.Close()

	// Initialize Redis broker
	broker, err := redis.NewRedisBroker(ctx, redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: 100 * time.Millisecond,
		PoolSize:     cfg.Redis.PoolSize,
	}, appLogger.Zerolog())
	if err != nil {
		appLogger.Fatal(err, "Failed to create Redis broker")
	}
	defer broker.Close()

	m := metrics.NewMetrics(prometheus.DefaultRegisterer, "postop")

	// Initialize repositories
	base := postgres.NewBaseRepository(db)
	userRepo := postgres.NewUserRepository(base)
	vitalsRepo := postgres.NewVitalsRepository(base)
	alertRepo := postgres.NewAlertRepository(base)
	outboxRepo := postgres.NewOutboxRepository(base)

	// Ingestion
	baselines := vitals.NewBaselineCache(time.Now)
	source := newSource(cfg, baselines, appLogger)
	writer := alert.NewWriter(alertRepo, cfg.Alerts.DedupWindow, appLogger, m)
	pipeline := ingest.NewPipeline(vitalsRepo, vitals.NewEvaluator(cfg.Thresholds), writer, appLogger, m)
	scheduler := ingest.NewScheduler(userRepo, source, baselines, pipeline, cfg.Ingestion.Interval, component(appLogger, "ingestion"), m)

	// Notifications
	dispatcher := notification.NewDispatcher(broker, cfg.Redis.Channel, userRepo, email.NewService(email.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	}), appLogger)
	processor, err := worker.NewOutboxProcessor(outboxRepo, dispatcher, worker.OutboxProcessorConfig{
		BatchSize:     cfg.Outbox.BatchSize,
		PollInterval:  cfg.Outbox.PollInterval,
		RetryAttempts: cfg.Outbox.RetryAttempts,
		RetryDelay:    cfg.Outbox.RetryDelay,
		MaxRetries:    cfg.Outbox.MaxRetries,
	}, component(appLogger, "outbox"), m)
	if err != nil {
		appLogger.Fatal(err, "Invalid outbox configuration")
	}
	cleanup := worker.NewOutboxCleanupWorker(outboxRepo, cfg.Outbox.Retention, time.Hour, appLogger)

	srv := setupHealthCheck(cfg.Server.WorkerPort, map[string]health.Checker{
		"postgres": db,
		"redis":    broker,
	}, appLogger)

	var wg sync.WaitGroup
	run := func(start func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start(ctx)
		}()
	}

	if cfg.Ingestion.Enabled {
		appLogger.Info("Vitals ingestion enabled",
			"source", cfg.Ingestion.EffectiveSource(),
			"interval", cfg.Ingestion.Interval.String())
		run(scheduler.Start)
	}
	if cfg.Escalation.Enabled {
		escalator := alert.NewEscalator(alertRepo, alert.EscalatorConfig{
			After:      cfg.Escalation.After,
			Interval:   cfg.Escalation.Interval,
			Severities: parseSeverities(cfg.Escalation.Severities, appLogger),
			BatchSize:  cfg.Escalation.BatchSize,
		}, component(appLogger, "escalation"), m)
		run(escalator.Start)
	}
	run(processor.Start)
	run(cleanup.Start)

	<-ctx.Done()
	appLogger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(err, "Health server forced to shutdown")
	}
	wg.Wait()
	appLogger.Info("Worker stopped")
}

func component(l *logger.Logger, name string) *logger.Logger {
	return l.WithFields(map[string]interface{}{"component": name})
}

func newSource(cfg *config.Config, baselines *vitals.BaselineCache, appLogger *logger.Logger) device.Source {
	if cfg.Ingestion.EffectiveSource() == config.SourceThingSpeak {
		return thingspeak.NewClient(thingspeak.Options{
			BaseURL:        cfg.ThingSpeak.BaseURL,
			DefaultChannel: cfg.ThingSpeak.DefaultChannel,
			ReadAPIKey:     cfg.ThingSpeak.ReadAPIKey,
			Timeout:        cfg.ThingSpeak.Timeout,
			RetryCount:     2,
		}, appLogger.Zerolog())
	}

	seed := cfg.Ingestion.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	spikes := vitals.NewRandSpikes(seed, cfg.Ingestion.SpikeRate)
	return device.NewMockSource(baselines, vitals.NewGenerator(spikes, seed+1))
}

func parseSeverities(names []string, appLogger *logger.Logger) []model.Severity {
	out := make([]model.Severity, 0, len(names))
	for _, n := range names {
		s := model.Severity(n)
		if !s.Valid() {
			appLogger.Warn("Ignoring unknown escalation severity", "severity", n)
			continue
		}
		out = append(out, s)
	}
	return out
}

func setupHealthCheck(port int, checks map[string]health.Checker, appLogger *logger.Logger) *http.Server {
	engine := gin.New()
	engine.Use(gin.Recovery())
	health.NewHandler(checks).RegisterRoutes(engine)
	promhandler.New(prometheus.DefaultGatherer).RegisterRoutes(engine)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error(err, "Health check server failed")
			os.Exit(1)
		}
	}()
	return srv
}
