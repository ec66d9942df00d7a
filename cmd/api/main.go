package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/postop-monitor/internal/config"
	alerthandler "github.com/jwalitptl/postop-monitor/internal/handler/alert"
	authhandler "github.com/jwalitptl/postop-monitor/internal/handler/auth"
	"github.com/jwalitptl/postop-monitor/internal/handler/health"
	promhandler "github.com/jwalitptl/postop-monitor/internal/handler/prometheus"
	sensorhandler "github.com/jwalitptl/postop-monitor/internal/handler/sensor"
	"github.com/jwalitptl/postop-monitor/internal/middleware"
	"github.com/jwalitptl/postop-monitor/internal/repository/postgres"
	"github.com/jwalitptl/postop-monitor/internal/router"
	"github.com/jwalitptl/postop-monitor/internal/service/access"
	alertService "github.com/jwalitptl/postop-monitor/internal/service/alert"
	authService "github.com/jwalitptl/postop-monitor/internal/service/auth"
	"github.com/jwalitptl/postop-monitor/internal/service/ingest"
	sensorService "github.com/jwalitptl/postop-monitor/internal/service/sensor"
	"github.com/jwalitptl/postop-monitor/internal/vitals"
	"github.com/jwalitptl/postop-monitor/pkg/auth"
	"github.com/jwalitptl/postop-monitor/pkg/logger"
	"github.com/jwalitptl/postop-monitor/pkg/metrics"
	"github.com/jwalitptl/postop-monitor/pkg/security"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("jwt.secret must be set")
	}

	appLogger := logger.NewLogger(&logger.Config{
		Level:   logger.ParseLevel(cfg.Log.Level),
		Format:  cfg.Log.Format,
		Service: "postop-api",
	})
	log.Logger = appLogger.Zerolog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		appLogger.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	m := metrics.NewMetrics(prometheus.DefaultRegisterer, "postop")

	// Initialize repositories
	base := postgres.NewBaseRepository(db)
	userRepo := postgres.NewUserRepository(base)
	vitalsRepo := postgres.NewVitalsRepository(base)
	alertRepo := postgres.NewAlertRepository(base)

	// Initialize services
	policy := access.NewPolicy(userRepo)
	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)
	authSvc := authService.NewService(userRepo, jwtSvc, security.NewBcryptHasher(bcrypt.DefaultCost), appLogger)
	alertSvc := alertService.NewService(alertRepo, policy, appLogger)

	writer := alertService.NewWriter(alertRepo, cfg.Alerts.DedupWindow, appLogger, m)
	pipeline := ingest.NewPipeline(vitalsRepo, vitals.NewEvaluator(cfg.Thresholds), writer, appLogger, m)
	sensorSvc := sensorService.NewService(vitalsRepo, alertRepo, policy, pipeline, appLogger)

	validation := middleware.DefaultValidationConfig()
	if err := middleware.RegisterValidators(validation); err != nil {
		appLogger.Fatal(err, "failed to register validators")
	}

	gin.SetMode(cfg.Server.Mode)

	// Setup router
	r := router.NewRouter(router.RouterConfig{
		RateLimit:      rate.Limit(cfg.Server.RateLimitRPS),
		RateBurst:      cfg.Server.RateLimitBurst,
		CORSConfig:     middleware.DefaultCORSConfig(cfg.Server.AllowedOrigins),
		RequestTimeout: time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		MaxBodySize:    middleware.DefaultMaxBodySize,
		Validation:     validation,
	}, middleware.NewAuthMiddleware(authSvc), m)

	r.Root(
		health.NewHandler(map[string]health.Checker{"postgres": db}),
		promhandler.New(prometheus.DefaultGatherer),
	)
	r.Public(authhandler.NewHandler(authSvc))
	r.Secured(
		sensorhandler.NewHandler(sensorSvc),
		alerthandler.NewHandler(alertSvc),
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.Info("Starting API server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error(err, "failed to start server")
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(err, "server forced to shutdown")
	}

	appLogger.Info("Server exited properly")
}
