package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/palisadeauth/palisade/internal/auth"
	"github.com/palisadeauth/palisade/internal/background"
	"github.com/palisadeauth/palisade/internal/config"
	"github.com/palisadeauth/palisade/internal/database"
	"github.com/palisadeauth/palisade/internal/handlers"
	middlewareCustom "github.com/palisadeauth/palisade/internal/middleware"
	"github.com/palisadeauth/palisade/internal/models"
	"github.com/palisadeauth/palisade/internal/repositories"
	"github.com/palisadeauth/palisade/internal/routes"
	"github.com/palisadeauth/palisade/internal/services"
	pkglogger "github.com/palisadeauth/palisade/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize repositories
	attemptRepo := repositories.NewAttemptRepository(db)
	assessmentRepo := repositories.NewAssessmentRepository(db)
	lockoutRepo := repositories.NewLockoutRepository(db)

	// Initialize engine services
	historyService := services.NewHistoryService(attemptRepo, services.HistoryConfig{
		Retention: cfg.Engine.AttemptRetention,
	}, logger)

	fingerprintService := services.NewFingerprintService(attemptRepo, services.FingerprintConfig{
		KnownWindow: cfg.Engine.KnownDeviceWindow,
	}, logger)

	riskService := services.NewRiskService(historyService, fingerprintService, services.RiskConfig{
		NovelDeviceWeight:   cfg.Engine.NovelDeviceWeight,
		FailureWeight:       cfg.Engine.FailureWeight,
		FailureWeightCap:    cfg.Engine.FailureWeightCap,
		FailureBurstWeight:  cfg.Engine.FailureBurstWeight,
		FailureBurstMinimum: cfg.Engine.FailureBurstMinimum,
		VelocityWeight:      cfg.Engine.VelocityWeight,
		VelocityThreshold:   cfg.Engine.VelocityThreshold,
		VelocityWindow:      cfg.Engine.VelocityWindow,
		FailureLookback:     cfg.Engine.FailureLookback,
		Thresholds: models.TierThresholds{
			Medium: cfg.Engine.MediumTierScore,
			High:   cfg.Engine.HighTierScore,
		},
	}, logger)

	lockoutService := services.NewLockoutService(lockoutRepo, assessmentRepo, services.LockoutConfig{
		FailureThreshold:  cfg.Engine.FailureLockThreshold,
		FailureWindow:     cfg.Engine.FailureLockWindow,
		HighRiskThreshold: cfg.Engine.HighRiskLockThreshold,
		Duration:          cfg.Engine.LockoutDuration,
	}, logger)

	limiter := services.NewSlidingWindowLimiter(services.RateLimiterConfig{
		MaxRequests: cfg.Engine.RateLimitMaxRequests,
		Window:      cfg.Engine.RateLimitWindow,
	})

	// Security notifications
	var notifier services.Notifier = services.NopNotifier{}
	if cfg.Notify.Enabled {
		sesNotifier, err := services.NewAWSSESNotifier(
			cfg.Notify.AWSRegion,
			cfg.Notify.FromAddress,
			cfg.Notify.SecurityTeam,
			logger,
		)
		if err != nil {
			logger.Error("failed to initialize notifier", slog.Any("error", err))
			os.Exit(1)
		}
		notifier = sesNotifier
	}

	assessmentService := services.NewAssessmentService(
		historyService,
		riskService,
		lockoutService,
		limiter,
		assessmentRepo,
		notifier,
		services.AssessmentConfig{FailureWindow: cfg.Engine.FailureLockWindow},
		logger,
	)

	// Service token manager for the calling login service
	tokenManager := auth.NewTokenManager(cfg.Auth.ServiceTokenSecret, cfg.Auth.ServiceTokenExpiry)

	// Initialize cleanup manager
	cleanupManager := background.NewCleanupManager(attemptRepo, assessmentRepo, lockoutRepo, limiter, background.CleanupConfig{
		Interval:            cfg.Engine.CleanupInterval,
		AssessmentRetention: cfg.Engine.AssessmentRetention,
	}, logger)

	// Initialize handlers
	auditLogger := pkglogger.NewAuditLogger(logger)
	loginHandler := handlers.NewLoginHandler(assessmentService, auditLogger, nil)
	adminHandler := handlers.NewAdminHandler(lockoutService, assessmentRepo, attemptRepo, auditLogger)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(30 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, loginHandler, adminHandler, tokenManager, cfg.Auth.AdminKeyHash)

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}
