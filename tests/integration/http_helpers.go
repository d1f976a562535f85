package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/palisadeauth/palisade/internal/auth"
	"github.com/palisadeauth/palisade/internal/config"
	"github.com/palisadeauth/palisade/internal/database"
	"github.com/palisadeauth/palisade/internal/handlers"
	middlewareCustom "github.com/palisadeauth/palisade/internal/middleware"
	"github.com/palisadeauth/palisade/internal/models"
	"github.com/palisadeauth/palisade/internal/routes"
	"github.com/palisadeauth/palisade/internal/services"
	pkgauth "github.com/palisadeauth/palisade/pkg/auth"
	pkglogger "github.com/palisadeauth/palisade/pkg/logger"
)

// TestAdminKey is the pre-shared operator key used by integration tests
const TestAdminKey = "integration-test-admin-key"

// TestServer wraps httptest.Server with database and all dependencies
type TestServer struct {
	Server   *httptest.Server
	DB       *database.DB
	Config   *config.Config
	Notifier *services.MockNotifier

	// Dependency references for inspection in tests
	TokenManager *auth.TokenManager
	Limiter      *services.SlidingWindowLimiter
	logger       *slog.Logger
}

// NewTestServer initializes a complete HTTP server with a real database and
// a captured notifier
func NewTestServer(db *database.DB) (*TestServer, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg := &config.Config{
		Server: config.ServerConfig{
			Port: "0",
			Env:  "test",
		},
		Auth: config.AuthConfig{
			ServiceTokenSecret: "test-secret-32-characters-long!!",
			ServiceTokenExpiry: time.Hour,
		},
		Engine: config.EngineConfig{
			RateLimitWindow:      time.Minute,
			RateLimitMaxRequests: 50,

			NovelDeviceWeight:   25,
			FailureWeight:       10,
			FailureWeightCap:    40,
			FailureBurstWeight:  20,
			FailureBurstMinimum: 3,
			VelocityWeight:      15,
			VelocityThreshold:   8,
			VelocityWindow:      5 * time.Minute,
			FailureLookback:     15 * time.Minute,
			MediumTierScore:     40,
			HighTierScore:       60,

			FailureLockThreshold:  5,
			FailureLockWindow:     15 * time.Minute,
			LockoutDuration:       30 * time.Minute,
			HighRiskLockThreshold: 3,

			KnownDeviceWindow: 30 * 24 * time.Hour,

			AttemptRetention:    90 * 24 * time.Hour,
			AssessmentRetention: 90 * 24 * time.Hour,
			CleanupInterval:     time.Hour,
		},
	}

	adminKeyHash, err := pkgauth.HashAPIKey(TestAdminKey)
	if err != nil {
		return nil, err
	}
	cfg.Auth.AdminKeyHash = adminKeyHash

	attemptRepo, assessmentRepo, lockoutRepo := InitializeRepositories(db)

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

	notifier := &services.MockNotifier{}

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

	tokenManager := auth.NewTokenManager(cfg.Auth.ServiceTokenSecret, cfg.Auth.ServiceTokenExpiry)

	auditLogger := pkglogger.NewAuditLogger(logger)
	loginHandler := handlers.NewLoginHandler(assessmentService, auditLogger, nil)
	adminHandler := handlers.NewAdminHandler(lockoutService, assessmentRepo, attemptRepo, auditLogger)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(r, loginHandler, adminHandler, tokenManager, cfg.Auth.AdminKeyHash)

	server := httptest.NewServer(r)

	return &TestServer{
		Server:       server,
		DB:           &database.DB{Pool: db.Pool},
		Config:       cfg,
		Notifier:     notifier,
		TokenManager: tokenManager,
		Limiter:      limiter,
		logger:       logger,
	}, nil
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	if ts.Server != nil {
		ts.Server.Close()
	}
}

// ServiceToken issues a bearer token the way the login service would
func (ts *TestServer) ServiceToken() (string, error) {
	return ts.TokenManager.GenerateServiceToken("login-service")
}

// Request makes an HTTP request to the test server
func (ts *TestServer) Request(method, path string, body interface{}, headers map[string]string) (*http.Response, error) {
	url := ts.Server.URL + path

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return http.DefaultClient.Do(req)
}

// RequestAsService makes a request with a freshly issued service bearer token
func (ts *TestServer) RequestAsService(method, path string, body interface{}) (*http.Response, error) {
	token, err := ts.ServiceToken()
	if err != nil {
		return nil, err
	}
	return ts.Request(method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

// RequestAsAdmin makes a request with the pre-shared admin key
func (ts *TestServer) RequestAsAdmin(method, path string, body interface{}) (*http.Response, error) {
	return ts.Request(method, path, body, map[string]string{
		"X-Admin-Key": TestAdminKey,
	})
}

// ParseJSONResponse parses JSON response body into target struct
func ParseJSONResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}

// GetErrorMessage extracts error message from error response
func GetErrorMessage(resp *http.Response) (string, error) {
	defer resp.Body.Close()
	var errResp map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		return "", err
	}
	if msg, ok := errResp["message"].(string); ok {
		return msg, nil
	}
	return "", nil
}
