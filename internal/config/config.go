package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	Engine   EngineConfig
	Notify   NotifyConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type AuthConfig struct {
	// ServiceTokenSecret signs the bearer tokens presented by the
	// calling login service.
	ServiceTokenSecret string
	ServiceTokenExpiry time.Duration
	// AdminKeyHash is the bcrypt hash of the key guarding the
	// administrative unlock/report endpoints.
	AdminKeyHash string
}

// EngineConfig carries every tunable the decision engine recognizes.
// The numeric weights and thresholds are defaults, not fixed constants.
type EngineConfig struct {
	// Rate limiter: sliding window per source identifier
	RateLimitWindow      time.Duration
	RateLimitMaxRequests int

	// Risk scoring
	NovelDeviceWeight   int
	FailureWeight       int
	FailureWeightCap    int
	FailureBurstWeight  int
	FailureBurstMinimum int
	VelocityWeight      int
	VelocityThreshold   int
	VelocityWindow      time.Duration
	FailureLookback     time.Duration
	MediumTierScore     int
	HighTierScore       int

	// Lockout
	FailureLockThreshold  int
	FailureLockWindow     time.Duration
	LockoutDuration       time.Duration
	HighRiskLockThreshold int

	// Device fingerprints count as known inside this trailing window
	KnownDeviceWindow time.Duration

	// Retention
	AttemptRetention    time.Duration
	AssessmentRetention time.Duration
	CleanupInterval     time.Duration
}

type NotifyConfig struct {
	Enabled      bool
	AWSRegion    string
	FromAddress  string
	SecurityTeam string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	serviceSecret := getEnv("SERVICE_TOKEN_SECRET", "")
	if serviceSecret == "" {
		return nil, fmt.Errorf("SERVICE_TOKEN_SECRET is required")
	}
	if err := validateServiceSecret(serviceSecret, env); err != nil {
		return nil, err
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "palisade"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:     getEnv("PORT", "8080"),
			Env:      env,
			LogLevel: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			ServiceTokenSecret: serviceSecret,
			ServiceTokenExpiry: getEnvAsDuration("SERVICE_TOKEN_EXPIRY", 1*time.Hour),
			AdminKeyHash:       getEnv("ADMIN_API_KEY_HASH", ""),
		},
		Engine: EngineConfig{
			RateLimitWindow:      getEnvAsDuration("RATE_LIMIT_WINDOW", 1*time.Minute),
			RateLimitMaxRequests: getEnvAsInt("RATE_LIMIT_MAX_REQUESTS", 5),

			NovelDeviceWeight:   getEnvAsInt("RISK_NOVEL_DEVICE_WEIGHT", 25),
			FailureWeight:       getEnvAsInt("RISK_FAILURE_WEIGHT", 10),
			FailureWeightCap:    getEnvAsInt("RISK_FAILURE_WEIGHT_CAP", 40),
			FailureBurstWeight:  getEnvAsInt("RISK_FAILURE_BURST_WEIGHT", 20),
			FailureBurstMinimum: getEnvAsInt("RISK_FAILURE_BURST_MINIMUM", 3),
			VelocityWeight:      getEnvAsInt("RISK_VELOCITY_WEIGHT", 15),
			VelocityThreshold:   getEnvAsInt("RISK_VELOCITY_THRESHOLD", 8),
			VelocityWindow:      getEnvAsDuration("RISK_VELOCITY_WINDOW", 5*time.Minute),
			FailureLookback:     getEnvAsDuration("RISK_FAILURE_LOOKBACK", 15*time.Minute),
			MediumTierScore:     getEnvAsInt("RISK_MEDIUM_TIER_SCORE", 40),
			HighTierScore:       getEnvAsInt("RISK_HIGH_TIER_SCORE", 60),

			FailureLockThreshold:  getEnvAsInt("LOCKOUT_FAILURE_THRESHOLD", 5),
			FailureLockWindow:     getEnvAsDuration("LOCKOUT_FAILURE_WINDOW", 15*time.Minute),
			LockoutDuration:       getEnvAsDuration("LOCKOUT_DURATION", 30*time.Minute),
			HighRiskLockThreshold: getEnvAsInt("LOCKOUT_HIGH_RISK_THRESHOLD", 3),

			KnownDeviceWindow: getEnvAsDuration("KNOWN_DEVICE_WINDOW", 30*24*time.Hour),

			AttemptRetention:    getEnvAsDuration("ATTEMPT_RETENTION", 90*24*time.Hour),
			AssessmentRetention: getEnvAsDuration("ASSESSMENT_RETENTION", 90*24*time.Hour),
			CleanupInterval:     getEnvAsDuration("CLEANUP_INTERVAL", 1*time.Hour),
		},
		Notify: NotifyConfig{
			Enabled:      getEnvAsBool("NOTIFY_ENABLED", false),
			AWSRegion:    getEnv("AWS_REGION", "us-east-1"),
			FromAddress:  getEnv("NOTIFY_FROM_ADDRESS", ""),
			SecurityTeam: getEnv("NOTIFY_SECURITY_TEAM", ""),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}
	if err := cfg.Engine.validate(); err != nil {
		return nil, err
	}
	if cfg.Notify.Enabled && (cfg.Notify.FromAddress == "" || cfg.Notify.SecurityTeam == "") {
		return nil, fmt.Errorf("NOTIFY_FROM_ADDRESS and NOTIFY_SECURITY_TEAM are required when notifications are enabled")
	}

	return cfg, nil
}

func (e *EngineConfig) validate() error {
	if e.RateLimitMaxRequests <= 0 {
		return fmt.Errorf("RATE_LIMIT_MAX_REQUESTS must be positive")
	}
	if e.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}
	if e.FailureLockThreshold <= 0 {
		return fmt.Errorf("LOCKOUT_FAILURE_THRESHOLD must be positive")
	}
	if e.HighRiskLockThreshold <= 0 {
		return fmt.Errorf("LOCKOUT_HIGH_RISK_THRESHOLD must be positive")
	}
	if e.MediumTierScore <= 0 || e.HighTierScore <= e.MediumTierScore || e.HighTierScore > 100 {
		return fmt.Errorf("tier thresholds must satisfy 0 < medium < high <= 100")
	}
	return nil
}

// validateServiceSecret enforces minimum strength for the signing secret
func validateServiceSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("SERVICE_TOKEN_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}
	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}
