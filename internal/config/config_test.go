package config

import (
	"os"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	os.Setenv("SERVICE_TOKEN_SECRET", "test-secret-32-characters-long!!")
	os.Setenv("DB_PASSWORD", "test")
	t.Cleanup(os.Clearenv)
}

func TestEngineConfig_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	tests := []struct {
		name     string
		actual   int
		expected int
	}{
		{"RateLimitMaxRequests", cfg.Engine.RateLimitMaxRequests, 5},
		{"NovelDeviceWeight", cfg.Engine.NovelDeviceWeight, 25},
		{"FailureWeight", cfg.Engine.FailureWeight, 10},
		{"FailureWeightCap", cfg.Engine.FailureWeightCap, 40},
		{"FailureBurstWeight", cfg.Engine.FailureBurstWeight, 20},
		{"FailureBurstMinimum", cfg.Engine.FailureBurstMinimum, 3},
		{"VelocityWeight", cfg.Engine.VelocityWeight, 15},
		{"VelocityThreshold", cfg.Engine.VelocityThreshold, 8},
		{"MediumTierScore", cfg.Engine.MediumTierScore, 40},
		{"HighTierScore", cfg.Engine.HighTierScore, 60},
		{"FailureLockThreshold", cfg.Engine.FailureLockThreshold, 5},
		{"HighRiskLockThreshold", cfg.Engine.HighRiskLockThreshold, 3},
	}

	for _, tt := range tests {
		if tt.actual != tt.expected {
			t.Errorf("%s: got %d, want %d", tt.name, tt.actual, tt.expected)
		}
	}

	if cfg.Engine.RateLimitWindow != 1*time.Minute {
		t.Errorf("RateLimitWindow: got %v, want 1m", cfg.Engine.RateLimitWindow)
	}
	if cfg.Engine.LockoutDuration != 30*time.Minute {
		t.Errorf("LockoutDuration: got %v, want 30m", cfg.Engine.LockoutDuration)
	}
	if cfg.Engine.FailureLockWindow != 15*time.Minute {
		t.Errorf("FailureLockWindow: got %v, want 15m", cfg.Engine.FailureLockWindow)
	}
	if cfg.Engine.KnownDeviceWindow != 30*24*time.Hour {
		t.Errorf("KnownDeviceWindow: got %v, want 720h", cfg.Engine.KnownDeviceWindow)
	}
}

func TestEngineConfig_CustomValues(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("RATE_LIMIT_WINDOW", "30s")
	os.Setenv("RATE_LIMIT_MAX_REQUESTS", "10")
	os.Setenv("LOCKOUT_DURATION", "1h")
	os.Setenv("RISK_NOVEL_DEVICE_WEIGHT", "30")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Engine.RateLimitWindow != 30*time.Second {
		t.Errorf("RateLimitWindow: got %v, want 30s", cfg.Engine.RateLimitWindow)
	}
	if cfg.Engine.RateLimitMaxRequests != 10 {
		t.Errorf("RateLimitMaxRequests: got %d, want 10", cfg.Engine.RateLimitMaxRequests)
	}
	if cfg.Engine.LockoutDuration != 1*time.Hour {
		t.Errorf("LockoutDuration: got %v, want 1h", cfg.Engine.LockoutDuration)
	}
	if cfg.Engine.NovelDeviceWeight != 30 {
		t.Errorf("NovelDeviceWeight: got %d, want 30", cfg.Engine.NovelDeviceWeight)
	}
}

func TestLoad_RequiresServiceSecret(t *testing.T) {
	os.Clearenv()
	os.Setenv("DB_PASSWORD", "test")
	t.Cleanup(os.Clearenv)

	if _, err := Load(); err == nil {
		t.Fatal("Load() = nil, want error for missing SERVICE_TOKEN_SECRET")
	}
}

func TestLoad_RejectsShortSecretInProduction(t *testing.T) {
	os.Clearenv()
	os.Setenv("ENV", "production")
	os.Setenv("SERVICE_TOKEN_SECRET", "short-secret-here")
	os.Setenv("DB_PASSWORD", "test")
	t.Cleanup(os.Clearenv)

	if _, err := Load(); err == nil {
		t.Fatal("Load() = nil, want error for weak production secret")
	}
}

func TestLoad_RejectsInvalidTierThresholds(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("RISK_MEDIUM_TIER_SCORE", "70")
	os.Setenv("RISK_HIGH_TIER_SCORE", "60")

	if _, err := Load(); err == nil {
		t.Fatal("Load() = nil, want error when medium threshold exceeds high")
	}
}

func TestLoad_RequiresNotifyAddresses(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("NOTIFY_ENABLED", "true")

	if _, err := Load(); err == nil {
		t.Fatal("Load() = nil, want error when notifications enabled without addresses")
	}
}
