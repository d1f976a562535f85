package integration

import (
	"context"
	"flag"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palisadeauth/palisade/internal/models"
)

var (
	testDB     *TestDB
	testServer *TestServer
)

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()

	db, err := SetupTestDatabase(ctx)
	if err != nil {
		panic("failed to set up test database: " + err.Error())
	}
	testDB = db

	server, err := NewTestServer(db.DB)
	if err != nil {
		db.Teardown(ctx)
		panic("failed to set up test server: " + err.Error())
	}
	testServer = server

	code := m.Run()

	server.Close()
	db.Teardown(ctx)
	os.Exit(code)
}

func resetState(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	require.NoError(t, testDB.CleanupTables(context.Background()))
	testServer.Limiter.Purge()
	testServer.Notifier.Reset()
}

func TestEngine_PrecheckAllowsFreshAccount(t *testing.T) {
	resetState(t)
	account := TestAccount("fresh")

	resp, err := testServer.RequestAsService(http.MethodPost, "/v1/login/precheck", PrecheckPayload(account, "198.51.100.10"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "50", resp.Header.Get("X-RateLimit-Limit"))
	assert.Equal(t, "49", resp.Header.Get("X-RateLimit-Remaining"))

	var body struct {
		Allowed       bool `json:"allowed"`
		AccountLocked bool `json:"account_locked"`
	}
	require.NoError(t, ParseJSONResponse(resp, &body))
	assert.True(t, body.Allowed)
	assert.False(t, body.AccountLocked)
}

func TestEngine_RejectsUnauthenticatedCaller(t *testing.T) {
	resetState(t)

	resp, err := testServer.Request(http.MethodPost, "/v1/login/precheck", PrecheckPayload(TestAccount("noauth"), "198.51.100.10"), nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestEngine_NovelDeviceSuccessRequiresStepUp(t *testing.T) {
	resetState(t)
	account := TestAccount("novel")

	resp, err := testServer.RequestAsService(http.MethodPost, "/v1/login/attempts",
		AttemptPayloadWithDevice(account, "198.51.100.11", "success", "fp-never-seen"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Assessment struct {
			Score   int      `json:"score"`
			Tier    string   `json:"tier"`
			Factors []string `json:"factors"`
		} `json:"assessment"`
		MFARequired bool `json:"mfa_required"`
	}
	require.NoError(t, ParseJSONResponse(resp, &body))
	assert.Equal(t, "MEDIUM", body.Assessment.Tier)
	assert.Contains(t, body.Assessment.Factors, "novel_device")
	assert.True(t, body.MFARequired)
}

func TestEngine_KnownDeviceSuccessIsLowRisk(t *testing.T) {
	resetState(t)
	ctx := context.Background()
	account := TestAccount("known")

	// Same fingerprint succeeded a week ago, inside the trailing window
	require.NoError(t, SeedSuccessfulLogin(ctx, testDB.Pool, account, "198.51.100.12", "fp-laptop", time.Now().Add(-7*24*time.Hour)))

	resp, err := testServer.RequestAsService(http.MethodPost, "/v1/login/attempts",
		AttemptPayloadWithDevice(account, "198.51.100.12", "success", "fp-laptop"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Assessment struct {
			Score int    `json:"score"`
			Tier  string `json:"tier"`
		} `json:"assessment"`
		MFARequired bool `json:"mfa_required"`
	}
	require.NoError(t, ParseJSONResponse(resp, &body))
	assert.Equal(t, "LOW", body.Assessment.Tier)
	assert.Zero(t, body.Assessment.Score)
	assert.False(t, body.MFARequired)
}

func TestEngine_RepeatedFailuresLockTheAccount(t *testing.T) {
	resetState(t)
	account := TestAccount("bruteforce")

	var locked bool
	for i := 0; i < 5; i++ {
		resp, err := testServer.RequestAsService(http.MethodPost, "/v1/login/attempts",
			AttemptPayload(account, "203.0.113.20", "failure"))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			AccountLocked bool `json:"account_locked"`
		}
		require.NoError(t, ParseJSONResponse(resp, &body))
		locked = body.AccountLocked
	}
	assert.True(t, locked, "fifth failure inside the window should lock")

	// Precheck now reports the lock
	resp, err := testServer.RequestAsService(http.MethodPost, "/v1/login/precheck", PrecheckPayload(account, "203.0.113.20"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	var pre struct {
		Allowed       bool   `json:"allowed"`
		AccountLocked bool   `json:"account_locked"`
		LockReason    string `json:"lock_reason"`
	}
	require.NoError(t, ParseJSONResponse(resp, &pre))
	assert.False(t, pre.Allowed)
	assert.True(t, pre.AccountLocked)
	assert.Equal(t, models.LockReasonRepeatedFailures, pre.LockReason)

	// The lock notification went out exactly once
	assert.Len(t, testServer.Notifier.LockedCalls, 1)

	// Operator view agrees, then unlock clears it
	adminResp, err := testServer.RequestAsAdmin(http.MethodGet, "/v1/admin/accounts/"+account+"/lockout", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, adminResp.StatusCode)

	var status struct {
		Locked bool `json:"locked"`
	}
	require.NoError(t, ParseJSONResponse(adminResp, &status))
	assert.True(t, status.Locked)

	unlockResp, err := testServer.RequestAsAdmin(http.MethodPost, "/v1/admin/accounts/"+account+"/unlock", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, unlockResp.StatusCode)
	unlockResp.Body.Close()

	resp, err = testServer.RequestAsService(http.MethodPost, "/v1/login/precheck", PrecheckPayload(account, "203.0.113.20"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestEngine_AttemptRecordingIsIdempotent(t *testing.T) {
	resetState(t)
	ctx := context.Background()
	account := TestAccount("retry")

	at := time.Now().UTC().Truncate(time.Millisecond)
	payload := AttemptPayload(account, "198.51.100.30", "failure")
	payload["attempt_time"] = at.Format(time.RFC3339Nano)

	for i := 0; i < 3; i++ {
		resp, err := testServer.RequestAsService(http.MethodPost, "/v1/login/attempts", payload)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}

	count, err := CountRows(ctx, testDB.Pool, "login_attempts")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "retried submissions must collapse to one row")
}

func TestEngine_AdminReportsHighFailureSources(t *testing.T) {
	resetState(t)
	ctx := context.Background()

	now := time.Now()
	for i := 0; i < 12; i++ {
		at := now.Add(-time.Duration(i) * time.Minute)
		require.NoError(t, SeedAttempt(ctx, testDB.Pool, &models.LoginAttempt{
			AccountID:   TestAccount("spray"),
			SourceID:    "203.0.113.99",
			UserAgent:   "integration-test",
			Outcome:     models.OutcomeFailure,
			AttemptTime: at,
			ExpiresAt:   at.Add(90 * 24 * time.Hour),
		}))
	}

	resp, err := testServer.RequestAsAdmin(http.MethodGet, "/v1/admin/sources/high-failure?min_failures=10", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Sources []struct {
			SourceID string `json:"source_id"`
			Failures int    `json:"failures"`
		} `json:"sources"`
	}
	require.NoError(t, ParseJSONResponse(resp, &body))
	require.Len(t, body.Sources, 1)
	assert.Equal(t, "203.0.113.99", body.Sources[0].SourceID)
	assert.Equal(t, 12, body.Sources[0].Failures)
}
