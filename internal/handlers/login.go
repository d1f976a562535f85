package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/palisadeauth/palisade/internal/models"
	"github.com/palisadeauth/palisade/internal/services"
	pkghttp "github.com/palisadeauth/palisade/pkg/http"
	pkglogger "github.com/palisadeauth/palisade/pkg/logger"
)

// AssessmentOrchestrator defines the interface for the decision pipeline
type AssessmentOrchestrator interface {
	Precheck(ctx context.Context, accountID, sourceID string) (*services.PrecheckResult, error)
	RecordOutcome(ctx context.Context, attempt *models.LoginAttempt) (*services.Decision, error)
}

// LoginHandler handles the assessment endpoints called by the login service
type LoginHandler struct {
	orchestrator AssessmentOrchestrator
	audit        *pkglogger.AuditLogger
	ipConfig     *pkghttp.IPConfig
}

// NewLoginHandler creates a new LoginHandler
func NewLoginHandler(orchestrator AssessmentOrchestrator, audit *pkglogger.AuditLogger, ipConfig *pkghttp.IPConfig) *LoginHandler {
	return &LoginHandler{
		orchestrator: orchestrator,
		audit:        audit,
		ipConfig:     ipConfig,
	}
}

// Request DTOs

// PrecheckRequest represents the request body for a pre-verification gate check
type PrecheckRequest struct {
	AccountID string `json:"account_id" validate:"required,min=1,max=255"`
	// SourceID defaults to the caller's client IP when omitted
	SourceID string `json:"source_id" validate:"omitempty,max=255"`
}

// AttemptRequest represents the request body for recording a resolved attempt.
// DeviceFingerprint must be a JSON string when present; any other shape is
// rejected as malformed input rather than treated as an absent fingerprint.
type AttemptRequest struct {
	AccountID         string  `json:"account_id" validate:"required,min=1,max=255"`
	SourceID          string  `json:"source_id" validate:"omitempty,max=255"`
	UserAgent         string  `json:"user_agent" validate:"omitempty,max=1024"`
	DeviceFingerprint *string `json:"device_fingerprint" validate:"omitempty,min=1,max=512"`
	Outcome           string  `json:"outcome" validate:"required,oneof=success failure"`
	// AttemptTime lets a retrying caller resubmit the original timestamp
	// so recording stays idempotent. Defaults to now.
	AttemptTime *time.Time `json:"attempt_time"`
}

// Response DTOs

// PrecheckResponse reports whether verification may proceed
type PrecheckResponse struct {
	Allowed       bool       `json:"allowed"`
	AccountLocked bool       `json:"account_locked"`
	LockedUntil   *time.Time `json:"locked_until,omitempty"`
	LockReason    *string    `json:"lock_reason,omitempty"`
}

// AssessmentResponse is the wire form of a risk assessment
type AssessmentResponse struct {
	ID         string    `json:"id"`
	Score      int       `json:"score"`
	Tier       string    `json:"tier"`
	Factors    []string  `json:"factors"`
	AssessedAt time.Time `json:"assessed_at"`
}

// AttemptResponse reports the outcome of recording and assessing an attempt
type AttemptResponse struct {
	Assessment    AssessmentResponse `json:"assessment"`
	AccountLocked bool               `json:"account_locked"`
	LockedUntil   *time.Time         `json:"locked_until,omitempty"`
	LockReason    *string            `json:"lock_reason,omitempty"`
	MFARequired   bool               `json:"mfa_required"`
}

// Precheck handles the gate check that precedes credential verification
func (h *LoginHandler) Precheck(w http.ResponseWriter, r *http.Request) {
	var req PrecheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	sourceID := strings.TrimSpace(req.SourceID)
	if sourceID == "" {
		sourceID = pkghttp.ExtractClientIP(r, h.ipConfig)
	}

	result, err := h.orchestrator.Precheck(r.Context(), req.AccountID, sourceID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	if !result.RateLimit.Allowed {
		h.audit.LogRateLimitDenial(sourceID, result.RateLimit.Limit)
		pkghttp.WriteRateLimited(w, result.RateLimit.Limit, result.RateLimit.ResetAt)
		return
	}

	pkghttp.SetRateLimitHeaders(w, result.RateLimit.Limit, result.RateLimit.Remaining, result.RateLimit.ResetAt)

	resp := PrecheckResponse{Allowed: result.Allowed}
	if result.Lockout != nil && result.Lockout.Active(time.Now()) {
		resp.AccountLocked = true
		resp.LockedUntil = result.Lockout.LockedUntil
		resp.LockReason = result.Lockout.Reason
	}

	status := http.StatusOK
	if !resp.Allowed {
		status = http.StatusForbidden
	}
	pkghttp.WriteJSON(w, status, resp)
}

// RecordAttempt handles recording a verified attempt outcome
func (h *LoginHandler) RecordAttempt(w http.ResponseWriter, r *http.Request) {
	var req AttemptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	sourceID := strings.TrimSpace(req.SourceID)
	if sourceID == "" {
		sourceID = pkghttp.ExtractClientIP(r, h.ipConfig)
	}
	userAgent := req.UserAgent
	if userAgent == "" {
		userAgent = r.Header.Get("User-Agent")
	}

	attempt := &models.LoginAttempt{
		AccountID:         strings.TrimSpace(req.AccountID),
		SourceID:          sourceID,
		UserAgent:         userAgent,
		DeviceFingerprint: req.DeviceFingerprint,
		Outcome:           req.Outcome,
	}
	if req.AttemptTime != nil {
		attempt.AttemptTime = *req.AttemptTime
	}

	decision, err := h.orchestrator.RecordOutcome(r.Context(), attempt)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.audit.LogAssessment(pkglogger.AssessmentEvent{
		AccountID: attempt.AccountID,
		SourceID:  attempt.SourceID,
		Outcome:   attempt.Outcome,
		Score:     decision.Assessment.Score,
		Tier:      string(decision.Assessment.Tier),
		Factors:   decision.Assessment.Factors,
	})
	if decision.NewlyLocked {
		reason := ""
		if decision.Lockout.Reason != nil {
			reason = *decision.Lockout.Reason
		}
		h.audit.LogLockout(pkglogger.LockoutEvent{
			AccountID: attempt.AccountID,
			Action:    "locked",
			Reason:    reason,
			Until:     decision.Lockout.LockedUntil,
			Actor:     "engine",
		})
	}

	factors := decision.Assessment.Factors
	if factors == nil {
		factors = []string{}
	}

	resp := AttemptResponse{
		Assessment: AssessmentResponse{
			ID:         decision.Assessment.ID,
			Score:      decision.Assessment.Score,
			Tier:       string(decision.Assessment.Tier),
			Factors:    factors,
			AssessedAt: decision.Assessment.AssessedAt,
		},
		AccountLocked: decision.Lockout.Active(time.Now()),
		MFARequired:   decision.MFARequired,
	}
	if resp.AccountLocked {
		resp.LockedUntil = decision.Lockout.LockedUntil
		resp.LockReason = decision.Lockout.Reason
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

func (h *LoginHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, "Invalid attempt data")
	case errors.Is(err, models.ErrAccountLocked):
		pkghttp.WriteLocked(w, "Account is locked")
	case errors.Is(err, models.ErrStoreUnavailable):
		// Fail closed: without the history store there is no assessment
		pkghttp.WriteServiceUnavailable(w, "Assessment store unavailable")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
