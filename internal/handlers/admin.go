package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/palisadeauth/palisade/internal/models"
	"github.com/palisadeauth/palisade/internal/repositories"
	pkghttp "github.com/palisadeauth/palisade/pkg/http"
	pkglogger "github.com/palisadeauth/palisade/pkg/logger"
)

// LockoutAdmin defines the lockout operations exposed to operators
type LockoutAdmin interface {
	Status(ctx context.Context, accountID string) (*models.LockoutState, error)
	AdminUnlock(ctx context.Context, accountID string) error
}

// AssessmentReader defines the assessment queries behind the dashboards
type AssessmentReader interface {
	ListByAccount(ctx context.Context, accountID string, limit int) ([]*models.RiskAssessment, error)
	ListByMinimumScore(ctx context.Context, minScore int, since time.Time, limit int) ([]*models.RiskAssessment, error)
}

// SourceReader defines the per-source failure aggregation
type SourceReader interface {
	ListHighFailureSources(ctx context.Context, since time.Time, minFailures, limit int) ([]repositories.SourceFailureCount, error)
}

// AdminHandler handles the operator endpoints
type AdminHandler struct {
	lockouts    LockoutAdmin
	assessments AssessmentReader
	sources     SourceReader
	audit       *pkglogger.AuditLogger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(lockouts LockoutAdmin, assessments AssessmentReader, sources SourceReader, audit *pkglogger.AuditLogger) *AdminHandler {
	return &AdminHandler{
		lockouts:    lockouts,
		assessments: assessments,
		sources:     sources,
		audit:       audit,
	}
}

// LockoutStatusResponse is the wire form of an account's lockout state
type LockoutStatusResponse struct {
	AccountID   string     `json:"account_id"`
	Locked      bool       `json:"locked"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
	Reason      *string    `json:"reason,omitempty"`
}

// GetLockout returns the current lockout state for an account
func (h *AdminHandler) GetLockout(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	if accountID == "" {
		pkghttp.WriteBadRequest(w, "Account ID is required")
		return
	}

	state, err := h.lockouts.Status(r.Context(), accountID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := LockoutStatusResponse{
		AccountID: accountID,
		Locked:    state.Active(time.Now()),
	}
	if resp.Locked {
		resp.LockedUntil = state.LockedUntil
		resp.Reason = state.Reason
	}
	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// Unlock clears an account lock ahead of its expiry
func (h *AdminHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	if accountID == "" {
		pkghttp.WriteBadRequest(w, "Account ID is required")
		return
	}

	if err := h.lockouts.AdminUnlock(r.Context(), accountID); err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.audit.LogAdminAction("account_unlock", accountID, r.RemoteAddr)
	h.audit.LogLockout(pkglogger.LockoutEvent{
		AccountID: accountID,
		Action:    "unlocked",
		Actor:     "admin",
	})

	pkghttp.WriteJSON(w, http.StatusOK, LockoutStatusResponse{AccountID: accountID, Locked: false})
}

// ListAssessments returns recent assessments for an account, newest first
func (h *AdminHandler) ListAssessments(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	if accountID == "" {
		pkghttp.WriteBadRequest(w, "Account ID is required")
		return
	}
	limit := queryInt(r, "limit", 50, 1, 500)

	assessments, err := h.assessments.ListByAccount(r.Context(), accountID, limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"account_id":  accountID,
		"assessments": toAssessmentResponses(assessments),
	})
}

// ListHighRisk returns recent assessments at or above a minimum score
func (h *AdminHandler) ListHighRisk(w http.ResponseWriter, r *http.Request) {
	minScore := queryInt(r, "min_score", 60, 0, 100)
	limit := queryInt(r, "limit", 100, 1, 500)
	since := time.Now().Add(-queryDuration(r, "window", 24*time.Hour))

	assessments, err := h.assessments.ListByMinimumScore(r.Context(), minScore, since, limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"min_score":   minScore,
		"since":       since,
		"assessments": toAccountAssessmentResponses(assessments),
	})
}

// SourceFailureResponse reports a source identifier with an elevated failure count
type SourceFailureResponse struct {
	SourceID string `json:"source_id"`
	Failures int    `json:"failures"`
}

// ListHighFailureSources returns sources with elevated failure counts
func (h *AdminHandler) ListHighFailureSources(w http.ResponseWriter, r *http.Request) {
	minFailures := queryInt(r, "min_failures", 10, 1, 10000)
	limit := queryInt(r, "limit", 100, 1, 500)
	since := time.Now().Add(-queryDuration(r, "window", 24*time.Hour))

	sources, err := h.sources.ListHighFailureSources(r.Context(), since, minFailures, limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	out := make([]SourceFailureResponse, 0, len(sources))
	for _, s := range sources {
		out = append(out, SourceFailureResponse{SourceID: s.SourceID, Failures: s.Failures})
	}
	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"since":   since,
		"sources": out,
	})
}

func (h *AdminHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Account not found")
	case errors.Is(err, models.ErrStoreUnavailable):
		pkghttp.WriteServiceUnavailable(w, "Assessment store unavailable")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

// AccountAssessmentResponse extends the assessment wire form with its account
type AccountAssessmentResponse struct {
	AssessmentResponse
	AccountID string `json:"account_id"`
	SourceID  string `json:"source_id"`
}

func toAssessmentResponses(assessments []*models.RiskAssessment) []AssessmentResponse {
	out := make([]AssessmentResponse, 0, len(assessments))
	for _, a := range assessments {
		out = append(out, toAssessmentResponse(a))
	}
	return out
}

func toAccountAssessmentResponses(assessments []*models.RiskAssessment) []AccountAssessmentResponse {
	out := make([]AccountAssessmentResponse, 0, len(assessments))
	for _, a := range assessments {
		out = append(out, AccountAssessmentResponse{
			AssessmentResponse: toAssessmentResponse(a),
			AccountID:          a.AccountID,
			SourceID:           a.SourceID,
		})
	}
	return out
}

func toAssessmentResponse(a *models.RiskAssessment) AssessmentResponse {
	factors := a.Factors
	if factors == nil {
		factors = []string{}
	}
	return AssessmentResponse{
		ID:         a.ID,
		Score:      a.Score,
		Tier:       string(a.Tier),
		Factors:    factors,
		AssessedAt: a.AssessedAt,
	}
}

func queryInt(r *http.Request, key string, def, min, max int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < min || val > max {
		return def
	}
	return val
}

func queryDuration(r *http.Request, key string, def time.Duration) time.Duration {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil || val <= 0 {
		return def
	}
	return val
}
