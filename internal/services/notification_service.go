package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/palisadeauth/palisade/internal/models"
)

// Notifier defines the interface for security notifications fired by the
// orchestrator. Implementations must not be called while per-account
// locks are held.
type Notifier interface {
	NotifyAccountLocked(ctx context.Context, state *models.LockoutState) error
	NotifyHighRiskLogin(ctx context.Context, assessment *models.RiskAssessment) error
}

// AWSSESNotifier delivers security notifications to the operations
// mailbox using AWS SES
type AWSSESNotifier struct {
	sesClient    *ses.Client
	fromAddress  string
	teamAddress  string
	logger       *slog.Logger
}

// NewAWSSESNotifier creates a new AWS SES notifier
func NewAWSSESNotifier(region, fromAddress, teamAddress string, logger *slog.Logger) (*AWSSESNotifier, error) {
	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESNotifier{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		teamAddress: teamAddress,
		logger:      logger,
	}, nil
}

// NotifyAccountLocked reports a freshly locked account
func (n *AWSSESNotifier) NotifyAccountLocked(ctx context.Context, state *models.LockoutState) error {
	reason := "unspecified"
	if state.Reason != nil {
		reason = *state.Reason
	}
	until := "unknown"
	if state.LockedUntil != nil {
		until = state.LockedUntil.UTC().Format(time.RFC3339)
	}

	subject := "Account locked: " + state.AccountID
	body := fmt.Sprintf(`An account was locked by the login risk engine.

Account:      %s
Reason:       %s
Locked until: %s

The lock clears automatically at expiry, or an operator can unlock it
through the administrative API.
`, state.AccountID, reason, until)

	return n.send(ctx, subject, body)
}

// NotifyHighRiskLogin reports a successful login that was assessed HIGH risk
func (n *AWSSESNotifier) NotifyHighRiskLogin(ctx context.Context, assessment *models.RiskAssessment) error {
	subject := "High-risk successful login: " + assessment.AccountID
	body := fmt.Sprintf(`A successful login was assessed as HIGH risk.

Account:  %s
Source:   %s
Score:    %d
Factors:  %v
Assessed: %s

Review the account's recent assessments in the dashboard.
`, assessment.AccountID, assessment.SourceID, assessment.Score, assessment.Factors,
		assessment.AssessedAt.UTC().Format(time.RFC3339))

	return n.send(ctx, subject, body)
}

func (n *AWSSESNotifier) send(ctx context.Context, subject, textBody string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(n.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{n.teamAddress},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := n.sesClient.SendEmail(ctx, input)
	if err != nil {
		n.logger.Error("failed to send security notification via SES",
			slog.String("subject", subject),
			slog.Any("error", err))
		return fmt.Errorf("failed to send notification: %w", err)
	}

	n.logger.Info("security notification sent",
		slog.String("subject", subject),
		slog.String("message_id", *result.MessageId))

	return nil
}

// NopNotifier discards notifications. Used when delivery is not configured.
type NopNotifier struct{}

func (NopNotifier) NotifyAccountLocked(ctx context.Context, state *models.LockoutState) error {
	return nil
}

func (NopNotifier) NotifyHighRiskLogin(ctx context.Context, assessment *models.RiskAssessment) error {
	return nil
}
