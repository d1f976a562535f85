package integration

import (
	"fmt"
	"time"
)

// TestAccount generates a unique account identifier using a timestamp
func TestAccount(suffix string) string {
	return fmt.Sprintf("acct-%d-%s", time.Now().UnixNano(), suffix)
}

// AttemptPayload builds the request body for the attempt recording endpoint
func AttemptPayload(accountID, sourceID, outcome string) map[string]interface{} {
	return map[string]interface{}{
		"account_id": accountID,
		"source_id":  sourceID,
		"user_agent": "integration-test",
		"outcome":    outcome,
	}
}

// AttemptPayloadWithDevice adds a device fingerprint to the attempt body
func AttemptPayloadWithDevice(accountID, sourceID, outcome, fingerprint string) map[string]interface{} {
	payload := AttemptPayload(accountID, sourceID, outcome)
	payload["device_fingerprint"] = fingerprint
	return payload
}

// PrecheckPayload builds the request body for the precheck endpoint
func PrecheckPayload(accountID, sourceID string) map[string]interface{} {
	return map[string]interface{}{
		"account_id": accountID,
		"source_id":  sourceID,
	}
}
