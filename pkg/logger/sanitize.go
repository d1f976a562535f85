package logger

import (
	"log/slog"
	"strings"
)

// SanitizedAccountID masks an account identifier for logging. Email-shaped
// identifiers keep the first character and the TLD (e.g. "u***@***.com");
// opaque identifiers keep a short prefix.
func SanitizedAccountID(accountID string) string {
	if accountID == "" {
		return "[empty]"
	}

	if at := strings.Index(accountID, "@"); at > 0 {
		username := accountID[:at]
		domain := accountID[at+1:]

		if len(username) > 1 {
			username = string(username[0]) + strings.Repeat("*", len(username)-1)
		}

		domainParts := strings.Split(domain, ".")
		if len(domainParts) > 1 {
			for i := 0; i < len(domainParts)-1; i++ {
				domainParts[i] = strings.Repeat("*", len(domainParts[i]))
			}
			domain = strings.Join(domainParts, ".")
		}

		return username + "@" + domain
	}

	if len(accountID) <= 4 {
		return accountID
	}
	return accountID[:4] + strings.Repeat("*", len(accountID)-4)
}

// RedactedAttr returns a redacted slog attribute for sensitive values
// In production, returns "[REDACTED]"; in development, returns the actual value
func RedactedAttr(key, value, env string) slog.Attr {
	if env == "production" {
		return slog.String(key, "[REDACTED]")
	}
	return slog.String(key, value)
}

// SanitizeQueryString checks if query string contains sensitive parameters
// and returns true if the entire query string should be redacted
func SanitizeQueryString(rawQuery string) bool {
	sensitiveParams := map[string]bool{
		"password":    true,
		"token":       true,
		"secret":      true,
		"api_key":     true,
		"apikey":      true,
		"fingerprint": true,
		"account":     true,
		"auth":        true,
	}

	query := strings.ToLower(rawQuery)
	for param := range sensitiveParams {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}
