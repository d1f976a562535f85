package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-at-least-16-chars"

func TestTokenManager_GenerateAndValidate(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Hour)

	token, err := tm.GenerateServiceToken("login-gateway")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := tm.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "login-gateway", claims.ServiceName)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenManager_ValidateToken(t *testing.T) {
	t.Run("rejects expired tokens", func(t *testing.T) {
		tm := NewTokenManager(testSecret, -time.Minute)

		token, err := tm.GenerateServiceToken("login-gateway")
		require.NoError(t, err)

		_, err = tm.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("rejects tokens signed with a different secret", func(t *testing.T) {
		tm := NewTokenManager(testSecret, time.Hour)
		other := NewTokenManager("another-secret-16-chars-long", time.Hour)

		token, err := other.GenerateServiceToken("login-gateway")
		require.NoError(t, err)

		_, err = tm.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		tm := NewTokenManager(testSecret, time.Hour)
		_, err := tm.ValidateToken("not.a.token")
		assert.Error(t, err)
	})
}
