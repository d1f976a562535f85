package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAPIKey(t *testing.T) {
	key1, err := GenerateAPIKey()
	require.NoError(t, err)
	key2, err := GenerateAPIKey()
	require.NoError(t, err)

	assert.NotEmpty(t, key1)
	assert.NotEqual(t, key1, key2)
	assert.GreaterOrEqual(t, len(key1), MinKeyLen)
}

func TestHashAPIKey(t *testing.T) {
	t.Run("hashes and verifies", func(t *testing.T) {
		key, err := GenerateAPIKey()
		require.NoError(t, err)

		hash, err := HashAPIKey(key)
		require.NoError(t, err)
		assert.NotEqual(t, key, hash)

		assert.NoError(t, CompareAPIKey(hash, key))
	})

	t.Run("rejects short keys", func(t *testing.T) {
		_, err := HashAPIKey("too-short")
		assert.Error(t, err)
	})

	t.Run("wrong key fails comparison", func(t *testing.T) {
		key, err := GenerateAPIKey()
		require.NoError(t, err)

		hash, err := HashAPIKey(key)
		require.NoError(t, err)

		assert.Error(t, CompareAPIKey(hash, "not-the-right-key-at-all"))
	})
}
