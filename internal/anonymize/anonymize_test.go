package anonymize

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "erasure/pkg/domain"
	dErrors "erasure/pkg/domain-errors"
)

func TestNewRejectsEmptySecret(t *testing.T) {
	_, err := New("")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestKey(t *testing.T) {
	a, err := New("secret")
	require.NoError(t, err)
	accountID := id.AccountID(uuid.MustParse("8b5f2c1e-7d3a-4e8b-9c0f-1a2b3c4d5e6f"))

	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, a.Key(accountID), a.Key(accountID))
	})

	t.Run("hex encoded sha256", func(t *testing.T) {
		key := a.Key(accountID)
		assert.Len(t, key, 64)
		assert.Regexp(t, "^[0-9a-f]{64}$", key)
		assert.NotContains(t, key, accountID.String())
	})

	t.Run("distinct accounts produce distinct keys", func(t *testing.T) {
		seen := make(map[string]bool)
		for range 1000 {
			key := a.Key(id.NewAccountID())
			assert.False(t, seen[key])
			seen[key] = true
		}
	})

	t.Run("depends on the secret", func(t *testing.T) {
		other, err := New("other-secret")
		require.NoError(t, err)
		assert.NotEqual(t, a.Key(accountID), other.Key(accountID))
	})
}
