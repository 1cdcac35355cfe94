package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "erasure/pkg/domain-errors"
)

func TestGenerateHashVerify(t *testing.T) {
	secret, err := Generate()
	require.NoError(t, err)
	assert.Len(t, secret, 43)

	hash, err := Hash(secret)
	require.NoError(t, err)
	assert.NotEqual(t, secret, hash)

	assert.NoError(t, Verify(secret, hash))

	err = Verify("wrong", hash)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestHashRejectsEmpty(t *testing.T) {
	_, err := Hash("")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestVerifyMalformedHash(t *testing.T) {
	err := Verify("secret", "not-a-bcrypt-hash")
	require.Error(t, err)
	assert.False(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
