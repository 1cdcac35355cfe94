package jwttoken

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "erasure/pkg/domain"
	dErrors "erasure/pkg/domain-errors"
)

const (
	testKey      = "test-signing-key"
	testIssuer   = "test-issuer"
	testAudience = "test-audience"
)

func newService(t *testing.T) (*JWTService, *testclock.Clock) {
	t.Helper()
	clk := testclock.NewClock(time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC))
	return NewJWTService(testKey, testIssuer, testAudience, WithClock(clk)), clk
}

func TestGenerateAndValidate(t *testing.T) {
	svc, clk := newService(t)
	accountID := id.NewAccountID()

	token, err := svc.GenerateAccessToken(accountID, 3, time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, accountID.String(), claims.AccountID)
	assert.Equal(t, int64(3), claims.TokenVersion)
	assert.NotEmpty(t, claims.ID)
	assert.Equal(t, clk.Now().Add(time.Hour).Unix(), claims.ExpiresAt.Unix())
}

func TestValidateTokenExpiresOnTheServiceClock(t *testing.T) {
	svc, clk := newService(t)
	token, err := svc.GenerateAccessToken(id.NewAccountID(), 0, time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.NoError(t, err)

	clk.Advance(2 * time.Minute)
	_, err = svc.ValidateToken(token)
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "token has expired"))
}

func TestValidateTokenRejects(t *testing.T) {
	svc, clk := newService(t)
	accountID := id.NewAccountID()

	sign := func(method jwt.SigningMethod, key any, claims Claims) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	valid := func() Claims {
		return Claims{
			AccountID: accountID.String(),
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(clk.Now().Add(time.Hour)),
				Issuer:    testIssuer,
				Audience:  []string{testAudience},
				ID:        "jti",
			},
		}
	}

	noExpiry := valid()
	noExpiry.ExpiresAt = nil
	otherIssuer := valid()
	otherIssuer.Issuer = "someone-else"
	otherAudience := valid()
	otherAudience.Audience = []string{"someone-else"}

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "invalid-token-string"},
		{"wrong key", sign(jwt.SigningMethodHS256, []byte("other-key"), valid())},
		{"other HMAC size", sign(jwt.SigningMethodHS512, []byte(testKey), valid())},
		{"unsigned", sign(jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid())},
		{"missing expiry", sign(jwt.SigningMethodHS256, []byte(testKey), noExpiry)},
		{"wrong issuer", sign(jwt.SigningMethodHS256, []byte(testKey), otherIssuer)},
		{"wrong audience", sign(jwt.SigningMethodHS256, []byte(testKey), otherAudience)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateToken(tt.token)
			require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "invalid token"))
		})
	}
}

func TestMiddlewareAdapter(t *testing.T) {
	svc, clk := newService(t)
	accountID := id.NewAccountID()
	token, err := svc.GenerateAccessToken(accountID, 9, time.Hour)
	require.NoError(t, err)

	claims, err := NewMiddlewareAdapter(svc).ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, accountID, claims.AccountID)
	assert.Equal(t, int64(9), claims.TokenVersion)
	assert.NotEmpty(t, claims.JTI)
	assert.Equal(t, clk.Now().Add(time.Hour).Unix(), claims.ExpiresAt.Unix())
}

func TestMiddlewareAdapterRejectsMalformedAccountID(t *testing.T) {
	svc, clk := newService(t)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		AccountID: "not-a-uuid",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(clk.Now().Add(time.Hour)),
			Issuer:    testIssuer,
			Audience:  []string{testAudience},
		},
	}).SignedString([]byte(testKey))
	require.NoError(t, err)

	_, err = NewMiddlewareAdapter(svc).ValidateToken(token)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
