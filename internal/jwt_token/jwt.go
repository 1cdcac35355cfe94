package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/juju/clock"

	id "erasure/pkg/domain"
	dErrors "erasure/pkg/domain-errors"
	authmw "erasure/pkg/platform/middleware/auth"
)

// Claims represents the JWT claims carried by session tokens.
// TokenVersion must equal the account's stored version for the session to be valid.
type Claims struct {
	AccountID    string `json:"account_id"`
	TokenVersion int64  `json:"token_version"`
	jwt.RegisteredClaims
}

// JWTService validates (and, for tooling and tests, issues) HS256 session tokens.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
	clock      clock.Clock
}

type Option func(*JWTService)

// WithClock drives both issuing and expiry checks.
func WithClock(clk clock.Clock) Option {
	return func(s *JWTService) {
		if clk != nil {
			s.clock = clk
		}
	}
}

func NewJWTService(signingKey string, issuer string, audience string, opts ...Option) *JWTService {
	s := &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		clock:      clock.WallClock,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *JWTService) GenerateAccessToken(accountID id.AccountID, tokenVersion int64, expiresIn time.Duration) (string, error) {
	now := s.clock.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		AccountID:    accountID.String(),
		TokenVersion: tokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

// ValidateToken accepts only HS256 tokens from our issuer, for our audience,
// carrying an expiry. Every failure is reported as unauthorized.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return s.signingKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
	case err != nil:
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	return claims, nil
}

// MiddlewareAdapter exposes the service through the auth middleware's validator port.
type MiddlewareAdapter struct {
	service *JWTService
}

func NewMiddlewareAdapter(service *JWTService) *MiddlewareAdapter {
	return &MiddlewareAdapter{service: service}
}

func (a *MiddlewareAdapter) ValidateToken(tokenString string) (*authmw.JWTClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	accountID, err := id.ParseAccountID(claims.AccountID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return &authmw.JWTClaims{
		AccountID:    accountID,
		TokenVersion: claims.TokenVersion,
		JTI:          claims.ID,
		ExpiresAt:    expiresAt,
	}, nil
}
