// Package session decides whether a presented session token is still honoured:
// its token version must match the account's and its JTI must not be revoked.
package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	id "erasure/pkg/domain"
	dErrors "erasure/pkg/domain-errors"
	"erasure/pkg/platform/sentinel"
)

// TokenVersionReader reads the authoritative token version. It must not be a cache.
type TokenVersionReader interface {
	GetTokenVersion(ctx context.Context, accountID id.AccountID) (int64, error)
}

type RevocationList interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type Service struct {
	versions TokenVersionReader
	trl      RevocationList
	logger   *slog.Logger
	clock    func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func New(versions TokenVersionReader, trl RevocationList, opts ...Option) (*Service, error) {
	if versions == nil {
		return nil, errors.New("token version reader is required")
	}
	if trl == nil {
		return nil, errors.New("revocation list is required")
	}
	s := &Service{
		versions: versions,
		trl:      trl,
		logger:   slog.Default(),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ValidateTokenVersion reports whether presented equals the stored version.
// A missing account is not an error; its tokens are simply invalid.
func (s *Service) ValidateTokenVersion(ctx context.Context, accountID id.AccountID, presented int64) (bool, error) {
	current, err := s.versions.GetTokenVersion(ctx, accountID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read token version")
	}
	return current == presented, nil
}

func (s *Service) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	return s.trl.IsRevoked(ctx, jti)
}

// Logout revokes one token for the rest of its lifetime. Other sessions of the
// same account are unaffected.
func (s *Service) Logout(ctx context.Context, accountID id.AccountID, jti string, expiresAt time.Time) error {
	if jti == "" {
		return dErrors.New(dErrors.CodeBadRequest, "token has no id")
	}
	ttl := expiresAt.Sub(s.clock())
	if ttl <= 0 {
		return nil
	}
	if err := s.trl.RevokeToken(ctx, jti, ttl); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke token")
	}
	s.logger.InfoContext(ctx, "session token revoked",
		"account_id", accountID.String(),
		"ttl", ttl.String(),
	)
	return nil
}
