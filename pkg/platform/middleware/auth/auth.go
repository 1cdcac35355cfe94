package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	id "erasure/pkg/domain"
	dErrors "erasure/pkg/domain-errors"
	"erasure/pkg/platform/httputil"
	request "erasure/pkg/platform/middleware/request"
	"erasure/pkg/requestcontext"
)

// JWTValidator defines the interface for validating JWT tokens
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// TokenRevocationChecker defines the interface for checking if tokens are revoked
type TokenRevocationChecker interface {
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// TokenVersionChecker compares the presented token version with the account's stored version.
type TokenVersionChecker interface {
	ValidateTokenVersion(ctx context.Context, accountID id.AccountID, presented int64) (bool, error)
}

// JWTClaims represents the claims we expect from the JWT validator
type JWTClaims struct {
	AccountID    id.AccountID
	TokenVersion int64
	JTI          string // JWT ID for revocation tracking
	ExpiresAt    time.Time
}

func unauthorized(w http.ResponseWriter, msg string) {
	httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, msg))
}

// RequireAuth validates the bearer token, rejects revoked JTIs and stale token
// versions, and stores the session claims in the request context.
// revocationChecker may be nil; versionChecker is mandatory.
func RequireAuth(validator JWTValidator, revocationChecker TokenRevocationChecker, versionChecker TokenVersionChecker, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := request.GetRequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				unauthorized(w, "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				unauthorized(w, "Invalid or expired token")
				return
			}

			if revocationChecker != nil {
				if claims.JTI == "" {
					logger.WarnContext(ctx, "unauthorized access - missing token jti",
						"request_id", requestID,
					)
					unauthorized(w, "Invalid or expired token")
					return
				}

				revoked, err := revocationChecker.IsTokenRevoked(ctx, claims.JTI)
				if err != nil {
					logger.ErrorContext(ctx, "failed to check token revocation",
						"error", err,
						"request_id", requestID,
					)
					httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to validate token"))
					return
				}
				if revoked {
					logger.WarnContext(ctx, "unauthorized access - token revoked",
						"jti", claims.JTI,
						"request_id", requestID,
					)
					unauthorized(w, "Token has been revoked")
					return
				}
			}

			current, err := versionChecker.ValidateTokenVersion(ctx, claims.AccountID, claims.TokenVersion)
			if err != nil {
				logger.ErrorContext(ctx, "failed to check token version",
					"error", err,
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to validate token"))
				return
			}
			if !current {
				logger.WarnContext(ctx, "unauthorized access - stale token version",
					"account_id", claims.AccountID,
					"token_version", claims.TokenVersion,
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeStaleSessionToken, "session is no longer valid, sign in again"))
				return
			}

			ctx = requestcontext.WithSession(ctx, claims.AccountID, claims.TokenVersion, claims.JTI, claims.ExpiresAt)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
