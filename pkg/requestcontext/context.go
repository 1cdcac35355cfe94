// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets these values; services read them without importing net/http.
//
//	accountID := requestcontext.AccountID(ctx)
//	now := requestcontext.Now(ctx)
//
// Tests and workers inject values directly:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithAccountID(ctx, accountID)
package requestcontext

import (
	"context"
	"time"

	id "erasure/pkg/domain"
)

type (
	accountIDKey    struct{}
	tokenVersionKey struct{}
	tokenIDKey      struct{}
	tokenExpiryKey  struct{}
	clientIPKey     struct{}
	userAgentKey    struct{}
	requestIDKey    struct{}
	requestTimeKey  struct{}
)

// -----------------------------------------------------------------------------
// Session (account id and token claims)
// -----------------------------------------------------------------------------

// AccountID returns the authenticated account, or the zero value when unauthenticated.
func AccountID(ctx context.Context) id.AccountID {
	if v, ok := ctx.Value(accountIDKey{}).(id.AccountID); ok {
		return v
	}
	return id.AccountID{}
}

func WithAccountID(ctx context.Context, accountID id.AccountID) context.Context {
	return context.WithValue(ctx, accountIDKey{}, accountID)
}

// TokenVersion returns the token version presented by the session token.
func TokenVersion(ctx context.Context) int64 {
	if v, ok := ctx.Value(tokenVersionKey{}).(int64); ok {
		return v
	}
	return 0
}

// TokenID returns the presented token's JTI and expiry.
func TokenID(ctx context.Context) (string, time.Time) {
	jti, _ := ctx.Value(tokenIDKey{}).(string)
	exp, _ := ctx.Value(tokenExpiryKey{}).(time.Time)
	return jti, exp
}

// WithSession injects the claims of a validated session token.
func WithSession(ctx context.Context, accountID id.AccountID, tokenVersion int64, jti string, expiresAt time.Time) context.Context {
	ctx = context.WithValue(ctx, accountIDKey{}, accountID)
	ctx = context.WithValue(ctx, tokenVersionKey{}, tokenVersion)
	ctx = context.WithValue(ctx, tokenIDKey{}, jti)
	ctx = context.WithValue(ctx, tokenExpiryKey{}, expiresAt)
	return ctx
}

// -----------------------------------------------------------------------------
// Client metadata (IP, User-Agent)
// -----------------------------------------------------------------------------

func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey{}).(string); ok {
		return ip
	}
	return ""
}

func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(userAgentKey{}).(string); ok {
		return ua
	}
	return ""
}

// WithClientMetadata injects client IP and User-Agent into a context.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey{}, clientIP)
	ctx = context.WithValue(ctx, userAgentKey{}, userAgent)
	return ctx
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(requestIDKey{}).(string); ok {
		return reqID
	}
	return ""
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (workers, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
// The deletion job uses it so every account in a run sees the same "now".
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
