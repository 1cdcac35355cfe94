package testutil

import (
	"net/http"
	"time"

	id "erasure/pkg/domain"
	"erasure/pkg/requestcontext"
)

// WithAccount attaches an authenticated session to the request context, the way
// the auth middleware does after a token passes validation.
func WithAccount(req *http.Request, accountID id.AccountID, tokenVersion int64) *http.Request {
	ctx := requestcontext.WithSession(req.Context(), accountID, tokenVersion, "test-jti", time.Now().Add(time.Hour))
	return req.WithContext(ctx)
}

// WithSession attaches a session with an explicit token id and expiry.
func WithSession(req *http.Request, accountID id.AccountID, tokenVersion int64, jti string, expiresAt time.Time) *http.Request {
	ctx := requestcontext.WithSession(req.Context(), accountID, tokenVersion, jti, expiresAt)
	return req.WithContext(ctx)
}
