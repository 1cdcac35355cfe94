package admin

import (
	"log/slog"
	"net/http"

	dErrors "erasure/pkg/domain-errors"
	"erasure/pkg/platform/httputil"
	request "erasure/pkg/platform/middleware/request"
	"erasure/pkg/secrets"
)

const HeaderAdminToken = "X-Admin-Token"

// RequireAdminToken checks X-Admin-Token against a bcrypt hash of the operator token.
func RequireAdminToken(tokenHash string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(HeaderAdminToken)
			if token == "" || tokenHash == "" || secrets.Verify(token, tokenHash) != nil {
				ctx := r.Context()
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", request.GetRequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "admin token required"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
