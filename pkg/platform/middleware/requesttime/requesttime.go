// Package requesttime pins one "now" per request so the state change and the
// audit entry describing it carry the same instant.
package requesttime

import (
	"net/http"

	"github.com/juju/clock"

	"erasure/pkg/requestcontext"
)

// Middleware reads clk once per request, in UTC.
func Middleware(clk clock.Clock) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithTime(r.Context(), clk.Now().UTC())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
