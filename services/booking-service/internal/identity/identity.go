// Package identity resolves the authenticated customer of a request.
package identity

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/chairup/chairup/libs/auth"
	"github.com/chairup/chairup/libs/httpx"
)

type ctxKey struct{}

// CustomerID returns the customer attached by Middleware, or "".
func CustomerID(ctx context.Context) string {
	v, _ := ctx.Value(ctxKey{}).(string)
	return v
}

func WithCustomerID(ctx context.Context, customerID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, customerID)
}

// Middleware attaches the token subject as the customer id. Requests without
// a valid token pass through anonymously; routes that need a customer reject
// them further down.
func Middleware(v *auth.Verifier, logger *slog.Logger) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.BearerToken(r.Header.Get("Authorization"))
			if token == "" || !v.Enabled() {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := v.Verify(r.Context(), token)
			if err != nil {
				logger.Debug("bearer token rejected",
					"request_id", httpx.RequestIDFromContext(r.Context()),
					"err", err,
				)
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCustomerID(r.Context(), claims.Sub)))
		})
	}
}
