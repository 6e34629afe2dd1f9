package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/Vovarama1992/medassist-core/internal/apperr"
	"github.com/Vovarama1992/medassist-core/internal/httpx"
)

type contextKey struct{}

// IdentityFrom returns the identity the bearer middleware stored for
// this request.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

// WithIdentity injects an identity directly, bypassing token parsing.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// RequireBearer verifies the Authorization bearer token and injects the
// parsed identity into the request context.
func RequireBearer(signer *Signer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			const scheme = "Bearer "
			if !strings.HasPrefix(header, scheme) {
				httpx.WriteProblem(w, r, apperr.New(apperr.KindAuth, "bearer_token_missing", nil))
				return
			}
			id, err := signer.Parse(strings.TrimSpace(strings.TrimPrefix(header, scheme)))
			if err != nil {
				httpx.WriteProblem(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(
				context.WithValue(r.Context(), contextKey{}, id),
			))
		})
	}
}
