package middleware

import (
	"context"
	"net/http"

	"github.com/edvin/subadmin/internal/api/response"
	"github.com/edvin/subadmin/internal/model"
)

type contextKey string

const identityKey contextKey = "identity"

// IdentitySource reports the operator the process currently acts for.
type IdentitySource interface {
	GetCurrentIdentity(ctx context.Context) *model.Identity
}

// RequireIdentity rejects requests with 401 while no operator is logged in.
func RequireIdentity(src IdentitySource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := src.GetCurrentIdentity(r.Context())
			if identity == nil {
				response.WriteError(w, http.StatusUnauthorized, "not logged in")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func WithIdentity(ctx context.Context, identity *model.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// GetIdentity returns the identity stored by RequireIdentity, or nil.
func GetIdentity(ctx context.Context) *model.Identity {
	identity, _ := ctx.Value(identityKey).(*model.Identity)
	return identity
}
