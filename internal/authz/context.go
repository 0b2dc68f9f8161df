package authz

import (
	"context"
	"net/http"

	"github.com/atelierhq/atelier-api/internal/authprovider"
)

type contextKey string

const principalKey contextKey = "principal"

// WithPrincipal stores the verified session principal on the context.
func WithPrincipal(ctx context.Context, principal authprovider.Principal) context.Context {
	return context.WithValue(ctx, principalKey, principal)
}

func PrincipalFromRequest(r *http.Request) (authprovider.Principal, bool) {
	principal, ok := r.Context().Value(principalKey).(authprovider.Principal)
	if !ok || principal.ID == "" {
		return authprovider.Principal{}, false
	}
	return principal, true
}
