package middleware

import (
	"context"
	"net/http"

	"github.com/stendavidson/jira-ticket-editor/internal/handlers/authctx"
	"github.com/stendavidson/jira-ticket-editor/internal/handlers/render"
	"github.com/stendavidson/jira-ticket-editor/internal/models"
)

type authResolver interface {
	Resolve(ctx context.Context, primary models.Credential) (models.AuthTokens, error)
}

type authCookies interface {
	Primary(r *http.Request) models.Credential
	SetPrimary(w http.ResponseWriter, cred models.Credential)
	ClearPrimary(w http.ResponseWriter)
}

// AuthGateway resolves the caller's primary and elevated credentials before
// the downstream handler runs. The handler never sees an unauthenticated
// primary session; it may see an absent elevated one. Rotated cookies are
// written up front, so they reach the browser no matter what the handler does.
func AuthGateway(resolver authResolver, cookies authCookies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokens, err := resolver.Resolve(r.Context(), cookies.Primary(r))
			if err != nil {
				cookies.ClearPrimary(w)
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if tokens.Rotated {
				cookies.SetPrimary(w, tokens.Primary)
			}

			ctx := authctx.New(r.Context(), tokens)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
