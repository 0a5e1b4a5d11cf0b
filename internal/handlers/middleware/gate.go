package middleware

import (
	"context"
	"net/http"

	"github.com/stendavidson/jira-ticket-editor/internal/models"
)

type sessionResolver interface {
	ValidOrRefreshed(ctx context.Context, primary models.Credential) (models.Credential, bool, error)
}

type gateCookies interface {
	Primary(r *http.Request) models.Credential
	SetPrimary(w http.ResponseWriter, cred models.Credential)
	ClearPrimary(w http.ResponseWriter)
	Source(r *http.Request) (string, bool)
	SetSource(w http.ResponseWriter, source string)
	ClearSource(w http.ResponseWriter)
}

// SessionGate is the coarse page-level gate: protected pages require a valid
// or refreshable primary session, anything else bounces to the login page.
// The requested path is saved in the source cookie so login can return there.
// A pending source cookie triggers a one-time redirect-then-clear.
func SessionGate(resolver sessionResolver, cookies gateCookies, loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cred, rotated, err := resolver.ValidOrRefreshed(r.Context(), cookies.Primary(r))
			if err != nil {
				cookies.ClearPrimary(w)
				cookies.SetSource(w, r.URL.Path)
				http.Redirect(w, r, loginPath, http.StatusFound)
				return
			}

			if rotated {
				cookies.SetPrimary(w, cred)
			}

			if source, ok := cookies.Source(r); ok {
				cookies.ClearSource(w)
				if source != r.URL.Path {
					http.Redirect(w, r, source, http.StatusFound)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
