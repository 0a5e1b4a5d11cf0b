package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stendavidson/jira-ticket-editor/internal/apperrors"
	"github.com/stendavidson/jira-ticket-editor/internal/handlers/authctx"
	"github.com/stendavidson/jira-ticket-editor/internal/models"
	"github.com/stendavidson/jira-ticket-editor/internal/service/session"
)

// Allow to use a function as the credential resolver
type resolverFunc func(ctx context.Context, primary models.Credential) (models.AuthTokens, error)

func (f resolverFunc) Resolve(ctx context.Context, primary models.Credential) (models.AuthTokens, error) {
	return f(ctx, primary)
}

func TestAuthGateway(t *testing.T) {
	cookies := session.NewManager("test-secret", false)

	// Simple handler that reads the resolved tokens from context
	// Must always succeed cause the gateway either injects them or rejects the request
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokens, ok := authctx.FromContext(r.Context())
		require.True(t, ok)

		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte(tokens.RequestingAccountID))
		require.NoError(t, err, "should write account id to response")
	})

	t.Run("resolved tokens reach the handler", func(t *testing.T) {
		gateway := AuthGateway(resolverFunc(func(ctx context.Context, primary models.Credential) (models.AuthTokens, error) {
			return models.AuthTokens{
				Primary:             models.Credential{AccessToken: "access", RefreshToken: "refresh"},
				RequestingAccountID: "acc-1",
			}, nil
		}), cookies)

		srv := httptest.NewServer(gateway(handler))
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/test")
		require.NoError(t, err, "should make request to test server")
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err, "should read response body")
		defer resp.Body.Close() // nolint:errcheck

		require.Equalf(t, http.StatusOK, resp.StatusCode, "should return status OK. Resp: %s", string(body))
		require.Equal(t, "acc-1", string(body), "should return account id in response")
		require.Empty(t, resp.Cookies(), "no cookies should be written without rotation")
	})

	t.Run("rotated credentials are written as cookies", func(t *testing.T) {
		gateway := AuthGateway(resolverFunc(func(ctx context.Context, primary models.Credential) (models.AuthTokens, error) {
			return models.AuthTokens{
				Primary:             models.Credential{AccessToken: "rotated-access", RefreshToken: "rotated-refresh"},
				Rotated:             true,
				RequestingAccountID: "acc-1",
			}, nil
		}), cookies)

		srv := httptest.NewServer(gateway(handler))
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/test")
		require.NoError(t, err, "should make request to test server")
		defer resp.Body.Close() // nolint:errcheck

		require.Equal(t, http.StatusOK, resp.StatusCode)

		echo, _ := http.NewRequest(http.MethodGet, "/", nil)
		for _, c := range resp.Cookies() {
			echo.AddCookie(c)
		}
		cred := cookies.Primary(echo)
		require.Equal(t, models.Credential{AccessToken: "rotated-access", RefreshToken: "rotated-refresh"}, cred)
	})

	t.Run("unresolved session is rejected before the handler", func(t *testing.T) {
		gateway := AuthGateway(resolverFunc(func(ctx context.Context, primary models.Credential) (models.AuthTokens, error) {
			return models.AuthTokens{}, apperrors.ErrUnauthenticated
		}), cookies)

		srv := httptest.NewServer(gateway(handler))
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/test")
		require.NoError(t, err, "should make request to test server")
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err, "should read response body")
		defer resp.Body.Close() // nolint:errcheck

		require.Equalf(t, http.StatusUnauthorized, resp.StatusCode, "should return status Unauthorized. Resp: %s", string(body))
		require.JSONEq(t,
			`{
				"error": "service_error",
				"message": "Unauthorized"
			}`,
			string(body),
		)
	})
}
