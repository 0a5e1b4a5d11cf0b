package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/stendavidson/jira-ticket-editor/internal/apperrors"
	"github.com/stendavidson/jira-ticket-editor/internal/handlers/render"
	"github.com/stendavidson/jira-ticket-editor/internal/logger"
	"github.com/stendavidson/jira-ticket-editor/internal/models"
	"github.com/stendavidson/jira-ticket-editor/internal/service/session"
)

type authService interface {
	AuthCodeURL(state string, redirectURI string, elevate bool) string
	NewState() (state string, mac string, err error)
	VerifyState(state string, storedMAC string) bool
	ValidOrRefreshed(ctx context.Context, primary models.Credential) (models.Credential, bool, error)
	Resolve(ctx context.Context, primary models.Credential) (models.AuthTokens, error)
	CompleteLogin(ctx context.Context, code string, redirectURI string) (models.Credential, models.Identity, error)
	StoreElevated(ctx context.Context, loggedInAccountID string, code string, redirectURI string) error
}

// OAuthHandler drives the authorization-code flow for both credential tiers:
// the normal login grant and the elevated write-capable grant.
type OAuthHandler struct {
	auth        authService
	cookies     *session.Manager
	redirectURI string
	logger      logger.Logger
}

func NewOAuth(auth authService, cookies *session.Manager, baseURL string, log logger.Logger) *OAuthHandler {
	return &OAuthHandler{
		auth:        auth,
		cookies:     cookies,
		redirectURI: baseURL + "/reflector",
		logger:      log,
	}
}

// login begins the normal flow. A still-valid session short-circuits straight
// back to source without bouncing through Atlassian.
func (h *OAuthHandler) login(w http.ResponseWriter, r *http.Request) {
	source := sourceParam(r)

	cred, rotated, err := h.auth.ValidOrRefreshed(r.Context(), h.cookies.Primary(r))
	if err == nil {
		if rotated {
			h.cookies.SetPrimary(w, cred)
		}
		http.Redirect(w, r, source, http.StatusFound)
		return
	}

	h.redirectToAuthorize(w, r, source, false)
}

// authorize begins the elevated flow. It requires a live primary session;
// anyone else is sent to login first.
func (h *OAuthHandler) authorize(w http.ResponseWriter, r *http.Request) {
	source := sourceParam(r)

	cred, rotated, err := h.auth.ValidOrRefreshed(r.Context(), h.cookies.Primary(r))
	if err != nil {
		http.Redirect(w, r, "/internal/login?source="+url.QueryEscape(source), http.StatusFound)
		return
	}
	if rotated {
		h.cookies.SetPrimary(w, cred)
	}

	h.redirectToAuthorize(w, r, source, true)
}

func (h *OAuthHandler) redirectToAuthorize(w http.ResponseWriter, r *http.Request, source string, elevate bool) {
	state, mac, err := h.auth.NewState()
	if err != nil {
		h.logger.Error("failed to create state nonce", "error", err)
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.cookies.SetFlow(w, mac, elevate, source)
	http.Redirect(w, r, h.auth.AuthCodeURL(state, h.redirectURI, elevate), http.StatusFound)
}

func (h *OAuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	h.cookies.ClearPrimary(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

// reflector is the OAuth redirect target. The authorization server lands the
// browser here with code and state in the query; this page relays them to
// store-credentials and then navigates to wherever the flow started.
func (h *OAuthHandler) reflector(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(reflectorHTML))
}

const reflectorHTML = `<!DOCTYPE html>
<html>
<head><title>Signing in…</title></head>
<body>
<script>
(async () => {
	const params = new URLSearchParams(window.location.search);
	const resp = await fetch("/store-credentials", {
		method: "POST",
		headers: { "Content-Type": "application/json" },
		body: JSON.stringify({ authCode: params.get("code") || "", state: params.get("state") || "" }),
	});
	if (!resp.ok) {
		document.body.textContent = "Authorization failed.";
		return;
	}
	const data = await resp.json();
	window.location.replace(data.source || "/");
})();
</script>
</body>
</html>
`

// storeCredentials completes the flow begun at login/authorize. The returned
// state must verify against the nonce HMAC set at redirect time before any
// code exchange happens.
func (h *OAuthHandler) storeCredentials(w http.ResponseWriter, r *http.Request) {
	type StoreRequest struct {
		AuthCode string `json:"authCode" validate:"required"`
		State    string `json:"state" validate:"required"`
	}
	type StoreResponse struct {
		Elevate bool   `json:"elevate"`
		Source  string `json:"source"`
	}

	data, err := render.BindAndValidate[StoreRequest](w, r)
	if err != nil {
		return
	}

	mac, ok := h.cookies.NonceMAC(r)
	if !ok || !h.auth.VerifyState(data.State, mac) {
		render.ServiceError(w, "OAuth state verification failed", http.StatusBadRequest)
		return
	}

	elevate := h.cookies.ElevateFlag(r)
	source, _ := h.cookies.Source(r)
	if source == "" {
		source = "/"
	}

	tokens, resolveErr := h.auth.Resolve(r.Context(), h.cookies.Primary(r))
	loggedIn := resolveErr == nil

	switch {
	case elevate && loggedIn:
		if err := h.auth.StoreElevated(r.Context(), tokens.RequestingAccountID, data.AuthCode, h.redirectURI); err != nil {
			h.renderStoreError(w, err)
			return
		}
		if tokens.Rotated {
			h.cookies.SetPrimary(w, tokens.Primary)
		}

	case !elevate && !loggedIn:
		cred, _, err := h.auth.CompleteLogin(r.Context(), data.AuthCode, h.redirectURI)
		if err != nil {
			h.renderStoreError(w, err)
			return
		}
		h.cookies.SetPrimary(w, cred)

	default:
		// elevate without a session, or a plain login over a live session
		render.ServiceError(w, "Invalid authorization flow state", http.StatusBadRequest)
		return
	}

	h.cookies.ClearFlow(w)
	render.JSON(w, StoreResponse{Elevate: elevate, Source: source})
}

func (h *OAuthHandler) renderStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperrors.ErrOwnerMismatch):
		render.ServiceError(w, "Authorizing account doesn't match logged-in account", http.StatusBadRequest)
	case errors.Is(err, apperrors.ErrExchangeFailed):
		render.ServiceError(w, "Authorization code exchange failed", http.StatusBadRequest)
	default:
		h.logger.Error("failed to store credentials", "error", err)
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func sourceParam(r *http.Request) string {
	source := r.URL.Query().Get("source")
	if source == "" || source[0] != '/' {
		return "/"
	}
	return source
}
