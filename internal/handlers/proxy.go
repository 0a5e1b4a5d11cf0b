package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/stendavidson/jira-ticket-editor/internal/apperrors"
	"github.com/stendavidson/jira-ticket-editor/internal/handlers/authctx"
	"github.com/stendavidson/jira-ticket-editor/internal/handlers/render"
	"github.com/stendavidson/jira-ticket-editor/internal/logger"
	"github.com/stendavidson/jira-ticket-editor/internal/models"
	"github.com/stendavidson/jira-ticket-editor/internal/service/proxy"
	"github.com/stendavidson/jira-ticket-editor/internal/service/session"
)

// Upstream bodies are buffered for the single-retry protocol; 50 MiB covers
// Jira's default attachment limit.
const maxProxyBody = 50 << 20

type proxyTokenClient interface {
	Refresh(ctx context.Context, refreshToken string) (models.Credential, error)
	Validate(ctx context.Context, accessToken string) bool
}

type elevatedRefresher interface {
	RefreshElevated(ctx context.Context) (models.Credential, error)
}

// ProxyHandler relays browser calls to the Jira REST and Agile surfaces using
// server-side credentials. It runs behind AuthGateway, so every request
// arrives with resolved tokens in context.
type ProxyHandler struct {
	api     *proxy.Upstream
	agile   *proxy.Upstream
	atl     proxyTokenClient
	auth    elevatedRefresher
	cookies *session.Manager
	logger  logger.Logger
}

func NewProxy(api *proxy.Upstream, agile *proxy.Upstream, atl proxyTokenClient, auth elevatedRefresher, cookies *session.Manager, log logger.Logger) *ProxyHandler {
	return &ProxyHandler{api: api, agile: agile, atl: atl, auth: auth, cookies: cookies, logger: log}
}

func (h *ProxyHandler) relayAPI(w http.ResponseWriter, r *http.Request) {
	h.relay(w, r, h.api)
}

func (h *ProxyHandler) relayAgile(w http.ResponseWriter, r *http.Request) {
	h.relay(w, r, h.agile)
}

func (h *ProxyHandler) relay(w http.ResponseWriter, r *http.Request, upstream *proxy.Upstream) {
	tokens, ok := authctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	query := r.URL.Query()
	pathname := query.Get("pathname")
	if pathname == "" {
		render.ServiceError(w, "Missing pathname query parameter", http.StatusBadRequest)
		return
	}

	elevate := query.Get("elevate") == "true"
	query.Del("pathname")
	query.Del("elevate")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxProxyBody))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			render.ServiceError(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		render.ServiceError(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	req := proxy.Request{
		Method:   r.Method,
		Pathname: pathname,
		Query:    query,
		Header:   r.Header,
		Body:     body,
	}

	// Elevated calls refresh through the credential store; primary calls
	// refresh the session pair and rotate cookies via Outcome.Rotated.
	cred := tokens.Primary
	refresh := proxy.RefreshFunc(func(ctx context.Context) (models.Credential, error) {
		return h.atl.Refresh(ctx, tokens.Primary.RefreshToken)
	})
	usedElevated := false

	if elevate && tokens.Elevated != nil {
		cred = *tokens.Elevated
		refresh = h.auth.RefreshElevated
		usedElevated = true
	}

	out, err := upstream.DoWithRetry(r.Context(), req, cred, refresh, h.atl.Validate)
	if err != nil {
		if errors.Is(err, apperrors.ErrUpstreamUnavailable) {
			render.ServiceError(w, "Upstream unavailable", http.StatusBadGateway)
			return
		}
		h.logger.Error("proxy relay failed", "pathname", pathname, "error", err)
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	defer out.Resp.Body.Close() // nolint:errcheck

	if out.Rotated != nil && !usedElevated {
		h.cookies.SetPrimary(w, *out.Rotated)
	}

	proxy.RelayResponseHeaders(w.Header(), out.Resp)
	w.WriteHeader(out.Resp.StatusCode)
	_, _ = io.Copy(w, out.Resp.Body)
}
