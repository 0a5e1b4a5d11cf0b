// Package proxy relays logical Jira API calls to the configured Atlassian
// site, wrapping every call in the refresh-and-retry protocol.
package proxy

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stendavidson/jira-ticket-editor/internal/apperrors"
	"github.com/stendavidson/jira-ticket-editor/internal/logger"
	"github.com/stendavidson/jira-ticket-editor/internal/models"
)

const requestTimeout = 30 * time.Second

// Upstream is one Jira API surface (REST or Agile) for a fixed cloud id.
// The two surfaces share all relay behavior and differ only in base path.
type Upstream struct {
	base   *url.URL
	http   *http.Client
	logger logger.Logger
}

// Request is a logical Jira call: the pathname below the configured base
// plus whatever the browser sent. Body is buffered so the call can be
// replayed once after a token refresh.
type Request struct {
	Method   string
	Pathname string
	Query    url.Values
	Header   http.Header
	Body     []byte
}

// RefreshFunc trades the current credential for a fresh one. Implementations
// decide where the rotated pair is persisted (cookies or the credential store).
type RefreshFunc func(ctx context.Context) (models.Credential, error)

// ValidateFunc checks that a refreshed access token is actually usable
// before the relay commits to a retry.
type ValidateFunc func(ctx context.Context, accessToken string) bool

// Outcome carries the final upstream response. Rotated is non-nil when the
// primary credential was refreshed mid-call and new cookies must be written.
type Outcome struct {
	Resp    *http.Response
	Rotated *models.Credential
}

func NewUpstream(baseURL string, httpClient *http.Client, log logger.Logger) (*Upstream, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream base url %q: %w", baseURL, err)
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	return &Upstream{base: base, http: httpClient, logger: log}, nil
}

// DoWithRetry issues the call with the given credential. On an upstream 401
// with a refresh token available it refreshes, validates the new access
// token, and retries the identical request exactly once. Whichever response
// is final gets propagated; a network failure maps to
// apperrors.ErrUpstreamUnavailable.
func (u *Upstream) DoWithRetry(ctx context.Context, req Request, cred models.Credential, refresh RefreshFunc, validate ValidateFunc) (Outcome, error) {
	resp, err := u.do(ctx, req, cred.AccessToken)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %w", apperrors.ErrUpstreamUnavailable, err)
	}

	if resp.StatusCode != http.StatusUnauthorized || cred.RefreshToken == "" || refresh == nil {
		return Outcome{Resp: resp}, nil
	}

	rotated, err := refresh(ctx)
	if err != nil {
		u.logger.Warn("mid-call token refresh failed", "pathname", req.Pathname, "error", err)
		return Outcome{Resp: resp}, nil
	}

	if validate != nil && !validate(ctx, rotated.AccessToken) {
		u.logger.Warn("refreshed token failed validation, keeping original response", "pathname", req.Pathname)
		return Outcome{Resp: resp}, nil
	}

	// Single retry with the new token; the original response is done with
	resp.Body.Close() // nolint:errcheck

	retried, err := u.do(ctx, req, rotated.AccessToken)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %w", apperrors.ErrUpstreamUnavailable, err)
	}

	return Outcome{Resp: retried, Rotated: &rotated}, nil
}

func (u *Upstream) do(ctx context.Context, req Request, accessToken string) (*http.Response, error) {
	target := *u.base
	target.Path = strings.TrimSuffix(u.base.Path, "/") + "/" + strings.TrimPrefix(req.Pathname, "/")
	target.RawQuery = req.Query.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target.String(), bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to build upstream request: %w", err)
	}

	copyRequestHeaders(httpReq.Header, req.Header)
	httpReq.Header.Set("Authorization", "Bearer "+accessToken)

	// Jira rejects multipart uploads without this header
	if strings.HasPrefix(req.Header.Get("Content-Type"), "multipart/form-data") {
		httpReq.Header.Set("X-Atlassian-Token", "nocheck")
	}

	return u.http.Do(httpReq)
}

// Headers the browser sent that make sense upstream. Authorization and
// cookies never pass through; hop-by-hop headers are owned by the transports.
var forwardedRequestHeaders = []string{
	"Accept",
	"Accept-Language",
	"Content-Type",
}

func copyRequestHeaders(dst http.Header, src http.Header) {
	for _, name := range forwardedRequestHeaders {
		if value := src.Get(name); value != "" {
			dst.Set(name, value)
		}
	}
}

// RelayResponseHeaders copies upstream response headers onto the response to
// the browser, dropping the transport-owned ones the proxy invalidates.
func RelayResponseHeaders(dst http.Header, resp *http.Response) {
	for name, values := range resp.Header {
		switch http.CanonicalHeaderKey(name) {
		case "Content-Encoding", "Content-Length", "Transfer-Encoding", "Connection":
			continue
		}
		for _, value := range values {
			dst.Add(name, value)
		}
	}

	// Callers recover attachment UUIDs from redirected media URLs
	if resp.Request != nil && resp.Request.URL != nil {
		dst.Set("Origin-Location", resp.Request.URL.String())
	}
}
