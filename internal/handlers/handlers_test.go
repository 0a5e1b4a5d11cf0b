package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stendavidson/jira-ticket-editor/internal/apperrors"
	"github.com/stendavidson/jira-ticket-editor/internal/logger"
	"github.com/stendavidson/jira-ticket-editor/internal/models"
	"github.com/stendavidson/jira-ticket-editor/internal/service/auth"
	"github.com/stendavidson/jira-ticket-editor/internal/service/proxy"
	"github.com/stendavidson/jira-ticket-editor/internal/service/session"
)

// fakeAtlassian scripts the token endpoints so handler tests can run the
// production auth service against deterministic upstream behavior.
type fakeAtlassian struct {
	mu        sync.Mutex
	valid     map[string]string            // access token -> account id
	exchanges map[string]models.Credential // auth code -> credential
	refreshes map[string]models.Credential // refresh token -> rotated pair

	exchangeCalls int
	refreshCalls  int
}

func newFakeAtlassian() *fakeAtlassian {
	return &fakeAtlassian{
		valid:     map[string]string{},
		exchanges: map[string]models.Credential{},
		refreshes: map[string]models.Credential{},
	}
}

func (f *fakeAtlassian) AuthCodeURL(state string, redirectURI string, elevate bool) string {
	v := url.Values{}
	v.Set("state", state)
	v.Set("redirect_uri", redirectURI)
	if elevate {
		v.Set("scope", "write")
	}
	return "https://auth.example/authorize?" + v.Encode()
}

func (f *fakeAtlassian) ExchangeCode(_ context.Context, code string, _ string) (models.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.exchangeCalls++
	cred, ok := f.exchanges[code]
	if !ok {
		return models.Credential{}, errors.New("unknown authorization code")
	}
	return cred, nil
}

func (f *fakeAtlassian) Refresh(_ context.Context, refreshToken string) (models.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.refreshCalls++
	cred, ok := f.refreshes[refreshToken]
	if !ok {
		return models.Credential{}, errors.New("refresh token rejected")
	}
	return cred, nil
}

func (f *fakeAtlassian) Validate(_ context.Context, accessToken string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, ok := f.valid[accessToken]
	return ok
}

func (f *fakeAtlassian) Identity(_ context.Context, accessToken string) (models.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id, ok := f.valid[accessToken]
	if !ok {
		return models.Identity{}, errors.New("token not recognized")
	}
	return models.Identity{AccountID: id}, nil
}

func (f *fakeAtlassian) exchangeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exchangeCalls
}

func (f *fakeAtlassian) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls
}

// memElevated is an in-memory stand-in for the pebble-backed elevated store.
type memElevated struct {
	mu    sync.Mutex
	cred  models.Credential
	owner string
	set   bool
}

func (m *memElevated) Save(cred models.Credential, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cred, m.owner, m.set = cred, accountID, true
	return nil
}

func (m *memElevated) Load() (models.Credential, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.set {
		return models.Credential{}, "", apperrors.ErrNotElevated
	}
	return m.cred, m.owner, nil
}

func (m *memElevated) Exists() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.set, nil
}

func (m *memElevated) OwnerID() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.set {
		return "", apperrors.ErrNotElevated
	}
	return m.owner, nil
}

func (m *memElevated) Delete() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cred, m.owner, m.set = models.Credential{}, "", false
	return nil
}

type testEnv struct {
	atl      *fakeAtlassian
	elevated *memElevated
	auth     *auth.Service
	cookies  *session.Manager
	srv      *httptest.Server
	client   *http.Client
}

// newTestEnv wires the full production stack (auth service, cookie manager,
// router) over the scripted Atlassian fake. jiraURL points the proxy
// upstreams at a test server; pass an unused URL when the test never proxies.
func newTestEnv(t *testing.T, jiraURL string) *testEnv {
	t.Helper()

	atl := newFakeAtlassian()
	elevated := &memElevated{}
	log := logger.NewNoOpLogger()

	authSvc, err := auth.NewService(atl, elevated, "test-secret", log)
	require.NoError(t, err, "auth service should be created without errors")

	cookies := session.NewManager("test-secret", false)

	api, err := proxy.NewUpstream(jiraURL+"/rest/api/3", nil, log)
	require.NoError(t, err)
	agile, err := proxy.NewUpstream(jiraURL+"/rest/agile/1.0", nil, log)
	require.NoError(t, err)

	oauthH := NewOAuth(authSvc, cookies, "http://app.example", log)
	proxyH := NewProxy(api, agile, atl, authSvc, cookies, log)

	srv := httptest.NewServer(NewRouter(authSvc, oauthH, proxyH, cookies, log))
	t.Cleanup(srv.Close)

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &testEnv{
		atl:      atl,
		elevated: elevated,
		auth:     authSvc,
		cookies:  cookies,
		srv:      srv,
		client:   client,
	}
}

// primaryCookies produces signed primary cookies the way the server itself
// writes them, so tests can fabricate a logged-in browser.
func (e *testEnv) primaryCookies(cred models.Credential) []*http.Cookie {
	rec := httptest.NewRecorder()
	e.cookies.SetPrimary(rec, cred)
	return rec.Result().Cookies()
}

func (e *testEnv) do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()

	resp, err := e.client.Do(req)
	require.NoError(t, err, "request should not fail at transport level")
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}
