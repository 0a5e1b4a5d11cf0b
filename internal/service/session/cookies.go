// Package session owns every cookie this service writes, so handlers and
// middleware never duplicate cookie attributes.
package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/stendavidson/jira-ticket-editor/internal/models"
)

// Cookie names. authToken/refreshToken hold the primary credential, the rest
// are transient OAuth flow state.
const (
	CookieAuthToken    = "authToken"
	CookieRefreshToken = "refreshToken"
	CookieNonce        = "user-nonce"
	CookieElevate      = "elevate"
	CookieSource       = "source"
)

const (
	primaryMaxAge = 30 * 24 * time.Hour
	flowMaxAge    = 10 * time.Minute
)

// Manager writes and reads the service cookies. Primary token cookies are
// signed with the server secret; a cookie whose tag doesn't verify reads as
// absent. Secure is only set in production so local development works over
// plain HTTP.
type Manager struct {
	secret []byte
	secure bool
}

func NewManager(secret string, secure bool) *Manager {
	return &Manager{secret: []byte(secret), secure: secure}
}

// SetPrimary writes the rolling 30-day primary credential cookies.
func (m *Manager) SetPrimary(w http.ResponseWriter, cred models.Credential) {
	http.SetCookie(w, m.primaryCookie(CookieAuthToken, m.sign(cred.AccessToken), int(primaryMaxAge.Seconds())))
	http.SetCookie(w, m.primaryCookie(CookieRefreshToken, m.sign(cred.RefreshToken), int(primaryMaxAge.Seconds())))
}

// ClearPrimary expires both primary cookies.
func (m *Manager) ClearPrimary(w http.ResponseWriter) {
	http.SetCookie(w, m.primaryCookie(CookieAuthToken, "", -1))
	http.SetCookie(w, m.primaryCookie(CookieRefreshToken, "", -1))
}

// Primary reads the primary credential from the request cookies. Either field
// may come back empty when its cookie is missing or its signature is invalid.
func (m *Manager) Primary(r *http.Request) models.Credential {
	var cred models.Credential

	if c, err := r.Cookie(CookieAuthToken); err == nil {
		if value, ok := m.verify(c.Value); ok {
			cred.AccessToken = value
		}
	}
	if c, err := r.Cookie(CookieRefreshToken); err == nil {
		if value, ok := m.verify(c.Value); ok {
			cred.RefreshToken = value
		}
	}

	return cred
}

// SetFlow writes the transient OAuth flow cookies: the HMAC of the state
// nonce, the elevate flag and the post-login return path.
func (m *Manager) SetFlow(w http.ResponseWriter, nonceMAC string, elevate bool, source string) {
	http.SetCookie(w, m.flowCookie(CookieNonce, nonceMAC, int(flowMaxAge.Seconds())))

	elevateValue := "false"
	if elevate {
		elevateValue = "true"
	}
	http.SetCookie(w, m.flowCookie(CookieElevate, elevateValue, int(flowMaxAge.Seconds())))
	http.SetCookie(w, m.flowCookie(CookieSource, source, int(flowMaxAge.Seconds())))
}

// ClearFlow expires the nonce and elevate cookies. The source cookie survives
// until SessionGate performs its one-time redirect.
func (m *Manager) ClearFlow(w http.ResponseWriter) {
	http.SetCookie(w, m.flowCookie(CookieNonce, "", -1))
	http.SetCookie(w, m.flowCookie(CookieElevate, "", -1))
}

func (m *Manager) NonceMAC(r *http.Request) (string, bool) {
	c, err := r.Cookie(CookieNonce)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func (m *Manager) ElevateFlag(r *http.Request) bool {
	c, err := r.Cookie(CookieElevate)
	return err == nil && c.Value == "true"
}

func (m *Manager) Source(r *http.Request) (string, bool) {
	c, err := r.Cookie(CookieSource)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func (m *Manager) SetSource(w http.ResponseWriter, source string) {
	http.SetCookie(w, m.flowCookie(CookieSource, source, int(flowMaxAge.Seconds())))
}

func (m *Manager) ClearSource(w http.ResponseWriter) {
	http.SetCookie(w, m.flowCookie(CookieSource, "", -1))
}

func (m *Manager) primaryCookie(name string, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// Flow cookies are SameSite=Lax: the browser arrives at /reflector from the
// Atlassian origin, and Strict cookies would not be sent on that navigation.
func (m *Manager) flowCookie(name string, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// sign encodes value as base64(value).hex(hmac) so tokens with separator
// characters stay intact.
func (m *Manager) sign(value string) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(value))
	return base64.RawURLEncoding.EncodeToString([]byte(value)) + "." + hex.EncodeToString(mac.Sum(nil))
}

func (m *Manager) verify(signed string) (string, bool) {
	encoded, tag, found := strings.Cut(signed, ".")
	if !found {
		return "", false
	}

	value, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", false
	}

	mac := hmac.New(sha256.New, m.secret)
	mac.Write(value)
	want := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(tag), []byte(want)) {
		return "", false
	}

	return string(value), true
}
