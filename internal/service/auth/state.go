package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// NewState generates the OAuth state nonce and the HMAC tag stored in the
// user-nonce cookie. The raw nonce travels through the authorization server;
// only its HMAC touches the browser.
func (s *Service) NewState() (state string, mac string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("failed to generate state nonce: %w", err)
	}

	state = hex.EncodeToString(b)
	return state, s.stateMAC(state), nil
}

// VerifyState checks the state returned by the authorization server against
// the HMAC stored at redirect time. A failed check means the callback is
// untrusted and no code exchange may happen.
func (s *Service) VerifyState(state string, storedMAC string) bool {
	if state == "" || storedMAC == "" {
		return false
	}
	return hmac.Equal([]byte(s.stateMAC(state)), []byte(storedMAC))
}

func (s *Service) stateMAC(state string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(state))
	return hex.EncodeToString(mac.Sum(nil))
}
