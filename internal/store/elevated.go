package store

import (
	"errors"
	"fmt"

	"github.com/stendavidson/jira-ticket-editor/internal/apperrors"
	"github.com/stendavidson/jira-ticket-editor/internal/models"
	"github.com/stendavidson/jira-ticket-editor/internal/secrets"
)

// ElevatedCredentials reads and writes the single elevated token pair. Both
// tokens are sealed at rest; the owning account id is stored in the clear so
// ownership checks don't require decryption.
type ElevatedCredentials struct {
	store  Store
	sealer *secrets.Sealer
}

func NewElevatedCredentials(s Store, sealer *secrets.Sealer) *ElevatedCredentials {
	return &ElevatedCredentials{store: s, sealer: sealer}
}

// Save replaces the elevated credential triple atomically.
func (e *ElevatedCredentials) Save(cred models.Credential, accountID string) error {
	sealedAccess, err := e.sealer.Seal([]byte(cred.AccessToken))
	if err != nil {
		return fmt.Errorf("failed to seal elevated token: %w", err)
	}
	sealedRefresh, err := e.sealer.Seal([]byte(cred.RefreshToken))
	if err != nil {
		return fmt.Errorf("failed to seal elevated refresh token: %w", err)
	}

	return e.store.SetAll(map[string]string{
		KeyElevatedToken:        sealedAccess,
		KeyElevatedRefreshToken: sealedRefresh,
		KeyAccountID:            accountID,
	})
}

// Load returns the stored pair and its owning account id, or
// apperrors.ErrNotElevated when no elevated credential is on file.
func (e *ElevatedCredentials) Load() (models.Credential, string, error) {
	var cred models.Credential

	sealedAccess, err := e.store.Get(KeyElevatedToken)
	if err != nil {
		return cred, "", e.missing(err)
	}
	sealedRefresh, err := e.store.Get(KeyElevatedRefreshToken)
	if err != nil {
		return cred, "", e.missing(err)
	}
	accountID, err := e.store.Get(KeyAccountID)
	if err != nil {
		return cred, "", e.missing(err)
	}

	access, err := e.sealer.Open(sealedAccess)
	if err != nil {
		return cred, "", fmt.Errorf("failed to unseal elevated token: %w", err)
	}
	refresh, err := e.sealer.Open(sealedRefresh)
	if err != nil {
		return cred, "", fmt.Errorf("failed to unseal elevated refresh token: %w", err)
	}

	cred.AccessToken = string(access)
	cred.RefreshToken = string(refresh)

	return cred, accountID, nil
}

// Exists reports whether both token halves are on file. No decryption and no
// remote validation happens here.
func (e *ElevatedCredentials) Exists() (bool, error) {
	for _, key := range []string{KeyElevatedToken, KeyElevatedRefreshToken} {
		if _, err := e.store.Get(key); err != nil {
			if errors.Is(err, apperrors.ErrKeyNotFound) {
				return false, nil
			}
			return false, err
		}
	}
	return true, nil
}

// OwnerID returns the accountId that authorized elevation, or
// apperrors.ErrNotElevated if none is stored.
func (e *ElevatedCredentials) OwnerID() (string, error) {
	accountID, err := e.store.Get(KeyAccountID)
	if err != nil {
		return "", e.missing(err)
	}
	return accountID, nil
}

// Delete removes the whole triple atomically.
func (e *ElevatedCredentials) Delete() error {
	return e.store.DeleteAll(KeyElevatedToken, KeyElevatedRefreshToken, KeyAccountID)
}

func (e *ElevatedCredentials) missing(err error) error {
	if errors.Is(err, apperrors.ErrKeyNotFound) {
		return apperrors.ErrNotElevated
	}
	return err
}
