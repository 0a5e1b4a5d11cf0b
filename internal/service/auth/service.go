// Package auth implements credential resolution, the OAuth state nonce and
// the elevation state machine.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/stendavidson/jira-ticket-editor/internal/apperrors"
	"github.com/stendavidson/jira-ticket-editor/internal/logger"
	"github.com/stendavidson/jira-ticket-editor/internal/models"
)

// TokenClient is the slice of the Atlassian client this service needs.
type TokenClient interface {
	AuthCodeURL(state string, redirectURI string, elevate bool) string
	ExchangeCode(ctx context.Context, code string, redirectURI string) (models.Credential, error)
	Refresh(ctx context.Context, refreshToken string) (models.Credential, error)
	Validate(ctx context.Context, accessToken string) bool
	Identity(ctx context.Context, accessToken string) (models.Identity, error)
}

// ElevatedStore is the persistence contract for the single elevated
// credential triple.
type ElevatedStore interface {
	Save(cred models.Credential, accountID string) error
	Load() (models.Credential, string, error)
	Exists() (bool, error)
	OwnerID() (string, error)
	Delete() error
}

type Service struct {
	atl      TokenClient
	elevated ElevatedStore
	secret   []byte
	logger   logger.Logger

	// Serializes elevated-credential refreshes. Atlassian rotates refresh
	// tokens, so two concurrent refreshes of the same stored token would
	// invalidate each other.
	elevMu sync.Mutex
}

func NewService(atl TokenClient, elevated ElevatedStore, secret string, log logger.Logger) (*Service, error) {
	if atl == nil || elevated == nil {
		return nil, fmt.Errorf("token client and elevated store must not be nil")
	}
	if secret == "" {
		return nil, fmt.Errorf("server secret must not be empty")
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	return &Service{atl: atl, elevated: elevated, secret: []byte(secret), logger: log}, nil
}

func (s *Service) AuthCodeURL(state string, redirectURI string, elevate bool) string {
	return s.atl.AuthCodeURL(state, redirectURI, elevate)
}

// ValidOrRefreshed returns a usable primary credential, refreshing it when the
// access token no longer validates. rotated reports that new cookies must be
// written. apperrors.ErrUnauthenticated means there is no usable session.
func (s *Service) ValidOrRefreshed(ctx context.Context, primary models.Credential) (models.Credential, bool, error) {
	if primary.AccessToken != "" && s.atl.Validate(ctx, primary.AccessToken) {
		return primary, false, nil
	}

	if primary.RefreshToken == "" {
		return primary, false, apperrors.ErrUnauthenticated
	}

	refreshed, err := s.atl.Refresh(ctx, primary.RefreshToken)
	if err != nil || !s.atl.Validate(ctx, refreshed.AccessToken) {
		return primary, false, apperrors.ErrUnauthenticated
	}

	return refreshed, true, nil
}

// Resolve produces the full per-request AuthTokens: a validated (possibly
// rotated) primary pair, the requesting account id, and whatever elevated
// credential is on file. An absent elevated credential is not an error.
func (s *Service) Resolve(ctx context.Context, primary models.Credential) (models.AuthTokens, error) {
	tokens := models.AuthTokens{Primary: primary}

	resolved, rotated, err := s.ValidOrRefreshed(ctx, primary)
	if err != nil {
		return tokens, err
	}
	tokens.Primary = resolved
	tokens.Rotated = rotated

	identity, err := s.atl.Identity(ctx, tokens.Primary.AccessToken)
	if err != nil {
		return tokens, fmt.Errorf("%w: %w", apperrors.ErrUnauthenticated, err)
	}
	tokens.RequestingAccountID = identity.AccountID

	if cred, owner, err := s.elevated.Load(); err == nil {
		tokens.Elevated = &cred
		tokens.ElevatedAccountID = owner
	} else if !errors.Is(err, apperrors.ErrNotElevated) {
		s.logger.Warn("failed to load elevated credential", "error", err)
	}

	return tokens, nil
}

// CompleteLogin finishes a non-elevated authorization flow: exchanges the
// code and, when the account logging in owns the stored elevated credential,
// refreshes that credential as well so it stays fresh.
func (s *Service) CompleteLogin(ctx context.Context, code string, redirectURI string) (models.Credential, models.Identity, error) {
	cred, err := s.atl.ExchangeCode(ctx, code, redirectURI)
	if err != nil {
		return models.Credential{}, models.Identity{}, fmt.Errorf("%w: %w", apperrors.ErrExchangeFailed, err)
	}

	identity, err := s.atl.Identity(ctx, cred.AccessToken)
	if err != nil {
		return models.Credential{}, models.Identity{}, fmt.Errorf("%w: %w", apperrors.ErrExchangeFailed, err)
	}

	s.syncElevatedOnLogin(ctx, identity.AccountID)

	return cred, identity, nil
}

// syncElevatedOnLogin refreshes the stored elevated pair when its owner logs
// in again normally. Failures are silent: the elevated pair simply stays as
// it was and will be refreshed (or rejected) on next use.
func (s *Service) syncElevatedOnLogin(ctx context.Context, accountID string) {
	s.elevMu.Lock()
	defer s.elevMu.Unlock()

	owner, err := s.elevated.OwnerID()
	if err != nil || owner != accountID {
		return
	}

	stored, _, err := s.elevated.Load()
	if err != nil {
		return
	}

	refreshed, err := s.atl.Refresh(ctx, stored.RefreshToken)
	if err != nil {
		s.logger.Warn("failed to refresh elevated credential on login", "error", err)
		return
	}

	if err := s.elevated.Save(refreshed, owner); err != nil {
		s.logger.Warn("failed to persist refreshed elevated credential", "error", err)
	}
}

// StoreElevated finishes an elevated authorization flow. The authorizing
// account must be the logged-in account (and, when an elevated credential
// already exists, its original owner) or nothing is persisted.
func (s *Service) StoreElevated(ctx context.Context, loggedInAccountID string, code string, redirectURI string) error {
	cred, err := s.atl.ExchangeCode(ctx, code, redirectURI)
	if err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrExchangeFailed, err)
	}

	identity, err := s.atl.Identity(ctx, cred.AccessToken)
	if err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrExchangeFailed, err)
	}

	if identity.AccountID != loggedInAccountID {
		return apperrors.ErrOwnerMismatch
	}

	s.elevMu.Lock()
	defer s.elevMu.Unlock()

	if owner, err := s.elevated.OwnerID(); err == nil && owner != identity.AccountID {
		return apperrors.ErrOwnerMismatch
	}

	if err := s.elevated.Save(cred, identity.AccountID); err != nil {
		return fmt.Errorf("failed to persist elevated credential: %w", err)
	}

	return nil
}

// ElevatedTokens returns the stored elevated pair, or apperrors.ErrNotElevated.
func (s *Service) ElevatedTokens() (models.Credential, string, error) {
	return s.elevated.Load()
}

// RefreshElevated refreshes the stored elevated pair and persists the rotated
// tokens. Serialized process-wide to avoid racing refresh-token rotation.
func (s *Service) RefreshElevated(ctx context.Context) (models.Credential, error) {
	s.elevMu.Lock()
	defer s.elevMu.Unlock()

	stored, owner, err := s.elevated.Load()
	if err != nil {
		return models.Credential{}, err
	}

	refreshed, err := s.atl.Refresh(ctx, stored.RefreshToken)
	if err != nil {
		return models.Credential{}, err
	}

	if err := s.elevated.Save(refreshed, owner); err != nil {
		return models.Credential{}, fmt.Errorf("failed to persist refreshed elevated credential: %w", err)
	}

	return refreshed, nil
}

// CheckElevated reports whether both halves of the elevated pair exist. No
// remote validation happens here.
func (s *Service) CheckElevated() (bool, error) {
	return s.elevated.Exists()
}

// Deauthorize deletes the elevated triple, but only for its owning account.
func (s *Service) Deauthorize(requestingAccountID string) error {
	s.elevMu.Lock()
	defer s.elevMu.Unlock()

	owner, err := s.elevated.OwnerID()
	if err != nil {
		return err
	}
	if owner != requestingAccountID {
		return apperrors.ErrOwnerMismatch
	}

	if err := s.elevated.Delete(); err != nil {
		return fmt.Errorf("failed to delete elevated credential: %w", err)
	}

	return nil
}
