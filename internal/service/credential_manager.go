package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vipul43/kiwis-outreach/internal/models"
	"github.com/vipul43/kiwis-outreach/internal/repository"
)

// DefaultTokenExpirySkew treats access tokens as expired this long before
// their recorded expiry so a send never starts with a token about to lapse.
const DefaultTokenExpirySkew = 5 * time.Minute

// CredentialStore persists mailbox credentials
type CredentialStore interface {
	GetByUserID(ctx context.Context, userID string) (*models.Account, error)
	UpdateTokens(ctx context.Context, accountID string, accessToken string, refreshToken *string, accessTokenExpiresAt time.Time) error
	ClearTokens(ctx context.Context, accountID string) error
}

// TokenProvider talks to the OAuth token endpoints of the mail provider
type TokenProvider interface {
	RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenRefreshResult, error)
	RevokeToken(ctx context.Context, token string) error
}

type TokenRefreshResult struct {
	AccessToken  string
	ExpiresAt    time.Time
	RefreshToken string // empty unless the provider rotated it
}

// Credential is a usable access token for one owner's mailbox
type Credential struct {
	AccountID    string
	UserID       string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

type CredentialManager struct {
	store    CredentialStore
	provider TokenProvider
	skew     time.Duration
	now      func() time.Time
	refresh  singleflight.Group
}

func NewCredentialManager(store CredentialStore, provider TokenProvider, skew time.Duration) *CredentialManager {
	if skew < 0 {
		skew = DefaultTokenExpirySkew
	}
	return &CredentialManager{
		store:    store,
		provider: provider,
		skew:     skew,
		now:      time.Now,
	}
}

// EnsureValidCredential returns the owner's stored access token when it is
// still valid, otherwise exchanges the refresh token for a new one and
// persists it. Every failure to produce a usable token is an AuthError, and
// stored credentials are left untouched on failure.
func (m *CredentialManager) EnsureValidCredential(ctx context.Context, userID string) (*Credential, error) {
	account, err := m.loadAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !m.isTokenExpired(account) {
		return toCredential(account), nil
	}

	// Campaigns sharing an owner coalesce onto a single refresh call
	v, err, _ := m.refresh.Do(userID, func() (interface{}, error) {
		return m.refreshCredential(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Credential), nil
}

func (m *CredentialManager) refreshCredential(ctx context.Context, userID string) (*Credential, error) {
	// Another caller may have refreshed while we waited
	account, err := m.loadAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !m.isTokenExpired(account) {
		return toCredential(account), nil
	}

	if account.RefreshToken == nil || *account.RefreshToken == "" {
		return nil, &AuthError{UserID: userID, Reason: "no refresh token available"}
	}

	log.Printf("Access token expired for user %s, refreshing...", userID)

	result, err := m.provider.RefreshAccessToken(ctx, *account.RefreshToken)
	if err != nil {
		return nil, &AuthError{UserID: userID, Reason: "token refresh failed", Err: err}
	}
	if result.AccessToken == "" {
		return nil, &AuthError{UserID: userID, Reason: "token refresh returned no access token"}
	}

	expiresAt := result.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = m.now().Add(time.Hour)
	}

	// A refresh response without a refresh token keeps the stored one
	var rotated *string
	refreshToken := *account.RefreshToken
	if result.RefreshToken != "" {
		rotated = &result.RefreshToken
		refreshToken = result.RefreshToken
	}

	if err := m.store.UpdateTokens(ctx, account.ID, result.AccessToken, rotated, expiresAt); err != nil {
		return nil, fmt.Errorf("failed to update tokens in database: %w", err)
	}

	log.Printf("Token refreshed for user %s, expires at %s (refresh token rotated: %v)", userID, expiresAt, rotated != nil)

	return &Credential{
		AccountID:    account.ID,
		UserID:       userID,
		AccessToken:  result.AccessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	}, nil
}

// Revoke clears both tokens for the owner. Provider-side revocation is best
// effort; the local clear always happens. Revoking an owner without a linked
// mailbox is a no-op.
func (m *CredentialManager) Revoke(ctx context.Context, userID string) error {
	account, err := m.store.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil
		}
		return fmt.Errorf("failed to get account: %w", err)
	}

	token := account.RefreshToken
	if token == nil || *token == "" {
		token = account.AccessToken
	}
	if token != nil && *token != "" {
		if err := m.provider.RevokeToken(ctx, *token); err != nil {
			log.Printf("Warning: provider token revocation failed for user %s: %v", userID, err)
		}
	}

	if err := m.store.ClearTokens(ctx, account.ID); err != nil {
		return fmt.Errorf("failed to clear tokens: %w", err)
	}

	log.Printf("Credential revoked for user %s", userID)
	return nil
}

func (m *CredentialManager) loadAccount(ctx context.Context, userID string) (*models.Account, error) {
	account, err := m.store.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, &AuthError{UserID: userID, Reason: "no linked mailbox account"}
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// isTokenExpired checks if access token is missing, expired, or within skew of expiry
func (m *CredentialManager) isTokenExpired(account *models.Account) bool {
	if account.AccessToken == nil || *account.AccessToken == "" {
		return true
	}
	if account.AccessTokenExpiresAt == nil {
		return true // Assume expired if no expiry time
	}
	return !m.now().Add(m.skew).Before(*account.AccessTokenExpiresAt)
}

func toCredential(account *models.Account) *Credential {
	cred := &Credential{
		AccountID:   account.ID,
		UserID:      account.UserID,
		AccessToken: *account.AccessToken,
	}
	if account.RefreshToken != nil {
		cred.RefreshToken = *account.RefreshToken
	}
	if account.AccessTokenExpiresAt != nil {
		cred.ExpiresAt = *account.AccessTokenExpiresAt
	}
	return cred
}
