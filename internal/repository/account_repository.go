package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vipul43/kiwis-outreach/internal/models"
	"gorm.io/gorm"
)

var ErrAccountNotFound = errors.New("account not found")

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// GetByUserID retrieves the Google account linked to a user
func (r *AccountRepository) GetByUserID(ctx context.Context, userID string) (*models.Account, error) {
	var account models.Account
	result := r.db.WithContext(ctx).
		Where(`"userId" = ? AND "providerId" = ?`, userID, models.GoogleProviderID).
		Order(`"updatedAt" DESC`).
		First(&account)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", result.Error)
	}
	return &account, nil
}

// UpdateTokens updates the access token and its expiry. The refresh token is
// only written when a new one was issued.
func (r *AccountRepository) UpdateTokens(ctx context.Context, accountID string, accessToken string, refreshToken *string, accessTokenExpiresAt time.Time) error {
	updates := map[string]interface{}{
		"accessToken":          accessToken,
		"accessTokenExpiresAt": accessTokenExpiresAt,
		"updatedAt":            time.Now(),
	}
	if refreshToken != nil {
		updates["refreshToken"] = *refreshToken
	}

	result := r.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", accountID).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update tokens: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// ClearTokens removes both tokens and the access token expiry
func (r *AccountRepository) ClearTokens(ctx context.Context, accountID string) error {
	result := r.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", accountID).
		Updates(map[string]interface{}{
			"accessToken":          nil,
			"refreshToken":         nil,
			"accessTokenExpiresAt": nil,
			"updatedAt":            time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to clear tokens: %w", result.Error)
	}
	return nil
}
