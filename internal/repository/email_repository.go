package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/vipul43/kiwis-outreach/internal/models"
	"gorm.io/gorm"
)

type EmailRepository struct {
	db *gorm.DB
}

func NewEmailRepository(db *gorm.DB) *EmailRepository {
	return &EmailRepository{db: db}
}

// Create inserts a delivery record
func (r *EmailRepository) Create(ctx context.Context, email *models.Email) error {
	if err := r.db.WithContext(ctx).Create(email).Error; err != nil {
		return fmt.Errorf("failed to create email: %w", err)
	}
	return nil
}

// CountSentSince counts emails a campaign delivered at or after since
func (r *EmailRepository) CountSentSince(ctx context.Context, campaignID string, since time.Time) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.Email{}).
		Where("campaign_id = ? AND sent_at >= ?", campaignID, since).
		Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count sent emails: %w", result.Error)
	}
	return count, nil
}
