package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vipul43/kiwis-outreach/internal/models"
	"gorm.io/gorm"
)

var (
	ErrCampaignNotFound = errors.New("campaign not found")
	// ErrStatusChanged is returned by CompareAndSetStatus when the stored
	// status no longer matches the expected one.
	ErrStatusChanged = errors.New("campaign status changed concurrently")
)

type CampaignRepository struct {
	db *gorm.DB
}

func NewCampaignRepository(db *gorm.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

// GetByID retrieves campaign by ID
func (r *CampaignRepository) GetByID(ctx context.Context, campaignID string) (*models.Campaign, error) {
	var campaign models.Campaign
	result := r.db.WithContext(ctx).First(&campaign, "id = ?", campaignID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, fmt.Errorf("failed to get campaign: %w", result.Error)
	}
	return &campaign, nil
}

// ListByStatus retrieves all campaigns in the given status
func (r *CampaignRepository) ListByStatus(ctx context.Context, status models.CampaignStatus) ([]models.Campaign, error) {
	var campaigns []models.Campaign
	result := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Find(&campaigns)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list %s campaigns: %w", status, result.Error)
	}
	return campaigns, nil
}

// ListDueScheduled retrieves scheduled campaigns whose scheduled date has passed
func (r *CampaignRepository) ListDueScheduled(ctx context.Context, now time.Time) ([]models.Campaign, error) {
	var campaigns []models.Campaign
	result := r.db.WithContext(ctx).
		Where("status = ? AND scheduled_date IS NOT NULL AND scheduled_date <= ?", models.CampaignStatusScheduled, now).
		Order("scheduled_date ASC").
		Find(&campaigns)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list due scheduled campaigns: %w", result.Error)
	}
	return campaigns, nil
}

// CompareAndSetStatus moves the campaign from `from` to `to` only if it is
// still in `from`. statusMessage replaces the stored message (nil clears it).
func (r *CampaignRepository) CompareAndSetStatus(ctx context.Context, campaignID string, from, to models.CampaignStatus, statusMessage *string) error {
	result := r.db.WithContext(ctx).Model(&models.Campaign{}).
		Where("id = ? AND status = ?", campaignID, from).
		Updates(map[string]interface{}{
			"status":         to,
			"status_message": statusMessage,
			"updated_at":     time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update campaign status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, campaignID); err != nil {
			return err
		}
		return ErrStatusChanged
	}
	return nil
}

// IncrementSentCount adds one to the campaign's sent counter
func (r *CampaignRepository) IncrementSentCount(ctx context.Context, campaignID string) error {
	result := r.db.WithContext(ctx).Model(&models.Campaign{}).
		Where("id = ?", campaignID).
		Updates(map[string]interface{}{
			"sent_count": gorm.Expr("sent_count + 1"),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to increment sent count: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrCampaignNotFound
	}
	return nil
}
