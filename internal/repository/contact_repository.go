package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vipul43/kiwis-outreach/internal/models"
	"gorm.io/gorm"
)

var ErrContactNotFound = errors.New("contact not found")

// ContactProgress aggregates a campaign's assigned contacts
type ContactProgress struct {
	Total     int64 `gorm:"column:total"`
	Processed int64 `gorm:"column:processed"`
	Scheduled int64 `gorm:"column:scheduled"`
	Remaining int64 `gorm:"column:remaining"`
}

type ContactRepository struct {
	db *gorm.DB
}

func NewContactRepository(db *gorm.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

// ListPending returns contacts still to be sent for a campaign, in
// assignment order. Contacts that already have a delivered email for the
// campaign are excluded even if processed_at was never written.
func (r *ContactRepository) ListPending(ctx context.Context, campaignID string, limit int) ([]models.Contact, error) {
	var contacts []models.Contact
	result := r.db.WithContext(ctx).
		Where("campaign_id = ? AND scheduled_for_processing = ? AND processed_at IS NULL", campaignID, true).
		Where("NOT EXISTS (SELECT 1 FROM email e WHERE e.campaign_id = contact.campaign_id AND e.contact_id = contact.id AND e.sent_at IS NOT NULL)").
		Order("assigned_at ASC NULLS LAST").
		Order("id ASC").
		Limit(limit).
		Find(&contacts)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to query pending contacts: %w", result.Error)
	}
	return contacts, nil
}

// MarkProcessed sets processed_at if it is not set yet. Returns false when
// the contact was already processed.
func (r *ContactRepository) MarkProcessed(ctx context.Context, contactID string, processedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Contact{}).
		Where("id = ? AND processed_at IS NULL", contactID).
		Updates(map[string]interface{}{
			"processed_at": processedAt,
			"updated_at":   time.Now(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to mark contact processed: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// IncrementAttempts bumps the send attempt counter, records the failure, and
// returns the new attempt count
func (r *ContactRepository) IncrementAttempts(ctx context.Context, contactID string, lastError string) (int, error) {
	var attempts int
	result := r.db.WithContext(ctx).
		Raw(`UPDATE contact
			SET send_attempts = send_attempts + 1, last_error = ?, updated_at = ?
			WHERE id = ?
			RETURNING send_attempts`, lastError, time.Now(), contactID).
		Scan(&attempts)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to increment attempts: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return 0, ErrContactNotFound
	}
	return attempts, nil
}

// Assign attaches contacts to a campaign and schedules them for processing.
// Contacts already assigned to the campaign keep their position and state.
func (r *ContactRepository) Assign(ctx context.Context, campaignID string, contactIDs []string, assignedAt time.Time) (int64, error) {
	if len(contactIDs) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Model(&models.Contact{}).
		Where("id IN ?", contactIDs).
		Where("campaign_id IS DISTINCT FROM ?", campaignID).
		Updates(map[string]interface{}{
			"campaign_id":              campaignID,
			"assigned_at":              assignedAt,
			"scheduled_for_processing": true,
			"processed_at":             nil,
			"send_attempts":            0,
			"last_error":               nil,
			"updated_at":               time.Now(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to assign contacts: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Progress counts a campaign's assigned contacts by processing state. A
// contact with a sent email counts as processed even if processed_at was
// never written, matching what ListPending skips.
func (r *ContactRepository) Progress(ctx context.Context, campaignID string) (*ContactProgress, error) {
	var progress ContactProgress
	result := r.db.WithContext(ctx).
		Raw(`SELECT
				COUNT(*) AS total,
				COUNT(*) FILTER (WHERE processed_at IS NOT NULL OR sent.contact_id IS NOT NULL) AS processed,
				COUNT(*) FILTER (WHERE scheduled_for_processing) AS scheduled,
				COUNT(*) FILTER (WHERE scheduled_for_processing AND processed_at IS NULL AND sent.contact_id IS NULL) AS remaining
			FROM contact
			LEFT JOIN (
				SELECT DISTINCT contact_id FROM email
				WHERE campaign_id = ? AND sent_at IS NOT NULL
			) sent ON sent.contact_id = contact.id
			WHERE contact.campaign_id = ?`, campaignID, campaignID).
		Scan(&progress)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to count contact progress: %w", result.Error)
	}
	return &progress, nil
}
