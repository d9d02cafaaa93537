package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/vipul43/kiwis-outreach/internal/models"
	"github.com/vipul43/kiwis-outreach/internal/repository"
)

// ContactStore is the persistence the cursor walks
type ContactStore interface {
	ListPending(ctx context.Context, campaignID string, limit int) ([]models.Contact, error)
	MarkProcessed(ctx context.Context, contactID string, processedAt time.Time) (bool, error)
	IncrementAttempts(ctx context.Context, contactID string, lastError string) (int, error)
	Progress(ctx context.Context, campaignID string) (*repository.ContactProgress, error)
}

// ContactCursor selects the next contact a campaign should send to.
// Order is assignment time then contact id, so it is stable across restarts.
type ContactCursor struct {
	contacts ContactStore
	now      func() time.Time
}

func NewContactCursor(contacts ContactStore) *ContactCursor {
	return &ContactCursor{
		contacts: contacts,
		now:      time.Now,
	}
}

// GetCurrentAndNext returns the contact to send to now and the one after it
// (preview only). A nil current means the campaign has nobody left.
func (c *ContactCursor) GetCurrentAndNext(ctx context.Context, campaignID string) (*models.Contact, *models.Contact, error) {
	pending, err := c.contacts.ListPending(ctx, campaignID, 2)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get pending contacts: %w", err)
	}

	var current, next *models.Contact
	if len(pending) > 0 {
		current = &pending[0]
	}
	if len(pending) > 1 {
		next = &pending[1]
	}
	return current, next, nil
}

// MarkProcessed records that the contact is done. Calling it again keeps the
// first processedAt.
func (c *ContactCursor) MarkProcessed(ctx context.Context, contactID string) error {
	updated, err := c.contacts.MarkProcessed(ctx, contactID, c.now().UTC())
	if err != nil {
		return err
	}
	if !updated {
		log.Printf("Contact %s already processed, keeping original processed_at", contactID)
	}
	return nil
}

// RecordFailure counts a failed send attempt and returns the attempt total
func (c *ContactCursor) RecordFailure(ctx context.Context, contactID string, reason string) (int, error) {
	return c.contacts.IncrementAttempts(ctx, contactID, reason)
}

// Progress returns aggregate counts for the campaign's assigned contacts
func (c *ContactCursor) Progress(ctx context.Context, campaignID string) (*repository.ContactProgress, error) {
	return c.contacts.Progress(ctx, campaignID)
}
