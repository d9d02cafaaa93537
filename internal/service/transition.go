package service

import (
	"context"
	"errors"
	"log"

	"github.com/vipul43/kiwis-outreach/internal/events"
	"github.com/vipul43/kiwis-outreach/internal/models"
	"github.com/vipul43/kiwis-outreach/internal/repository"
)

// CampaignStatusStore persists campaign status changes
type CampaignStatusStore interface {
	GetByID(ctx context.Context, campaignID string) (*models.Campaign, error)
	CompareAndSetStatus(ctx context.Context, campaignID string, from, to models.CampaignStatus, statusMessage *string) error
}

// Transitioner applies state machine events to stored campaigns
type Transitioner struct {
	campaigns CampaignStatusStore
	publisher events.Publisher
}

func NewTransitioner(campaigns CampaignStatusStore, publisher events.Publisher) *Transitioner {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Transitioner{
		campaigns: campaigns,
		publisher: publisher,
	}
}

// Apply moves campaign along event and writes statusMessage. The stored row
// is only changed if it still holds campaign.Status; otherwise a
// ConflictError is returned. On success campaign is updated in place.
func (t *Transitioner) Apply(ctx context.Context, campaign *models.Campaign, event CampaignEvent, statusMessage *string) error {
	from := campaign.Status
	to, err := NextStatus(from, event)
	if err != nil {
		return err
	}

	if err := t.campaigns.CompareAndSetStatus(ctx, campaign.ID, from, to, statusMessage); err != nil {
		switch {
		case errors.Is(err, repository.ErrCampaignNotFound):
			return &NotFoundError{Resource: "campaign", ID: campaign.ID}
		case errors.Is(err, repository.ErrStatusChanged):
			return &ConflictError{Resource: "campaign", Message: "status changed concurrently, reload and retry"}
		default:
			return err
		}
	}

	campaign.Status = to
	campaign.StatusMessage = statusMessage
	log.Printf("Campaign %s: %s -> %s (%s)", campaign.ID, from, to, event)

	if err := t.publisher.Publish(ctx, events.NewCampaignStatusChanged(campaign.ID, string(from), string(to), statusMessage)); err != nil {
		log.Printf("Warning: failed to publish status change for campaign %s: %v", campaign.ID, err)
	}
	return nil
}

// LoadCampaign fetches a campaign, mapping a missing row to NotFoundError
func LoadCampaign(ctx context.Context, campaigns CampaignStatusStore, campaignID string) (*models.Campaign, error) {
	campaign, err := campaigns.GetByID(ctx, campaignID)
	if err != nil {
		if errors.Is(err, repository.ErrCampaignNotFound) {
			return nil, &NotFoundError{Resource: "campaign", ID: campaignID}
		}
		return nil, err
	}
	return campaign, nil
}
