package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/vipul43/kiwis-outreach/internal/models"
	"github.com/vipul43/kiwis-outreach/internal/repository"
)

// Dispatcher owns the per-campaign send timers
type Dispatcher interface {
	Start(ctx context.Context, campaignID string) error
	Stop(campaignID string)
	NextRun(campaignID string) time.Time
}

// ContactAssigner attaches contacts to a campaign
type ContactAssigner interface {
	Assign(ctx context.Context, campaignID string, contactIDs []string, assignedAt time.Time) (int64, error)
}

// CampaignProgressReader is the cursor view used for processing info
type CampaignProgressReader interface {
	GetCurrentAndNext(ctx context.Context, campaignID string) (*models.Contact, *models.Contact, error)
	Progress(ctx context.Context, campaignID string) (*repository.ContactProgress, error)
}

// CampaignService implements the operator actions on campaigns
type CampaignService struct {
	campaigns    CampaignStatusStore
	contacts     ContactAssigner
	cursor       CampaignProgressReader
	transitioner *Transitioner
	dispatcher   Dispatcher
	now          func() time.Time
}

func NewCampaignService(
	campaigns CampaignStatusStore,
	contacts ContactAssigner,
	cursor CampaignProgressReader,
	transitioner *Transitioner,
	dispatcher Dispatcher,
) *CampaignService {
	return &CampaignService{
		campaigns:    campaigns,
		contacts:     contacts,
		cursor:       cursor,
		transitioner: transitioner,
		dispatcher:   dispatcher,
		now:          time.Now,
	}
}

// Start begins sending. A campaign with a future scheduled date is moved to
// scheduled instead and activated later. Starting a running campaign only
// re-arms its timer.
func (s *CampaignService) Start(ctx context.Context, campaignID string) (*models.Campaign, error) {
	campaign, err := LoadCampaign(ctx, s.campaigns, campaignID)
	if err != nil {
		return nil, err
	}

	switch campaign.Status {
	case models.CampaignStatusRunning:
		// already running; make sure a timer exists
	case models.CampaignStatusScheduled:
		if s.isFutureDate(campaign.ScheduledDate) {
			return campaign, nil
		}
		if err := s.transitioner.Apply(ctx, campaign, EventActivate, nil); err != nil {
			return nil, err
		}
	default:
		event := EventStart
		if s.isFutureDate(campaign.ScheduledDate) {
			event = EventSchedule
		}
		if err := s.transitioner.Apply(ctx, campaign, event, nil); err != nil {
			return nil, err
		}
		if event == EventSchedule {
			log.Printf("Campaign %s scheduled for %s", campaign.ID, campaign.ScheduledDate.Format(time.RFC3339))
			return campaign, nil
		}
	}

	if err := s.dispatcher.Start(ctx, campaign.ID); err != nil {
		return nil, err
	}
	return s.reload(ctx, campaign)
}

// Pause stops sending until Resume
func (s *CampaignService) Pause(ctx context.Context, campaignID string) (*models.Campaign, error) {
	return s.halt(ctx, campaignID, EventPause)
}

// Stop ends the campaign; only an explicit Start runs it again
func (s *CampaignService) Stop(ctx context.Context, campaignID string) (*models.Campaign, error) {
	return s.halt(ctx, campaignID, EventStop)
}

// Resume continues a paused campaign from where its cursor stopped
func (s *CampaignService) Resume(ctx context.Context, campaignID string) (*models.Campaign, error) {
	campaign, err := LoadCampaign(ctx, s.campaigns, campaignID)
	if err != nil {
		return nil, err
	}

	if err := s.transitioner.Apply(ctx, campaign, EventResume, nil); err != nil {
		return nil, err
	}

	if err := s.dispatcher.Start(ctx, campaign.ID); err != nil {
		return nil, err
	}
	return s.reload(ctx, campaign)
}

// AssignContacts schedules contacts for processing by the campaign
func (s *CampaignService) AssignContacts(ctx context.Context, campaignID string, contactIDs []string) (int64, error) {
	campaign, err := LoadCampaign(ctx, s.campaigns, campaignID)
	if err != nil {
		return 0, err
	}
	if campaign.Status == models.CampaignStatusCompleted {
		return 0, &ConflictError{Resource: "campaign", Message: "cannot assign contacts to a completed campaign"}
	}

	assigned, err := s.contacts.Assign(ctx, campaignID, contactIDs, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to assign contacts: %w", err)
	}

	log.Printf("Assigned %d contact(s) to campaign %s", assigned, campaignID)
	return assigned, nil
}

// ProcessingInfo returns current/next contact and aggregate progress
func (s *CampaignService) ProcessingInfo(ctx context.Context, campaignID string) (*ProcessingInfo, error) {
	campaign, err := LoadCampaign(ctx, s.campaigns, campaignID)
	if err != nil {
		return nil, err
	}

	current, next, err := s.cursor.GetCurrentAndNext(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	progress, err := s.cursor.Progress(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	info := BuildProcessingInfo(campaign, current, next, *progress)
	if nextRun := s.dispatcher.NextRun(campaignID); !nextRun.IsZero() && campaign.Status == models.CampaignStatusRunning {
		info.NextSendAt = &nextRun
	}
	return &info, nil
}

func (s *CampaignService) halt(ctx context.Context, campaignID string, event CampaignEvent) (*models.Campaign, error) {
	campaign, err := LoadCampaign(ctx, s.campaigns, campaignID)
	if err != nil {
		return nil, err
	}

	if err := s.transitioner.Apply(ctx, campaign, event, nil); err != nil {
		return nil, err
	}

	s.dispatcher.Stop(campaign.ID)
	return campaign, nil
}

// reload returns the stored campaign after the dispatcher's first tick,
// falling back to the in-memory copy
func (s *CampaignService) reload(ctx context.Context, campaign *models.Campaign) (*models.Campaign, error) {
	fresh, err := s.campaigns.GetByID(ctx, campaign.ID)
	if err != nil {
		log.Printf("Warning: failed to reload campaign %s: %v", campaign.ID, err)
		return campaign, nil
	}
	return fresh, nil
}

func (s *CampaignService) isFutureDate(t *time.Time) bool {
	return t != nil && t.After(s.now())
}
