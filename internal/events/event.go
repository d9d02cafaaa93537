// Package events publishes campaign delivery events for downstream consumers
// (analytics, tracking webhooks, notifications).
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	TypeEmailSent             = "email.sent"
	TypeCampaignStatusChanged = "campaign.status_changed"
)

type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	CampaignID string         `json:"campaign_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data,omitempty"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error {
	return nil
}

func NewEmailSent(campaignID, contactID, emailID, providerMessageID string) Event {
	return Event{
		ID:         uuid.New().String(),
		Type:       TypeEmailSent,
		CampaignID: campaignID,
		OccurredAt: time.Now().UTC(),
		Data: map[string]any{
			"contact_id":          contactID,
			"email_id":            emailID,
			"provider_message_id": providerMessageID,
		},
	}
}

func NewCampaignStatusChanged(campaignID, from, to string, statusMessage *string) Event {
	data := map[string]any{
		"from": from,
		"to":   to,
	}
	if statusMessage != nil {
		data["status_message"] = *statusMessage
	}
	return Event{
		ID:         uuid.New().String(),
		Type:       TypeCampaignStatusChanged,
		CampaignID: campaignID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}
