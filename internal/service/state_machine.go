package service

import (
	"fmt"

	"github.com/vipul43/kiwis-outreach/internal/models"
)

// CampaignEvent is a request to move a campaign to another status
type CampaignEvent string

const (
	EventStart    CampaignEvent = "start"    // operator: begin sending now
	EventSchedule CampaignEvent = "schedule" // operator: begin at scheduledDate
	EventActivate CampaignEvent = "activate" // scheduler: scheduledDate reached
	EventPause    CampaignEvent = "pause"    // operator, or scheduler on AuthError
	EventResume   CampaignEvent = "resume"   // operator
	EventStop     CampaignEvent = "stop"     // operator
	EventComplete CampaignEvent = "complete" // scheduler: cursor exhausted
)

var campaignTransitions = map[CampaignEvent]map[models.CampaignStatus]models.CampaignStatus{
	EventStart: {
		models.CampaignStatusDraft:   models.CampaignStatusRunning,
		models.CampaignStatusStopped: models.CampaignStatusRunning,
	},
	EventSchedule: {
		models.CampaignStatusDraft:   models.CampaignStatusScheduled,
		models.CampaignStatusStopped: models.CampaignStatusScheduled,
	},
	EventActivate: {
		models.CampaignStatusScheduled: models.CampaignStatusRunning,
	},
	EventPause: {
		models.CampaignStatusRunning: models.CampaignStatusPaused,
	},
	EventResume: {
		models.CampaignStatusPaused: models.CampaignStatusRunning,
	},
	EventStop: {
		models.CampaignStatusScheduled: models.CampaignStatusStopped,
		models.CampaignStatusRunning:   models.CampaignStatusStopped,
		models.CampaignStatusPaused:    models.CampaignStatusStopped,
	},
	EventComplete: {
		models.CampaignStatusRunning: models.CampaignStatusCompleted,
	},
}

// NextStatus returns the status a campaign in `from` moves to on event.
// Invalid combinations return a ConflictError; callers must not coerce.
func NextStatus(from models.CampaignStatus, event CampaignEvent) (models.CampaignStatus, error) {
	targets, ok := campaignTransitions[event]
	if !ok {
		return "", &ConflictError{Resource: "campaign", Message: fmt.Sprintf("unknown event %q", event)}
	}
	to, ok := targets[from]
	if !ok {
		return "", &ConflictError{
			Resource: "campaign",
			Message:  fmt.Sprintf("cannot %s a campaign in status %s", event, from),
		}
	}
	return to, nil
}

// IsTerminal reports whether no scheduler action can move the campaign
// out of status without an operator start.
func IsTerminal(status models.CampaignStatus) bool {
	return status == models.CampaignStatusCompleted || status == models.CampaignStatusStopped
}
