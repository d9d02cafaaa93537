package service

import (
	"math"
	"time"

	"github.com/vipul43/kiwis-outreach/internal/models"
	"github.com/vipul43/kiwis-outreach/internal/repository"
)

// ContactPreview is the operator-facing view of a queued contact
type ContactPreview struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	Company   *string `json:"company,omitempty"`
}

// ProcessingInfo is the progress snapshot behind GET processing-info
type ProcessingInfo struct {
	CampaignID      string                `json:"campaignId"`
	Status          models.CampaignStatus `json:"status"`
	StatusMessage   *string               `json:"statusMessage,omitempty"`
	SentCount       int                   `json:"sentCount"`
	Current         *ContactPreview       `json:"currentContact"`
	Next            *ContactPreview       `json:"nextContact"`
	Total           int64                 `json:"total"`
	Processed       int64                 `json:"processed"`
	Scheduled       int64                 `json:"scheduled"`
	Remaining       int64                 `json:"remaining"`
	PercentComplete float64               `json:"percentComplete"`
	NextSendAt      *time.Time            `json:"nextSendAt,omitempty"`
}

// BuildProcessingInfo computes the snapshot from campaign and cursor state.
// It does no I/O.
func BuildProcessingInfo(campaign *models.Campaign, current, next *models.Contact, progress repository.ContactProgress) ProcessingInfo {
	info := ProcessingInfo{
		CampaignID:    campaign.ID,
		Status:        campaign.Status,
		StatusMessage: campaign.StatusMessage,
		SentCount:     campaign.SentCount,
		Current:       toPreview(current),
		Next:          toPreview(next),
		Total:         progress.Total,
		Processed:     progress.Processed,
		Scheduled:     progress.Scheduled,
		Remaining:     progress.Remaining,
	}
	if progress.Total > 0 {
		pct := float64(progress.Processed) / float64(progress.Total) * 100
		info.PercentComplete = math.Round(pct*100) / 100
	}
	return info
}

func toPreview(contact *models.Contact) *ContactPreview {
	if contact == nil {
		return nil
	}
	return &ContactPreview{
		ID:        contact.ID,
		Email:     contact.Email,
		FirstName: contact.FirstName,
		LastName:  contact.LastName,
		Company:   contact.Company,
	}
}
