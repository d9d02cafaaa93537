package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vipul43/kiwis-outreach/internal/models"
	"github.com/vipul43/kiwis-outreach/internal/service"
)

// CampaignOperator is the set of operator actions on campaigns
type CampaignOperator interface {
	Start(ctx context.Context, campaignID string) (*models.Campaign, error)
	Pause(ctx context.Context, campaignID string) (*models.Campaign, error)
	Resume(ctx context.Context, campaignID string) (*models.Campaign, error)
	Stop(ctx context.Context, campaignID string) (*models.Campaign, error)
	AssignContacts(ctx context.Context, campaignID string, contactIDs []string) (int64, error)
	ProcessingInfo(ctx context.Context, campaignID string) (*service.ProcessingInfo, error)
}

type CampaignHandler struct {
	campaigns CampaignOperator
}

func NewCampaignHandler(campaigns CampaignOperator) *CampaignHandler {
	return &CampaignHandler{campaigns: campaigns}
}

// CampaignResponse is the campaign state returned by operator actions
type CampaignResponse struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Status        string  `json:"status"`
	StatusMessage *string `json:"statusMessage"`
	SentCount     int     `json:"sentCount"`
	OpenedCount   int     `json:"openedCount"`
	ClickedCount  int     `json:"clickedCount"`
	DailyLimit    int     `json:"dailyLimit"`
	ScheduledDate *string `json:"scheduledDate"`
}

type assignContactsRequest struct {
	ContactIDs []string `json:"contactIds" binding:"required,min=1,dive,required"`
}

// Start handles POST /campaigns/:id/start
func (h *CampaignHandler) Start(c *gin.Context) {
	h.action(c, h.campaigns.Start)
}

// Pause handles POST /campaigns/:id/pause
func (h *CampaignHandler) Pause(c *gin.Context) {
	h.action(c, h.campaigns.Pause)
}

// Resume handles POST /campaigns/:id/resume
func (h *CampaignHandler) Resume(c *gin.Context) {
	h.action(c, h.campaigns.Resume)
}

// Stop handles POST /campaigns/:id/stop
func (h *CampaignHandler) Stop(c *gin.Context) {
	h.action(c, h.campaigns.Stop)
}

// AssignContacts handles POST /campaigns/:id/contacts
func (h *CampaignHandler) AssignContacts(c *gin.Context) {
	var req assignContactsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeValidationError(c, "contactIds must be a non-empty list of contact IDs")
		return
	}

	assigned, err := h.campaigns.AssignContacts(c.Request.Context(), c.Param("id"), req.ContactIDs)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"assigned": assigned})
}

// ProcessingInfo handles GET /campaigns/:id/processing-info
func (h *CampaignHandler) ProcessingInfo(c *gin.Context) {
	info, err := h.campaigns.ProcessingInfo(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, info)
}

func (h *CampaignHandler) action(c *gin.Context, fn func(context.Context, string) (*models.Campaign, error)) {
	campaign, err := fn(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toCampaignResponse(campaign))
}

func toCampaignResponse(campaign *models.Campaign) CampaignResponse {
	resp := CampaignResponse{
		ID:            campaign.ID,
		Name:          campaign.Name,
		Status:        string(campaign.Status),
		StatusMessage: campaign.StatusMessage,
		SentCount:     campaign.SentCount,
		OpenedCount:   campaign.OpenedCount,
		ClickedCount:  campaign.ClickedCount,
		DailyLimit:    campaign.DailyLimit,
	}
	if campaign.ScheduledDate != nil {
		scheduled := campaign.ScheduledDate.UTC().Format(time.RFC3339)
		resp.ScheduledDate = &scheduled
	}
	return resp
}
