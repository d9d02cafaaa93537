package models

import "time"

type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusRunning   CampaignStatus = "running"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusStopped   CampaignStatus = "stopped"
)

// Campaign is a bulk email job sent from its owner's mailbox
type Campaign struct {
	ID              string         `gorm:"column:id;primaryKey"`
	Name            string         `gorm:"column:name"`
	SubjectTemplate string         `gorm:"column:subject_template"`
	BodyTemplate    string         `gorm:"column:body_template"`
	Status          CampaignStatus `gorm:"column:status;index"`
	SentCount       int            `gorm:"column:sent_count"`
	OpenedCount     int            `gorm:"column:opened_count"`
	ClickedCount    int            `gorm:"column:clicked_count"`
	DailyLimit      int            `gorm:"column:daily_limit"` // 0 = unlimited
	ScheduledDate   *time.Time     `gorm:"column:scheduled_date"`
	OwnerID         string         `gorm:"column:owner_id;index"`
	StatusMessage   *string        `gorm:"column:status_message"`
	UseAI           bool           `gorm:"column:use_ai"`
	CreatedAt       time.Time      `gorm:"column:created_at"`
	UpdatedAt       time.Time      `gorm:"column:updated_at"`
}

// TableName specifies the table name for GORM
func (Campaign) TableName() string {
	return "campaign"
}
