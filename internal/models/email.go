package models

import "time"

type EmailStatus string

const (
	EmailStatusDraft   EmailStatus = "draft"
	EmailStatusSent    EmailStatus = "sent"
	EmailStatusOpened  EmailStatus = "opened"
	EmailStatusClicked EmailStatus = "clicked"
	EmailStatusReplied EmailStatus = "replied"
	EmailStatusBounced EmailStatus = "bounced"
)

// Email is the delivery record of one message sent to one contact.
// Open/click/reply timestamps are written later by tracking webhooks.
type Email struct {
	ID                string      `gorm:"column:id;primaryKey"`
	CampaignID        string      `gorm:"column:campaign_id;index"`
	ContactID         string      `gorm:"column:contact_id;index"`
	Subject           string      `gorm:"column:subject"`
	Content           string      `gorm:"column:content"`
	Status            EmailStatus `gorm:"column:status"`
	ProviderMessageID *string     `gorm:"column:provider_message_id"`
	SentAt            *time.Time  `gorm:"column:sent_at"`
	OpenedAt          *time.Time  `gorm:"column:opened_at"`
	ClickedAt         *time.Time  `gorm:"column:clicked_at"`
	RepliedAt         *time.Time  `gorm:"column:replied_at"`
	GeneratedByAI     bool        `gorm:"column:generated_by_ai"`
	CreatedAt         time.Time   `gorm:"column:created_at"`
	UpdatedAt         time.Time   `gorm:"column:updated_at"`
}

// TableName specifies the table name for GORM
func (Email) TableName() string {
	return "email"
}
