package models

import "time"

// Contact is a recipient. CampaignID/AssignedAt record the campaign the
// contact is currently assigned to; ProcessedAt is set once it was sent to
// or permanently skipped.
type Contact struct {
	ID                     string     `gorm:"column:id;primaryKey"`
	Email                  string     `gorm:"column:email;uniqueIndex"`
	FirstName              *string    `gorm:"column:first_name"`
	LastName               *string    `gorm:"column:last_name"`
	Company                *string    `gorm:"column:company"`
	Position               *string    `gorm:"column:position"`
	Category               *string    `gorm:"column:category"`
	CampaignID             *string    `gorm:"column:campaign_id;index"`
	AssignedAt             *time.Time `gorm:"column:assigned_at"`
	ScheduledForProcessing bool       `gorm:"column:scheduled_for_processing"`
	ProcessedAt            *time.Time `gorm:"column:processed_at"`
	SendAttempts           int        `gorm:"column:send_attempts"`
	LastError              *string    `gorm:"column:last_error"`
	CreatedAt              time.Time  `gorm:"column:created_at"`
	UpdatedAt              time.Time  `gorm:"column:updated_at"`
}

// TableName specifies the table name for GORM
func (Contact) TableName() string {
	return "contact"
}
