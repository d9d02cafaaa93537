package models

import "time"

// Account holds a user's Google OAuth credential for the mailbox campaigns send from.
// Note: Column names use camelCase to match Prisma/frontend schema
type Account struct {
	ID                    string     `gorm:"column:id;primaryKey"`
	AccountID             string     `gorm:"column:accountId"`
	ProviderID            string     `gorm:"column:providerId"`
	UserID                string     `gorm:"column:userId"`
	AccessToken           *string    `gorm:"column:accessToken"`
	RefreshToken          *string    `gorm:"column:refreshToken"`
	AccessTokenExpiresAt  *time.Time `gorm:"column:accessTokenExpiresAt"`
	RefreshTokenExpiresAt *time.Time `gorm:"column:refreshTokenExpiresAt"`
	Scope                 *string    `gorm:"column:scope"`
	CreatedAt             time.Time  `gorm:"column:createdAt"`
	UpdatedAt             time.Time  `gorm:"column:updatedAt"`
}

// GoogleProviderID is the providerId of accounts linked through Google OAuth
const GoogleProviderID = "google"

// TableName specifies the table name for GORM
func (Account) TableName() string {
	return "account"
}
