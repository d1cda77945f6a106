package model

import (
	"gorm.io/gorm"
)

// TokenRecordID is the primary key of the single persisted token row.
const TokenRecordID = 1

// Token is the persisted Strava access token. Only one row, TokenRecordID, is ever stored.
type Token struct {
	gorm.Model
	AccessToken  string `gorm:"not null"`
	RefreshToken string `gorm:"not null"`
	ExpiresAt    int64  `gorm:"not null"` // seconds since the epoch
}
