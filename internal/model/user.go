package model

import (
	"time"

	"gorm.io/gorm"
)

// User is an account whose mailbox is watched for financial documents.
type User struct {
	ID       uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	Email    string `json:"email" gorm:"type:varchar(150);not null;uniqueIndex"`
	FullName string `json:"full_name" gorm:"type:varchar(100)"`

	// RefreshToken is the user's mailbox OAuth grant. Opaque to this
	// service; passed through to the Gmail client factory.
	RefreshToken string `json:"-" gorm:"type:varchar(1024)"`

	// LastHistoryID is the mailbox history cursor of the last completed
	// sync. nil means the mailbox has never been synced; it only ever
	// moves forward.
	LastHistoryID *uint64 `json:"last_history_id"`

	Enabled   bool           `json:"enabled" gorm:"default:true"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}
