package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Document processing statuses. COMPLETED and FAILED are terminal.
const (
	StatusUploaded   = "UPLOADED"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// Document is one ingested artifact (user upload or inbound mail
// attachment) together with its processing state.
type Document struct {
	ID uint `json:"-" gorm:"primaryKey;autoIncrement"`

	// PublicID is the stable external handle, assigned at creation.
	PublicID string `json:"public_id" gorm:"type:varchar(36);not null;uniqueIndex"`

	StorageKey   string `json:"-" gorm:"type:varchar(512);not null"`
	OriginalName string `json:"original_name" gorm:"type:varchar(255);not null"`
	ContentType  string `json:"content_type" gorm:"type:varchar(100)"`

	UserID uint  `json:"-" gorm:"not null;index"`
	User   *User `json:"-" gorm:"foreignKey:UserID"`

	Status        string  `json:"status" gorm:"type:varchar(20);not null"`
	FailureReason *string `json:"failure_reason,omitempty" gorm:"type:varchar(500)"`

	// SourceMessageID is set for documents ingested from inbound mail.
	// The unique index makes re-delivery of the same message a no-op.
	SourceMessageID *string `json:"source_message_id,omitempty" gorm:"type:varchar(255);uniqueIndex"`

	// No DeletedAt: documents are never deleted here, and a soft-delete
	// column would hide rows from the dedup query while the row still
	// occupies the source_message_id unique index.
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for Document
func (Document) TableName() string {
	return "documents"
}

// BeforeCreate assigns the public id.
func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.PublicID == "" {
		d.PublicID = uuid.NewString()
	}
	return nil
}
