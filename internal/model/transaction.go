package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Transaction types.
const (
	TypeIncome  = "INCOME"
	TypeExpense = "EXPENSE"
)

// Transaction is one financial record materialized from a parsed
// document payload (or created manually through the API).
type Transaction struct {
	ID       uint   `json:"-" gorm:"primaryKey;autoIncrement"`
	PublicID string `json:"public_id" gorm:"type:varchar(36);not null;uniqueIndex"`

	UserID uint  `json:"-" gorm:"not null;index"`
	User   *User `json:"-" gorm:"foreignKey:UserID"`

	// DocumentPublicID is a back-reference to the source document, not
	// ownership; manually created transactions have none.
	DocumentID       *uint   `json:"-" gorm:"index"`
	DocumentPublicID *string `json:"document_public_id,omitempty" gorm:"type:varchar(36);index"`

	CounterpartyName string          `json:"counterparty_name" gorm:"type:varchar(150);not null"`
	TxnDate          time.Time       `json:"txn_date" gorm:"type:date;not null"`
	AmountBeforeTax  decimal.Decimal `json:"amount_before_tax" gorm:"type:decimal(12,2);not null"`
	AmountAfterTax   decimal.Decimal `json:"amount_after_tax" gorm:"type:decimal(12,2);not null"`
	Currency         string          `json:"currency" gorm:"type:varchar(10)"`
	Category         string          `json:"category" gorm:"type:varchar(100)"`
	TransactionType  string          `json:"transaction_type" gorm:"type:varchar(20);not null"`
	PaymentMethod    string          `json:"payment_method" gorm:"type:varchar(100)"`
	InvoiceNumber    string          `json:"invoice_number" gorm:"type:varchar(100)"`
	Notes            string          `json:"notes" gorm:"type:text"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// TableName specifies the table name for Transaction
func (Transaction) TableName() string {
	return "transactions"
}

// BeforeCreate assigns the public id.
func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.PublicID == "" {
		t.PublicID = uuid.NewString()
	}
	return nil
}
