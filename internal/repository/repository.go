package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"ledgerlens-go/internal/model"
)

// ErrUserNotFound is returned when a notification or request references
// an email address with no account. Callers treat this as fatal: it
// indicates an inconsistent caller, not a transient condition.
var ErrUserNotFound = errors.New("user not found")

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) FindByEmail(email string) (*model.User, error) {
	var user model.User
	result := r.db.Where("email = ?", email).First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, email)
		}
		return nil, fmt.Errorf("database error looking up user: %w", result.Error)
	}
	return &user, nil
}

func (r *UserRepository) Save(user *model.User) error {
	result := r.db.Save(user)
	if result.Error != nil {
		return fmt.Errorf("failed to save user: %w", result.Error)
	}
	return nil
}

func (r *UserRepository) ListEnabled() ([]model.User, error) {
	var users []model.User
	result := r.db.Where("enabled = ?", true).Find(&users)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list enabled users: %w", result.Error)
	}
	return users, nil
}

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(doc *model.Document) error {
	result := r.db.Create(doc)
	if result.Error != nil {
		return fmt.Errorf("failed to create document: %w", result.Error)
	}
	return nil
}

func (r *DocumentRepository) Save(doc *model.Document) error {
	result := r.db.Save(doc)
	if result.Error != nil {
		return fmt.Errorf("failed to save document: %w", result.Error)
	}
	return nil
}

// ExistsBySourceMessageID reports whether an inbound message has already
// produced a document. The unique index on source_message_id makes the
// check race-safe at the storage layer.
func (r *DocumentRepository) ExistsBySourceMessageID(messageID string) (bool, error) {
	var count int64
	result := r.db.Model(&model.Document{}).
		Where("source_message_id = ?", messageID).
		Count(&count)
	if result.Error != nil {
		return false, fmt.Errorf("database error checking ingested message: %w", result.Error)
	}
	return count > 0, nil
}

func (r *DocumentRepository) FindByPublicID(publicID string) (*model.Document, error) {
	var doc model.Document
	result := r.db.Where("public_id = ?", publicID).First(&doc)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("database error looking up document: %w", result.Error)
	}
	return &doc, nil
}

func (r *DocumentRepository) ListByUser(userID uint) ([]model.Document, error) {
	var docs []model.Document
	result := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&docs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list documents: %w", result.Error)
	}
	return docs, nil
}

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// SaveBatch persists all transactions in one write; either all rows are
// stored or none are.
func (r *TransactionRepository) SaveBatch(txs []*model.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	result := r.db.Create(txs)
	if result.Error != nil {
		return fmt.Errorf("failed to save transactions: %w", result.Error)
	}
	return nil
}

func (r *TransactionRepository) ListByUser(userID uint) ([]model.Transaction, error) {
	var txs []model.Transaction
	result := r.db.Where("user_id = ?", userID).Order("txn_date DESC").Find(&txs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", result.Error)
	}
	return txs, nil
}

func (r *TransactionRepository) ListByUserAndType(userID uint, txType string) ([]model.Transaction, error) {
	var txs []model.Transaction
	result := r.db.Where("user_id = ? AND transaction_type = ?", userID, txType).
		Order("txn_date DESC").Find(&txs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", result.Error)
	}
	return txs, nil
}

func (r *TransactionRepository) CountByDocumentPublicID(publicID string) (int64, error) {
	var count int64
	result := r.db.Model(&model.Transaction{}).
		Where("document_public_id = ?", publicID).
		Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("database error counting transactions: %w", result.Error)
	}
	return count, nil
}
