package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"ledgerlens-go/internal/model"
)

// NotificationGate accepts inbound push notifications.
type NotificationGate interface {
	HandleNotification(email string, historyID uint64) error
}

// Uploader runs the ingestion pipeline for direct uploads.
type Uploader interface {
	IngestUpload(ctx context.Context, user *model.User, filename, contentType string, data []byte) (*model.Document, error)
}

// UserDirectory resolves accounts from request headers.
type UserDirectory interface {
	FindByEmail(email string) (*model.User, error)
}

// DocumentReader serves document lookups.
type DocumentReader interface {
	FindByPublicID(publicID string) (*model.Document, error)
	ListByUser(userID uint) ([]model.Document, error)
}

// TransactionReader serves transaction lookups.
type TransactionReader interface {
	ListByUser(userID uint) ([]model.Transaction, error)
	ListByUserAndType(userID uint, txType string) ([]model.Transaction, error)
	CountByDocumentPublicID(publicID string) (int64, error)
}

// BlobReader fetches stored document bytes for download.
type BlobReader interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// SchedulerStatus exposes the watch-renewal scheduler's state for the
// health endpoint.
type SchedulerStatus interface {
	IsRunning() bool
	GetNextRun() time.Time
	GetLastRun() time.Time
}

// Handlers contains all HTTP handlers
type Handlers struct {
	db           *gorm.DB
	gate         NotificationGate
	uploader     Uploader
	users        UserDirectory
	documents    DocumentReader
	transactions TransactionReader
	blobs        BlobReader
	scheduler    SchedulerStatus
}

// NewHandlers creates new HTTP handlers
func NewHandlers(
	db *gorm.DB,
	gate NotificationGate,
	uploader Uploader,
	users UserDirectory,
	documents DocumentReader,
	transactions TransactionReader,
	blobs BlobReader,
	scheduler SchedulerStatus,
) *Handlers {
	return &Handlers{
		db:           db,
		gate:         gate,
		uploader:     uploader,
		users:        users,
		documents:    documents,
		transactions: transactions,
		blobs:        blobs,
		scheduler:    scheduler,
	}
}

// SetupRoutes sets up all HTTP routes
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	// Health check
	router.GET("/healthz", h.HealthCheck)

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Push notification intake
	router.POST("/pubsub/push", h.HandlePush)

	// API routes
	api := router.Group("/api/v1")
	{
		api.POST("/documents", h.UploadDocument)
		api.GET("/documents", h.ListDocuments)
		api.GET("/documents/:id", h.GetDocument)
		api.GET("/documents/:id/content", h.GetDocumentContent)

		api.GET("/transactions", h.ListTransactions)
	}
}
