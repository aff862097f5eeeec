package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ledgerlens-go/internal/ingest"
	"ledgerlens-go/internal/model"
	"ledgerlens-go/internal/repository"
)

// resolveUser maps the X-User-Email header to an account.
func (h *Handlers) resolveUser(c *gin.Context) (*model.User, bool) {
	email := c.GetHeader("X-User-Email")
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "X-User-Email header is required"})
		return nil, false
	}

	user, err := h.users.FindByEmail(email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown user"})
			return nil, false
		}
		logrus.Errorf("Failed to resolve user %s: %v", email, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve user"})
		return nil, false
	}

	return user, true
}

// UploadDocument ingests a directly uploaded file and returns the
// document record, including its terminal status.
func (h *Handlers) UploadDocument(c *gin.Context) {
	user, ok := h.resolveUser(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to open file"})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read file"})
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")

	doc, err := h.uploader.IngestUpload(c.Request.Context(), user, fileHeader.Filename, contentType, data)
	if err != nil {
		if errors.Is(err, ingest.ErrEmptyFile) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is empty"})
			return
		}
		logrus.Errorf("Failed to ingest upload %s: %v", fileHeader.Filename, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to ingest document"})
		return
	}

	c.JSON(http.StatusCreated, doc)
}

// ListDocuments returns the user's documents, newest first.
func (h *Handlers) ListDocuments(c *gin.Context) {
	user, ok := h.resolveUser(c)
	if !ok {
		return
	}

	docs, err := h.documents.ListByUser(user.ID)
	if err != nil {
		logrus.Errorf("Failed to list documents: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list documents"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"documents": docs, "count": len(docs)})
}

// GetDocument returns one document with its transaction count.
func (h *Handlers) GetDocument(c *gin.Context) {
	user, ok := h.resolveUser(c)
	if !ok {
		return
	}

	doc, err := h.documents.FindByPublicID(c.Param("id"))
	if err != nil {
		logrus.Errorf("Failed to look up document: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to look up document"})
		return
	}
	if doc == nil || doc.UserID != user.ID {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		return
	}

	count, err := h.transactions.CountByDocumentPublicID(doc.PublicID)
	if err != nil {
		logrus.Errorf("Failed to count transactions: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count transactions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"document": doc, "transaction_count": count})
}

// GetDocumentContent streams the stored artifact back to the user.
func (h *Handlers) GetDocumentContent(c *gin.Context) {
	user, ok := h.resolveUser(c)
	if !ok {
		return
	}

	doc, err := h.documents.FindByPublicID(c.Param("id"))
	if err != nil {
		logrus.Errorf("Failed to look up document: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to look up document"})
		return
	}
	if doc == nil || doc.UserID != user.ID {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		return
	}

	data, err := h.blobs.Get(c.Request.Context(), doc.StorageKey)
	if err != nil {
		logrus.Errorf("Failed to fetch document content: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch document content"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+doc.OriginalName+`"`)
	c.Data(http.StatusOK, doc.ContentType, data)
}
