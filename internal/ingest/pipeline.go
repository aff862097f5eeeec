package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"ledgerlens-go/internal/metrics"
	"ledgerlens-go/internal/model"
	"ledgerlens-go/internal/storage"
)

// ErrEmptyFile rejects zero-byte inputs before any document record is
// created. Mail sync treats it as a skippable condition.
var ErrEmptyFile = errors.New("file is empty")

// DocumentStore persists document records and answers dedup queries.
type DocumentStore interface {
	Create(doc *model.Document) error
	Save(doc *model.Document) error
	ExistsBySourceMessageID(messageID string) (bool, error)
}

// TextExtractor converts stored bytes into plain text.
type TextExtractor interface {
	Extract(data []byte, contentType, filename string) (string, error)
}

// ModelClient turns document text into a raw structured-extraction
// response.
type ModelClient interface {
	ExtractTransactions(ctx context.Context, text, userName string) (string, error)
}

// Pipeline drives a document from raw bytes to a terminal status:
// store the blob, create the record, extract text, call the model,
// normalize the response and materialize transactions. Whatever
// happens after the record exists, the document ends COMPLETED or
// FAILED.
type Pipeline struct {
	blobs        storage.BlobStore
	documents    DocumentStore
	extractor    TextExtractor
	modelClient  ModelClient
	materializer *Materializer
	metrics      *metrics.Metrics
}

func NewPipeline(
	blobs storage.BlobStore,
	documents DocumentStore,
	extractor TextExtractor,
	modelClient ModelClient,
	materializer *Materializer,
	m *metrics.Metrics,
) *Pipeline {
	return &Pipeline{
		blobs:        blobs,
		documents:    documents,
		extractor:    extractor,
		modelClient:  modelClient,
		materializer: materializer,
		metrics:      m,
	}
}

// IngestAttachment ingests one mail attachment. A message that already
// produced a document is a silent no-op, so notification re-delivery
// and overlapping syncs stay idempotent.
func (p *Pipeline) IngestAttachment(ctx context.Context, user *model.User, messageID, filename, contentType string, data []byte) error {
	exists, err := p.documents.ExistsBySourceMessageID(messageID)
	if err != nil {
		return err
	}
	if exists {
		logrus.Debugf("Message %s already ingested, skipping", messageID)
		return nil
	}

	doc, err := p.createDocument(ctx, user, filename, contentType, data, &messageID)
	if err != nil {
		return err
	}

	return p.process(ctx, user, doc, data)
}

// IngestUpload ingests a document handed in directly over the API and
// returns its record after processing.
func (p *Pipeline) IngestUpload(ctx context.Context, user *model.User, filename, contentType string, data []byte) (*model.Document, error) {
	doc, err := p.createDocument(ctx, user, filename, contentType, data, nil)
	if err != nil {
		return nil, err
	}

	if err := p.process(ctx, user, doc, data); err != nil {
		return nil, err
	}
	return doc, nil
}

// createDocument stores the blob and creates the UPLOADED record.
// Failures here happen before any record exists and are returned to
// the caller instead of being recorded on a document.
func (p *Pipeline) createDocument(ctx context.Context, user *model.User, filename, contentType string, data []byte, sourceMessageID *string) (*model.Document, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, filename)
	}

	key, err := p.blobs.Put(ctx, data, contentType, filename)
	if err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}

	doc := &model.Document{
		StorageKey:      key,
		OriginalName:    filename,
		ContentType:     contentType,
		UserID:          user.ID,
		Status:          model.StatusUploaded,
		SourceMessageID: sourceMessageID,
	}
	if err := p.documents.Create(doc); err != nil {
		return nil, err
	}

	return doc, nil
}

// process runs the extraction stages. A database that cannot record
// the PROCESSING transition aborts the run before any model call;
// after that, any stage failure, including a panic, is absorbed into
// the document's FAILED status, with the terminal status write
// deferred so it always happens.
func (p *Pipeline) process(ctx context.Context, user *model.User, doc *model.Document, data []byte) error {
	start := time.Now()

	doc.Status = model.StatusProcessing
	if err := p.documents.Save(doc); err != nil {
		return fmt.Errorf("failed to mark document %s processing: %w", doc.PublicID, err)
	}

	var stageErr error
	defer func() {
		if r := recover(); r != nil {
			stageErr = fmt.Errorf("panic during processing: %v", r)
		}
		p.metrics.ProcessingTime.Observe(time.Since(start).Seconds())

		if stageErr == nil {
			doc.Status = model.StatusCompleted
			doc.FailureReason = nil
			p.metrics.DocumentsCompleted.Inc()
		} else {
			doc.Status = model.StatusFailed
			reason := truncate(stageErr.Error(), 500)
			doc.FailureReason = &reason
			p.metrics.DocumentsFailed.Inc()
			logrus.Errorf("Document %s failed: %v", doc.PublicID, stageErr)
		}

		if err := p.documents.Save(doc); err != nil {
			logrus.Errorf("Failed to persist terminal status for document %s: %v", doc.PublicID, err)
		}
	}()

	text, err := p.extractor.Extract(data, doc.ContentType, doc.OriginalName)
	if err != nil {
		stageErr = fmt.Errorf("text extraction: %w", err)
		return nil
	}

	raw, err := p.modelClient.ExtractTransactions(ctx, text, user.FullName)
	if err != nil {
		stageErr = fmt.Errorf("structured extraction: %w", err)
		return nil
	}

	payload, err := ExtractJSON(raw)
	if err != nil {
		stageErr = err
		return nil
	}

	count, err := p.materializer.Materialize(payload, doc)
	if err != nil {
		stageErr = fmt.Errorf("materialization: %w", err)
		return nil
	}

	p.metrics.TransactionsCreated.Add(float64(count))
	logrus.Infof("Document %s completed with %d transaction(s)", doc.PublicID, count)
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
