package ingest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerlens-go/internal/metrics"
	"ledgerlens-go/internal/model"
)

// Shared across the package's tests; promauto registers globally.
var testMetrics = metrics.NewMetrics()

type fakeBlobStore struct {
	putErr error
	stored map[string][]byte
}

func (f *fakeBlobStore) Put(ctx context.Context, data []byte, contentType, originalName string) (string, error) {
	if f.putErr != nil {
		return "", f.putErr
	}
	if f.stored == nil {
		f.stored = make(map[string][]byte)
	}
	key := "blob-" + originalName
	f.stored[key] = data
	return key, nil
}

func (f *fakeBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	return f.stored[key], nil
}

type fakeDocumentStore struct {
	nextID   uint
	created  []*model.Document
	statuses []string
	existing map[string]bool
	saveErr  error
}

func (f *fakeDocumentStore) Create(doc *model.Document) error {
	f.nextID++
	doc.ID = f.nextID
	doc.PublicID = fmt.Sprintf("doc-%d", f.nextID)
	f.created = append(f.created, doc)
	return nil
}

func (f *fakeDocumentStore) Save(doc *model.Document) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.statuses = append(f.statuses, doc.Status)
	return nil
}

func (f *fakeDocumentStore) ExistsBySourceMessageID(messageID string) (bool, error) {
	return f.existing[messageID], nil
}

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) Extract(data []byte, contentType, filename string) (string, error) {
	return f.text, f.err
}

type fakeModelClient struct {
	response string
	err      error
	calls    int
}

func (f *fakeModelClient) ExtractTransactions(ctx context.Context, text, userName string) (string, error) {
	f.calls++
	return f.response, f.err
}

const validResponse = `{"client": "Acme", "txnDate": "2026-03-15", "amountAfterTax": 118.00, "category": "Hosting", "transactionType": "EXPENSE"}`

func newTestPipeline(blobs *fakeBlobStore, docs *fakeDocumentStore, ex *fakeExtractor, mc *fakeModelClient, txs *fakeTransactionStore) *Pipeline {
	return NewPipeline(blobs, docs, ex, mc, NewMaterializer(txs), testMetrics)
}

func TestIngestUploadCompleted(t *testing.T) {
	docs := &fakeDocumentStore{}
	txs := &fakeTransactionStore{}
	p := newTestPipeline(
		&fakeBlobStore{},
		docs,
		&fakeExtractor{text: "invoice text"},
		&fakeModelClient{response: validResponse},
		txs,
	)

	user := &model.User{ID: 3, Email: "a@b.c", FullName: "Ada"}
	doc, err := p.IngestUpload(context.Background(), user, "invoice.pdf", "application/pdf", []byte("%PDF"))
	require.NoError(t, err)

	assert.Equal(t, model.StatusCompleted, doc.Status)
	assert.Nil(t, doc.FailureReason)
	assert.Equal(t, "blob-invoice.pdf", doc.StorageKey)
	require.Len(t, txs.saved, 1)
	assert.Equal(t, uint(3), txs.saved[0].UserID)

	// PROCESSING was persisted before the terminal status.
	assert.Equal(t, []string{model.StatusProcessing, model.StatusCompleted}, docs.statuses)
}

func TestIngestUploadModelFailure(t *testing.T) {
	docs := &fakeDocumentStore{}
	txs := &fakeTransactionStore{}
	p := newTestPipeline(
		&fakeBlobStore{},
		docs,
		&fakeExtractor{text: "invoice text"},
		&fakeModelClient{err: fmt.Errorf("model unavailable")},
		txs,
	)

	user := &model.User{ID: 3}
	doc, err := p.IngestUpload(context.Background(), user, "invoice.pdf", "application/pdf", []byte("%PDF"))
	require.NoError(t, err)

	assert.Equal(t, model.StatusFailed, doc.Status)
	require.NotNil(t, doc.FailureReason)
	assert.Contains(t, *doc.FailureReason, "model unavailable")
	assert.Empty(t, txs.saved)
}

func TestIngestUploadUnparsableResponse(t *testing.T) {
	docs := &fakeDocumentStore{}
	p := newTestPipeline(
		&fakeBlobStore{},
		docs,
		&fakeExtractor{text: "invoice text"},
		&fakeModelClient{response: "no transactions found, sorry"},
		&fakeTransactionStore{},
	)

	doc, err := p.IngestUpload(context.Background(), &model.User{ID: 3}, "a.pdf", "application/pdf", []byte("x"))
	require.NoError(t, err)

	assert.Equal(t, model.StatusFailed, doc.Status)
	require.NotNil(t, doc.FailureReason)
	assert.Contains(t, *doc.FailureReason, "no JSON value")
}

func TestIngestUploadEmptyFile(t *testing.T) {
	docs := &fakeDocumentStore{}
	p := newTestPipeline(&fakeBlobStore{}, docs, &fakeExtractor{}, &fakeModelClient{}, &fakeTransactionStore{})

	_, err := p.IngestUpload(context.Background(), &model.User{ID: 3}, "a.pdf", "application/pdf", nil)
	assert.ErrorIs(t, err, ErrEmptyFile)
	assert.Empty(t, docs.created)
}

func TestIngestUploadStorageFailure(t *testing.T) {
	docs := &fakeDocumentStore{}
	p := newTestPipeline(
		&fakeBlobStore{putErr: fmt.Errorf("bucket unavailable")},
		docs,
		&fakeExtractor{},
		&fakeModelClient{},
		&fakeTransactionStore{},
	)

	_, err := p.IngestUpload(context.Background(), &model.User{ID: 3}, "a.pdf", "application/pdf", []byte("x"))
	require.Error(t, err)
	assert.Empty(t, docs.created)
}

// A database that cannot record the PROCESSING transition would also
// fail the terminal status write later, so the run stops before
// spending a model call.
func TestIngestUploadAbortsWhenProcessingMarkFails(t *testing.T) {
	docs := &fakeDocumentStore{saveErr: fmt.Errorf("connection reset")}
	mc := &fakeModelClient{response: validResponse}
	p := newTestPipeline(&fakeBlobStore{}, docs, &fakeExtractor{text: "t"}, mc, &fakeTransactionStore{})

	_, err := p.IngestUpload(context.Background(), &model.User{ID: 3}, "a.pdf", "application/pdf", []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Zero(t, mc.calls)
}

func TestIngestAttachmentDeduplicates(t *testing.T) {
	docs := &fakeDocumentStore{existing: map[string]bool{"msg-1": true}}
	mc := &fakeModelClient{response: validResponse}
	p := newTestPipeline(&fakeBlobStore{}, docs, &fakeExtractor{text: "t"}, mc, &fakeTransactionStore{})

	err := p.IngestAttachment(context.Background(), &model.User{ID: 3}, "msg-1", "a.pdf", "application/pdf", []byte("x"))
	require.NoError(t, err)
	assert.Empty(t, docs.created)
	assert.Zero(t, mc.calls)
}

func TestIngestAttachmentRecordsSource(t *testing.T) {
	docs := &fakeDocumentStore{}
	p := newTestPipeline(
		&fakeBlobStore{},
		docs,
		&fakeExtractor{text: "t"},
		&fakeModelClient{response: validResponse},
		&fakeTransactionStore{},
	)

	err := p.IngestAttachment(context.Background(), &model.User{ID: 3}, "msg-9", "a.pdf", "application/pdf", []byte("x"))
	require.NoError(t, err)
	require.Len(t, docs.created, 1)
	require.NotNil(t, docs.created[0].SourceMessageID)
	assert.Equal(t, "msg-9", *docs.created[0].SourceMessageID)
	assert.Equal(t, model.StatusCompleted, docs.created[0].Status)
}

func TestFailureReasonTruncated(t *testing.T) {
	docs := &fakeDocumentStore{}
	longMsg := ""
	for i := 0; i < 60; i++ {
		longMsg += "very long failure detail "
	}
	p := newTestPipeline(
		&fakeBlobStore{},
		docs,
		&fakeExtractor{err: fmt.Errorf("%s", longMsg)},
		&fakeModelClient{},
		&fakeTransactionStore{},
	)

	doc, err := p.IngestUpload(context.Background(), &model.User{ID: 3}, "a.pdf", "application/pdf", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, doc.Status)
	require.NotNil(t, doc.FailureReason)
	assert.LessOrEqual(t, len(*doc.FailureReason), 500)
}
