package mailsync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"ledgerlens-go/internal/gmail"
	"ledgerlens-go/internal/ingest"
	"ledgerlens-go/internal/metrics"
	"ledgerlens-go/internal/model"
)

// MailboxFactory opens the mailbox capability for a user.
type MailboxFactory interface {
	MailboxFor(ctx context.Context, user *model.User) (gmail.Mailbox, error)
}

// Ingestor runs the document pipeline for one mail attachment.
type Ingestor interface {
	IngestAttachment(ctx context.Context, user *model.User, messageID, filename, contentType string, data []byte) error
}

// subjectKeywords marks a message as potentially transactional. Case
// insensitive.
var subjectKeywords = []string{
	"payment", "transaction", "credited", "debited", "upi", "invoice", "receipt",
}

// Worker performs the incremental mailbox sync: list messages added
// since the user's cursor, ingest the attachments of the transactional
// ones, then advance the cursor to the notified history id. The cursor
// only moves after the whole batch succeeds, so an aborted batch is
// retried from the same position by the next notification. The account
// is reloaded at the start of every run: the snapshot taken at
// notification time may be stale by the time the sequencer admits the
// run, and the cursor must only ever move forward.
type Worker struct {
	factory  MailboxFactory
	users    UserStore
	ingestor Ingestor
	metrics  *metrics.Metrics
}

func NewWorker(factory MailboxFactory, users UserStore, ingestor Ingestor, m *metrics.Metrics) *Worker {
	return &Worker{factory: factory, users: users, ingestor: ingestor, metrics: m}
}

func (w *Worker) Sync(ctx context.Context, user *model.User, notifiedHistoryID uint64) error {
	reloaded, err := w.users.FindByEmail(user.Email)
	if err != nil {
		w.metrics.SyncFailures.Inc()
		return fmt.Errorf("failed to reload account %s: %w", user.Email, err)
	}
	user = reloaded

	// No baseline means nothing to diff against. Record one and let
	// the next notification drive the first real sync.
	if user.LastHistoryID == nil {
		user.LastHistoryID = &notifiedHistoryID
		if err := w.users.Save(user); err != nil {
			return fmt.Errorf("failed to record sync baseline for %s: %w", user.Email, err)
		}
		logrus.Infof("Recorded sync baseline %d for %s", notifiedHistoryID, user.Email)
		return nil
	}

	// An earlier run may have moved the cursor past this notification
	// while it sat in the queue.
	if notifiedHistoryID <= *user.LastHistoryID {
		logrus.Debugf("Cursor for %s already at %d, notification %d has nothing new", user.Email, *user.LastHistoryID, notifiedHistoryID)
		return nil
	}
	since := *user.LastHistoryID

	if err := w.sync(ctx, user, since, notifiedHistoryID); err != nil {
		w.metrics.SyncFailures.Inc()
		return err
	}

	user.LastHistoryID = &notifiedHistoryID
	if err := w.users.Save(user); err != nil {
		w.metrics.SyncFailures.Inc()
		return fmt.Errorf("failed to advance cursor for %s: %w", user.Email, err)
	}

	w.metrics.SyncSuccesses.Inc()
	logrus.Infof("Synced %s from historyId %d to %d", user.Email, since, notifiedHistoryID)
	return nil
}

func (w *Worker) sync(ctx context.Context, user *model.User, since, notifiedHistoryID uint64) error {
	mailbox, err := w.factory.MailboxFor(ctx, user)
	if err != nil {
		return fmt.Errorf("failed to open mailbox for %s: %w", user.Email, err)
	}

	messageIDs, err := mailbox.ListAddedMessages(ctx, since)
	if err != nil {
		return err
	}
	logrus.Debugf("Sync for %s: %d message(s) since historyId %d", user.Email, len(messageIDs), since)

	for _, id := range messageIDs {
		if err := w.processMessage(ctx, mailbox, user, id); err != nil {
			// A message can disappear between the history listing
			// and the fetch. Nothing to ingest, move on.
			if gmail.IsNotFound(err) {
				logrus.Warnf("Message %s no longer exists, skipping", id)
				continue
			}
			return fmt.Errorf("message %s: %w", id, err)
		}
	}

	return nil
}

func (w *Worker) processMessage(ctx context.Context, mailbox gmail.Mailbox, user *model.User, messageID string) error {
	msg, err := mailbox.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}

	if !isTransactionEmail(msg.Subject) {
		logrus.Debugf("Message %s subject not transactional, skipping", messageID)
		return nil
	}

	for _, part := range msg.Parts {
		data, err := mailbox.GetAttachment(ctx, messageID, part.AttachmentID)
		if err != nil {
			return err
		}

		err = w.ingestor.IngestAttachment(ctx, user, messageID, part.Filename, part.MIMEType, data)
		if err != nil {
			if errors.Is(err, ingest.ErrEmptyFile) {
				logrus.Warnf("Empty attachment %s in message %s, skipping", part.Filename, messageID)
				continue
			}
			return err
		}
	}

	return nil
}

func isTransactionEmail(subject string) bool {
	lower := strings.ToLower(subject)
	for _, kw := range subjectKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
