package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
)

// ErrMessageNotFound signals that an individual message vanished between
// the notification and the fetch. Callers skip it and continue.
var ErrMessageNotFound = errors.New("message not found")

// IsNotFound reports whether err is a missing-message condition, either
// our sentinel or a 404 from the Gmail API.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrMessageNotFound) {
		return true
	}
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

// AttachmentPart is one named attachment inside a message.
type AttachmentPart struct {
	Filename     string
	MIMEType     string
	AttachmentID string
}

// Message is the subset of a mailbox message this service cares about.
type Message struct {
	ID      string
	Subject string
	Parts   []AttachmentPart
}

// Mailbox is the capability interface over one user's mailbox.
type Mailbox interface {
	// ListAddedMessages returns the ids of messages added to the
	// mailbox since the given history cursor, in mailbox order.
	ListAddedMessages(ctx context.Context, sinceHistoryID uint64) ([]string, error)
	GetMessage(ctx context.Context, messageID string) (*Message, error)
	GetAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error)
}

type userMailbox struct {
	service *gmailapi.Service
}

func (m *userMailbox) ListAddedMessages(ctx context.Context, sinceHistoryID uint64) ([]string, error) {
	var ids []string
	pageToken := ""

	for {
		call := m.service.Users.History.List("me").
			StartHistoryId(sinceHistoryID).
			HistoryTypes("messageAdded").
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list history: %w", err)
		}

		for _, h := range resp.History {
			for _, added := range h.MessagesAdded {
				if added.Message == nil || added.Message.Id == "" {
					continue
				}
				ids = append(ids, added.Message.Id)
			}
		}

		if resp.NextPageToken == "" {
			return ids, nil
		}
		pageToken = resp.NextPageToken
	}
}

func (m *userMailbox) GetMessage(ctx context.Context, messageID string) (*Message, error) {
	msg, err := m.service.Users.Messages.Get("me", messageID).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", messageID, err)
	}

	out := &Message{ID: messageID}
	if msg.Payload == nil {
		return out, nil
	}

	for _, header := range msg.Payload.Headers {
		if strings.EqualFold(header.Name, "Subject") {
			out.Subject = header.Value
			break
		}
	}

	collectAttachmentParts(msg.Payload, out)
	return out, nil
}

// collectAttachmentParts walks the part tree; Gmail nests parts for
// multipart messages.
func collectAttachmentParts(part *gmailapi.MessagePart, out *Message) {
	for _, p := range part.Parts {
		if p.Filename != "" && p.Body != nil && p.Body.AttachmentId != "" {
			out.Parts = append(out.Parts, AttachmentPart{
				Filename:     p.Filename,
				MIMEType:     p.MimeType,
				AttachmentID: p.Body.AttachmentId,
			})
		}
		collectAttachmentParts(p, out)
	}
}

func (m *userMailbox) GetAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error) {
	body, err := m.service.Users.Messages.Attachments.
		Get("me", messageID, attachmentID).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get attachment %s of message %s: %w", attachmentID, messageID, err)
	}

	data, err := decodeBase64URL(body.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode attachment data: %w", err)
	}
	return data, nil
}

func decodeBase64URL(s string) ([]byte, error) {
	data, err := base64.URLEncoding.DecodeString(s)
	if err == nil {
		return data, nil
	}
	return base64.RawURLEncoding.DecodeString(s)
}
