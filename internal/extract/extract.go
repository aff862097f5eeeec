package extract

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/emersion/go-message"
	"github.com/ledongthuc/pdf"
	"github.com/sirupsen/logrus"
)

// TextExtractor converts raw document bytes into plain text for the
// extraction model. PDFs, plain-text formats and forwarded .eml files
// are supported.
type TextExtractor struct{}

func New() *TextExtractor {
	return &TextExtractor{}
}

func (e *TextExtractor) Extract(data []byte, contentType, filename string) (string, error) {
	if len(data) == 0 {
		logrus.Warn("Attachment is empty, returning empty text")
		return "", nil
	}

	ext := strings.ToLower(filepath.Ext(filename))
	mediaType := strings.ToLower(contentType)
	if idx := strings.Index(mediaType, ";"); idx != -1 {
		mediaType = strings.TrimSpace(mediaType[:idx])
	}

	switch {
	case mediaType == "application/pdf" || ext == ".pdf":
		return extractPDF(data)
	case mediaType == "message/rfc822" || ext == ".eml":
		return extractEmail(data)
	case strings.HasPrefix(mediaType, "text/") || mediaType == "application/json" ||
		ext == ".txt" || ext == ".csv" || ext == ".md" || ext == ".json":
		return string(data), nil
	default:
		if utf8.Valid(data) {
			return string(data), nil
		}
		return "", fmt.Errorf("unsupported document format %q (%s)", contentType, filename)
	}
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	r, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract PDF text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return "", fmt.Errorf("failed to read PDF text: %w", err)
	}

	return buf.String(), nil
}

// extractEmail pulls the subject and text parts out of a forwarded
// RFC 822 message.
func extractEmail(data []byte) (string, error) {
	entity, err := message.Read(bytes.NewReader(data))
	if err != nil && entity == nil {
		return "", fmt.Errorf("failed to read message: %w", err)
	}

	var buf strings.Builder
	if subject := entity.Header.Get("Subject"); subject != "" {
		buf.WriteString("Subject: " + subject + "\n\n")
	}

	if mr := entity.MultipartReader(); mr != nil {
		for {
			p, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				return "", fmt.Errorf("failed to read part: %w", err)
			}

			contentType := p.Header.Get("Content-Type")
			if !strings.Contains(contentType, "text/plain") {
				continue
			}

			content, err := io.ReadAll(p.Body)
			if err != nil {
				return "", fmt.Errorf("failed to read part body: %w", err)
			}
			buf.Write(content)
			buf.WriteString("\n")
		}
	} else {
		content, err := io.ReadAll(entity.Body)
		if err != nil {
			return "", fmt.Errorf("failed to read message body: %w", err)
		}
		buf.Write(content)
	}

	return buf.String(), nil
}
