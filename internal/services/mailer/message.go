package mailer

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-message/mail"
)

// Attachment represents an email attachment
type Attachment struct {
	Filename    string // Filename for the attachment
	ContentType string // MIME type, e.g. "text/csv; charset=utf-8"
	Content     []byte
}

// Message is one outgoing email. HTML and Text are sent as alternatives;
// either may be empty but not both.
type Message struct {
	Subject     string
	HTML        string
	Text        string
	Attachments []Attachment
}

// envelope carries the addressing for a composed message
type envelope struct {
	From *mail.Address
	To   []*mail.Address
	Date time.Time
}

// compose writes msg as a multipart/mixed RFC 5322 message: a
// multipart/alternative body followed by one part per attachment.
func compose(env envelope, msg Message) ([]byte, error) {
	if msg.HTML == "" && msg.Text == "" {
		return nil, fmt.Errorf("message has no body")
	}

	var h mail.Header
	h.SetDate(env.Date)
	h.SetAddressList("From", []*mail.Address{env.From})
	h.SetAddressList("To", env.To)
	h.SetSubject(msg.Subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("failed to generate message id: %w", err)
	}

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create message writer: %w", err)
	}

	iw, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("failed to create body: %w", err)
	}
	if msg.Text != "" {
		if err := writeInline(iw, "text/plain", msg.Text); err != nil {
			return nil, err
		}
	}
	if msg.HTML != "" {
		if err := writeInline(iw, "text/html", msg.HTML); err != nil {
			return nil, err
		}
	}
	if err := iw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close body: %w", err)
	}

	for _, att := range msg.Attachments {
		var ah mail.AttachmentHeader
		contentType := att.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		ah.Set("Content-Type", contentType)
		ah.SetFilename(att.Filename)

		w, err := mw.CreateAttachment(ah)
		if err != nil {
			return nil, fmt.Errorf("failed to create attachment %s: %w", att.Filename, err)
		}
		if _, err := w.Write(att.Content); err != nil {
			return nil, fmt.Errorf("failed to write attachment %s: %w", att.Filename, err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("failed to close attachment %s: %w", att.Filename, err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close message: %w", err)
	}
	return buf.Bytes(), nil
}

func writeInline(iw *mail.InlineWriter, mediaType, body string) error {
	var h mail.InlineHeader
	h.SetContentType(mediaType, map[string]string{"charset": "utf-8"})

	w, err := iw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("failed to create %s part: %w", mediaType, err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		return fmt.Errorf("failed to write %s part: %w", mediaType, err)
	}
	return w.Close()
}
