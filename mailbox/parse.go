package mailbox

import (
	"bytes"
	"io"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset" // register charset decoding
	"github.com/k3a/html2text"

	"github.com/civicworks/remedy/helpers"
	"github.com/civicworks/remedy/logger"
)

// Message is one scanned reply: the decoded subject line and the truncated
// plain-text body.
type Message struct {
	Subject string
	Body    string
}

// parseMessage extracts the subject and a bounded plain-text body from raw
// RFC 822 bytes.
func parseMessage(raw []byte, bodyLimit int) (Message, error) {
	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return Message{}, err
	}

	subject, err := entity.Header.Text("Subject")
	if err != nil {
		// Undecodable encoded words: fall back to the raw header value.
		subject = entity.Header.Get("Subject")
	}

	body := extractTextBody(entity, bodyLimit)
	return Message{Subject: subject, Body: body}, nil
}

// extractTextBody returns the first text/plain non-attachment part,
// converted HTML when no plain part exists, or "" when the message carries
// no text at all. The result is valid UTF-8 and at most limit bytes.
func extractTextBody(entity *message.Entity, limit int) string {
	var plainBody, htmlBody string
	collectText(entity, &plainBody, &htmlBody)

	body := plainBody
	if body == "" && htmlBody != "" {
		body = html2text.HTML2Text(htmlBody)
	}
	return helpers.TruncateString(helpers.SanitizeUTF8(body), limit)
}

// collectText walks the MIME structure and captures the first plain and
// first HTML text parts, skipping attachments.
func collectText(entity *message.Entity, plainBody, htmlBody *string) {
	mediaType, _, _ := entity.Header.ContentType()

	if strings.HasPrefix(mediaType, "multipart/") {
		mr := entity.MultipartReader()
		if mr == nil {
			return
		}
		for *plainBody == "" {
			part, err := mr.NextPart()
			if err == io.EOF {
				return
			}
			if err != nil && !message.IsUnknownCharset(err) {
				logger.Debug("failed to read message part", "error", err)
				return
			}
			collectText(part, plainBody, htmlBody)
		}
		return
	}

	if disposition, _, _ := entity.Header.ContentDisposition(); disposition == "attachment" {
		return
	}

	switch mediaType {
	// A missing Content-Type header means text/plain (RFC 2045)
	case "", "text/plain":
		if *plainBody == "" {
			*plainBody = readPart(entity)
		}
	case "text/html":
		if *htmlBody == "" {
			*htmlBody = readPart(entity)
		}
	}
}

// readPart reads a decoded part body. Transfer encoding is undone by
// go-message; charset conversion happens for every charset the charset
// package knows, anything else comes through raw and is sanitized later.
func readPart(entity *message.Entity) string {
	content, err := io.ReadAll(entity.Body)
	if err != nil {
		logger.Debug("failed to read message body", "error", err)
		return string(content)
	}
	return string(content)
}
