package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/civicworks/remedy/config"
	"github.com/civicworks/remedy/logger"
	"github.com/civicworks/remedy/pkg/metrics"
)

// SendError wraps a transport failure with information about whether it is
// temporary. Temporary errors (4xx SMTP codes, network errors) would
// succeed on a later attempt; the next dispatch of the same record is the
// retry mechanism.
type SendError struct {
	Err       error
	Temporary bool
}

func (e *SendError) Error() string {
	if e.Temporary {
		return fmt.Sprintf("temporary send failure: %v", e.Err)
	}
	return fmt.Sprintf("permanent send failure: %v", e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// isTemporary reports whether an SMTP-level error is worth retrying on a
// later run. 5xx replies are permanent; 4xx replies and anything that is
// not an SMTP reply (network, TLS) are temporary.
func isTemporary(err error) bool {
	var smtpErr *smtp.SMTPError
	if errors.As(err, &smtpErr) {
		return smtpErr.Temporary()
	}
	return true
}

// SMTPMailer sends plain-text notifications to the fixed recipient through
// an authenticated SMTP submission endpoint.
type SMTPMailer struct {
	host        string
	username    string
	password    string
	recipient   string
	useStartTLS bool
}

// NewSMTPMailer creates a mailer from the mail configuration
func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	return &SMTPMailer{
		host:        cfg.SMTPHost,
		username:    cfg.Username,
		password:    cfg.Password,
		recipient:   cfg.Recipient,
		useStartTLS: cfg.SMTPStartTLS,
	}
}

// Send delivers a single plain-text message. The context is only consulted
// before dialing: an in-flight SMTP exchange is not interrupted.
func (m *SMTPMailer) Send(ctx context.Context, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return &SendError{Err: err, Temporary: true}
	}

	msg, err := m.buildMessage(subject, body)
	if err != nil {
		metrics.NotificationsSent.WithLabelValues("failure").Inc()
		return &SendError{Err: fmt.Errorf("failed to build message: %w", err), Temporary: false}
	}

	if err := m.submit(msg); err != nil {
		metrics.NotificationsSent.WithLabelValues("failure").Inc()
		return err
	}

	metrics.NotificationsSent.WithLabelValues("success").Inc()
	logger.Info("notification sent", "subject", subject, "to", m.recipient)
	return nil
}

// buildMessage renders the RFC 822 message bytes
func (m *SMTPMailer) buildMessage(subject, body string) ([]byte, error) {
	var buf bytes.Buffer

	var h mail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*mail.Address{{Address: m.username}})
	h.SetAddressList("To", []*mail.Address{{Address: m.recipient}})
	h.SetSubject(subject)

	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(w, body); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *SMTPMailer) submit(msg []byte) error {
	tlsConfig := &tls.Config{
		MinVersion:    tls.VersionTLS12,
		Renegotiation: tls.RenegotiateNever,
	}

	var c *smtp.Client
	var err error
	if m.useStartTLS {
		c, err = smtp.DialStartTLS(m.host, tlsConfig)
	} else {
		c, err = smtp.DialTLS(m.host, tlsConfig)
	}
	if err != nil {
		return &SendError{Err: fmt.Errorf("failed to connect to %s: %w", m.host, err), Temporary: true}
	}
	defer c.Close()

	if err := c.Auth(sasl.NewPlainClient("", m.username, m.password)); err != nil {
		return &SendError{Err: fmt.Errorf("authentication failed: %w", err), Temporary: isTemporary(err)}
	}

	if err := c.Mail(m.username, nil); err != nil {
		return &SendError{Err: fmt.Errorf("failed to set sender: %w", err), Temporary: isTemporary(err)}
	}
	if err := c.Rcpt(m.recipient, nil); err != nil {
		return &SendError{Err: fmt.Errorf("failed to set recipient: %w", err), Temporary: isTemporary(err)}
	}

	wc, err := c.Data()
	if err != nil {
		return &SendError{Err: fmt.Errorf("failed to start data: %w", err), Temporary: isTemporary(err)}
	}
	if _, err := wc.Write(msg); err != nil {
		_ = wc.Close()
		return &SendError{Err: fmt.Errorf("failed to write message: %w", err), Temporary: true}
	}
	if err := wc.Close(); err != nil {
		return &SendError{Err: fmt.Errorf("failed to close data writer: %w", err), Temporary: isTemporary(err)}
	}

	if err := c.Quit(); err != nil {
		// The message was already accepted; a failed QUIT is not a delivery failure.
		logger.Warn("failed to send QUIT", "error", err)
	}
	return nil
}
