// Package mailer composes report emails and delivers them over SMTP.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/dailyscan/internal/common"
)

// Service sends report emails to the configured recipients
type Service struct {
	config    common.SMTPConfig
	transport Transport
	logger    arbor.ILogger
	now       func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithTransport replaces the SMTP transport
func WithTransport(t Transport) Option {
	return func(s *Service) {
		s.transport = t
	}
}

// WithClock sets the time source used for the Date header
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new mailer service
func NewService(config common.SMTPConfig, logger arbor.ILogger, opts ...Option) *Service {
	s := &Service{
		config: config,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.transport == nil {
		s.transport = NewSMTPTransport(config)
	}
	return s
}

// sender returns the From address, defaulting to the SMTP username
func (s *Service) sender() string {
	if s.config.From != "" {
		return s.config.From
	}
	return s.config.Username
}

// Send composes msg and delivers it to every recipient in one transaction.
// Any failure is returned as a *common.MailError.
func (s *Service) Send(ctx context.Context, msg Message) error {
	from := s.sender()
	if from == "" {
		return &common.MailError{Op: "compose", Err: errors.New("no sender address configured")}
	}
	if len(s.config.To) == 0 {
		return &common.MailError{Op: "compose", Err: errors.New("no recipients configured")}
	}

	to := make([]*mail.Address, len(s.config.To))
	for i, addr := range s.config.To {
		to[i] = &mail.Address{Address: addr}
	}

	raw, err := compose(envelope{
		From: &mail.Address{Name: s.config.FromName, Address: from},
		To:   to,
		Date: s.now(),
	}, msg)
	if err != nil {
		return &common.MailError{Op: "compose", Err: err}
	}

	started := time.Now()
	if err := s.transport.Send(ctx, from, s.config.To, raw); err != nil {
		s.logger.Error().
			Err(err).
			Str("host", s.config.Host).
			Int("port", s.config.Port).
			Msg("Failed to send email")

		var mailErr *common.MailError
		if errors.As(err, &mailErr) {
			return err
		}
		return &common.MailError{Op: "send", Err: err}
	}

	s.logger.Info().
		Str("subject", msg.Subject).
		Int("recipients", len(s.config.To)).
		Int("attachments", len(msg.Attachments)).
		Int("size", len(raw)).
		Dur("duration", time.Since(started)).
		Msg("Email sent")

	return nil
}

// Subject joins the configured prefix and the run time, e.g.
// "Daily Stock Scan 2024-03-04 08:30".
func Subject(prefix string, at time.Time) string {
	return fmt.Sprintf("%s %s", prefix, at.Format("2006-01-02 15:04"))
}
