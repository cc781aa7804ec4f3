package mailer

import (
	"context"
	"crypto/tls"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/ternarybob/dailyscan/internal/common"
)

// Transport delivers a composed message to every recipient in one
// transaction.
type Transport interface {
	Send(ctx context.Context, from string, to []string, msg []byte) error
}

// SMTPTransport delivers over SMTP with PLAIN auth. TLS is "starttls"
// (upgrade after connect, port 587), "tls" (implicit TLS, port 465) or
// "none". With "none" net/smtp only allows auth to a loopback host, which
// config validation enforces.
type SMTPTransport struct {
	Host        string
	Port        int
	Username    string
	Password    string
	TLS         string
	DialTimeout time.Duration

	// TLSConfig replaces the default client TLS settings. ServerName
	// defaults to Host.
	TLSConfig *tls.Config
}

// NewSMTPTransport creates a transport from the mail settings
func NewSMTPTransport(config common.SMTPConfig) *SMTPTransport {
	return &SMTPTransport{
		Host:        config.Host,
		Port:        config.Port,
		Username:    config.Username,
		Password:    config.Password,
		TLS:         config.TLS,
		DialTimeout: config.DialTimeout(),
	}
}

// Send implements Transport. Failures are *common.MailError with Op set to
// the failing step: dial, starttls, auth or send.
func (t *SMTPTransport) Send(ctx context.Context, from string, to []string, msg []byte) error {
	addr := net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
	tlsConfig := &tls.Config{ServerName: t.Host, MinVersion: tls.VersionTLS12}
	if t.TLSConfig != nil {
		tlsConfig = t.TLSConfig.Clone()
		if tlsConfig.ServerName == "" {
			tlsConfig.ServerName = t.Host
		}
	}

	dialer := &net.Dialer{Timeout: t.DialTimeout}
	var conn net.Conn
	var err error
	if t.TLS == "tls" {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return &common.MailError{Op: "dial", Err: err}
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, t.Host)
	if err != nil {
		conn.Close()
		return &common.MailError{Op: "dial", Err: err}
	}
	defer client.Close()

	if t.TLS == "starttls" {
		if err := client.StartTLS(tlsConfig); err != nil {
			return &common.MailError{Op: "starttls", Err: err}
		}
	}

	if t.Username != "" {
		if err := client.Auth(smtp.PlainAuth("", t.Username, t.Password, t.Host)); err != nil {
			return &common.MailError{Op: "auth", Err: err}
		}
	}

	if err := client.Mail(from); err != nil {
		return &common.MailError{Op: "send", Err: err}
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return &common.MailError{Op: "send", Err: err}
		}
	}

	w, err := client.Data()
	if err != nil {
		return &common.MailError{Op: "send", Err: err}
	}
	if _, err := w.Write(msg); err != nil {
		return &common.MailError{Op: "send", Err: err}
	}
	if err := w.Close(); err != nil {
		return &common.MailError{Op: "send", Err: err}
	}

	// the message is accepted once DATA closes
	_ = client.Quit()
	return nil
}
