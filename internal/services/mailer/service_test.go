package mailer

import (
	"bufio"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/dailyscan/internal/common"
)

// MockTransport is a mock implementation of Transport
type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Send(ctx context.Context, from string, to []string, msg []byte) error {
	args := m.Called(ctx, from, to, msg)
	return args.Error(0)
}

var sentAt = time.Date(2024, 3, 4, 8, 30, 0, 0, time.FixedZone("CST", 8*3600))

func testSMTPConfig() common.SMTPConfig {
	return common.SMTPConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "bot@example.com",
		Password: "app-password",
		To:       []string{"alice@example.com", "bob@example.com"},
		FromName: "Daily Scan",
		TLS:      "starttls",
		Timeout:  "5s",
	}
}

func sampleMessage() Message {
	return Message{
		Subject: "Daily Stock Scan 2024-03-04 08:30",
		HTML:    "<p>Top <b>2330.TW</b></p>",
		Text:    "Top **2330.TW**",
		Attachments: []Attachment{
			{Filename: "scan_20240304_0830.csv", ContentType: "text/csv; charset=utf-8", Content: []byte("ticker\n2330.TW\n")},
			{Filename: "scan_20240304_0830.html", ContentType: "text/html; charset=utf-8", Content: []byte("<table></table>")},
		},
	}
}

type parsedPart struct {
	contentType string
	filename    string
	body        string
}

func parseMessage(t *testing.T, raw []byte) (*mail.Reader, []parsedPart) {
	t.Helper()

	mr, err := mail.CreateReader(strings.NewReader(string(raw)))
	require.NoError(t, err)

	var parts []parsedPart
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)

		body, err := io.ReadAll(p.Body)
		require.NoError(t, err)

		part := parsedPart{body: string(body)}
		switch h := p.Header.(type) {
		case *mail.InlineHeader:
			part.contentType, _, _ = h.ContentType()
		case *mail.AttachmentHeader:
			part.contentType, _, _ = h.ContentType()
			part.filename, _ = h.Filename()
		}
		parts = append(parts, part)
	}
	return mr, parts
}

func TestSend_ComposesOneMessageForAllRecipients(t *testing.T) {
	transport := new(MockTransport)
	var raw []byte
	transport.On("Send", mock.Anything, "bot@example.com", []string{"alice@example.com", "bob@example.com"}, mock.Anything).
		Run(func(args mock.Arguments) { raw = args.Get(3).([]byte) }).
		Return(nil).
		Once()

	svc := NewService(testSMTPConfig(), arbor.NewLogger(), WithTransport(transport), WithClock(func() time.Time { return sentAt }))
	require.NoError(t, svc.Send(context.Background(), sampleMessage()))
	transport.AssertExpectations(t)

	mr, parts := parseMessage(t, raw)

	subject, err := mr.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, "Daily Stock Scan 2024-03-04 08:30", subject)

	from, err := mr.Header.AddressList("From")
	require.NoError(t, err)
	require.Len(t, from, 1)
	assert.Equal(t, "Daily Scan", from[0].Name)
	assert.Equal(t, "bot@example.com", from[0].Address)

	to, err := mr.Header.AddressList("To")
	require.NoError(t, err)
	require.Len(t, to, 2)
	assert.Equal(t, "alice@example.com", to[0].Address)
	assert.Equal(t, "bob@example.com", to[1].Address)

	date, err := mr.Header.Date()
	require.NoError(t, err)
	assert.True(t, date.Equal(sentAt))

	id, err := mr.Header.MessageID()
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.Len(t, parts, 4)
	assert.Equal(t, parsedPart{contentType: "text/plain", body: "Top **2330.TW**"}, parts[0])
	assert.Equal(t, parsedPart{contentType: "text/html", body: "<p>Top <b>2330.TW</b></p>"}, parts[1])
	assert.Equal(t, parsedPart{contentType: "text/csv", filename: "scan_20240304_0830.csv", body: "ticker\n2330.TW\n"}, parts[2])
	assert.Equal(t, parsedPart{contentType: "text/html", filename: "scan_20240304_0830.html", body: "<table></table>"}, parts[3])
}

func TestSend_FromOverridesUsername(t *testing.T) {
	cfg := testSMTPConfig()
	cfg.From = "scan@example.com"

	transport := new(MockTransport)
	transport.On("Send", mock.Anything, "scan@example.com", cfg.To, mock.Anything).Return(nil).Once()

	svc := NewService(cfg, arbor.NewLogger(), WithTransport(transport))
	require.NoError(t, svc.Send(context.Background(), Message{Subject: "s", Text: "body"}))
	transport.AssertExpectations(t)
}

func TestSend_TransportFailureIsMailError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		wantOp string
	}{
		{"plain error", errors.New("connection reset"), "send"},
		{"mail error kept", &common.MailError{Op: "auth", Err: errors.New("535 bad credentials")}, "auth"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := new(MockTransport)
			transport.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(tt.err)

			svc := NewService(testSMTPConfig(), arbor.NewLogger(), WithTransport(transport))
			err := svc.Send(context.Background(), sampleMessage())

			var mailErr *common.MailError
			require.True(t, errors.As(err, &mailErr))
			assert.Equal(t, tt.wantOp, mailErr.Op)
			assert.Equal(t, common.ExitMailError, common.ExitCode(err))
		})
	}
}

func TestSend_ComposeErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*common.SMTPConfig)
		msg    Message
	}{
		{"no body", func(*common.SMTPConfig) {}, Message{Subject: "s"}},
		{"no recipients", func(c *common.SMTPConfig) { c.To = nil }, Message{Subject: "s", Text: "t"}},
		{"no sender", func(c *common.SMTPConfig) { c.Username = "" }, Message{Subject: "s", Text: "t"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testSMTPConfig()
			tt.mutate(&cfg)
			transport := new(MockTransport)

			svc := NewService(cfg, arbor.NewLogger(), WithTransport(transport))
			err := svc.Send(context.Background(), tt.msg)

			var mailErr *common.MailError
			require.True(t, errors.As(err, &mailErr))
			assert.Equal(t, "compose", mailErr.Op)
			transport.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "Daily Stock Scan 2024-03-04 08:30", Subject("Daily Stock Scan", sentAt))
}

// fakeSMTPServer accepts one SMTP session without auth and records the
// envelope and data. With starttls set it also answers STARTTLS.
type fakeSMTPServer struct {
	listener net.Listener
	starttls *tls.Config
	from     string
	rcpts    []string
	data     string
	done     chan struct{}
}

func startFakeSMTPServer(t *testing.T) *fakeSMTPServer {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return serveFakeSMTP(t, l, nil)
}

func serveFakeSMTP(t *testing.T, l net.Listener, starttls *tls.Config) *fakeSMTPServer {
	t.Helper()
	t.Cleanup(func() { l.Close() })

	s := &fakeSMTPServer{listener: l, starttls: starttls, done: make(chan struct{})}
	go s.serve()
	return s
}

// testCertificate borrows the httptest server certificate, valid for
// 127.0.0.1, and returns it with a pool that trusts it.
func testCertificate(t *testing.T) (tls.Certificate, *x509.CertPool) {
	t.Helper()

	srv := httptest.NewUnstartedServer(nil)
	srv.StartTLS()
	defer srv.Close()

	pool := x509.NewCertPool()
	pool.AddCert(srv.Certificate())
	return srv.TLS.Certificates[0], pool
}

func (s *fakeSMTPServer) port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

func (s *fakeSMTPServer) serve() {
	defer close(s.done)

	conn, err := s.listener.Accept()
	if err != nil {
		return
	}
	defer func() { conn.Close() }()

	tp := textproto.NewConn(conn)
	_ = tp.PrintfLine("220 localhost ESMTP")
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		cmd := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
			if s.starttls != nil {
				_ = tp.PrintfLine("250-localhost")
				_ = tp.PrintfLine("250 STARTTLS")
			} else {
				_ = tp.PrintfLine("250 localhost")
			}
		case cmd == "STARTTLS" && s.starttls != nil:
			_ = tp.PrintfLine("220 ready")
			tlsConn := tls.Server(conn, s.starttls)
			if err := tlsConn.Handshake(); err != nil {
				return
			}
			conn = tlsConn
			tp = textproto.NewConn(conn)
			s.starttls = nil
		case strings.HasPrefix(cmd, "MAIL FROM:"):
			s.from = strings.Trim(line[len("MAIL FROM:"):], "<> ")
			_ = tp.PrintfLine("250 OK")
		case strings.HasPrefix(cmd, "RCPT TO:"):
			s.rcpts = append(s.rcpts, strings.Trim(line[len("RCPT TO:"):], "<> "))
			_ = tp.PrintfLine("250 OK")
		case cmd == "DATA":
			_ = tp.PrintfLine("354 go ahead")
			data, err := io.ReadAll(tp.DotReader())
			if err != nil {
				return
			}
			s.data = string(data)
			_ = tp.PrintfLine("250 queued")
		case cmd == "QUIT":
			_ = tp.PrintfLine("221 bye")
			return
		default:
			_ = tp.PrintfLine("502 not implemented")
		}
	}
}

func TestSMTPTransport_DeliversOneTransaction(t *testing.T) {
	server := startFakeSMTPServer(t)

	transport := &SMTPTransport{Host: "127.0.0.1", Port: server.port(), TLS: "none", DialTimeout: 2 * time.Second}
	msg := []byte("Subject: hi\r\n\r\nhello\r\n")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, transport.Send(ctx, "bot@example.com", []string{"a@example.com", "b@example.com"}, msg))

	<-server.done
	assert.Equal(t, "bot@example.com", server.from)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, server.rcpts)
	assert.Contains(t, server.data, "hello")

	// the reader normalizes line endings
	reader := bufio.NewReader(strings.NewReader(server.data))
	first, _ := reader.ReadString('\n')
	assert.Equal(t, "Subject: hi\n", first)
}

func TestSMTPTransport_DialFailure(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	transport := &SMTPTransport{Host: "127.0.0.1", Port: port, TLS: "none", DialTimeout: time.Second}
	err = transport.Send(context.Background(), "bot@example.com", []string{"a@example.com"}, []byte("x"))

	var mailErr *common.MailError
	require.True(t, errors.As(err, &mailErr))
	assert.Equal(t, "dial", mailErr.Op)
}

func TestSMTPTransport_TLSModes(t *testing.T) {
	cert, pool := testCertificate(t)
	serverTLS := &tls.Config{Certificates: []tls.Certificate{cert}}

	tests := []struct {
		name   string
		mode   string
		listen func(t *testing.T) *fakeSMTPServer
	}{
		{
			name: "implicit tls",
			mode: "tls",
			listen: func(t *testing.T) *fakeSMTPServer {
				l, err := tls.Listen("tcp", "127.0.0.1:0", serverTLS)
				require.NoError(t, err)
				return serveFakeSMTP(t, l, nil)
			},
		},
		{
			name: "starttls upgrade",
			mode: "starttls",
			listen: func(t *testing.T) *fakeSMTPServer {
				l, err := net.Listen("tcp", "127.0.0.1:0")
				require.NoError(t, err)
				return serveFakeSMTP(t, l, serverTLS)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := tt.listen(t)

			transport := &SMTPTransport{
				Host:        "127.0.0.1",
				Port:        server.port(),
				TLS:         tt.mode,
				DialTimeout: 2 * time.Second,
				TLSConfig:   &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12},
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			require.NoError(t, transport.Send(ctx, "bot@example.com", []string{"a@example.com"}, []byte("Subject: hi\r\n\r\nhello\r\n")))

			<-server.done
			assert.Equal(t, "bot@example.com", server.from)
			assert.Equal(t, []string{"a@example.com"}, server.rcpts)
			assert.Contains(t, server.data, "hello")
		})
	}
}

func TestSMTPTransport_StartTLSRefused(t *testing.T) {
	// a server without STARTTLS answers 502
	server := startFakeSMTPServer(t)

	transport := &SMTPTransport{Host: "127.0.0.1", Port: server.port(), TLS: "starttls", DialTimeout: 2 * time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := transport.Send(ctx, "bot@example.com", []string{"a@example.com"}, []byte("x"))

	var mailErr *common.MailError
	require.True(t, errors.As(err, &mailErr))
	assert.Equal(t, "starttls", mailErr.Op)

	<-server.done
	assert.Empty(t, server.rcpts)
}

func TestSMTPTransport_UntrustedCertificate(t *testing.T) {
	cert, _ := testCertificate(t)
	l, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{Certificates: []tls.Certificate{cert}})
	require.NoError(t, err)
	server := serveFakeSMTP(t, l, nil)

	// system roots do not trust the test certificate
	transport := &SMTPTransport{Host: "127.0.0.1", Port: server.port(), TLS: "tls", DialTimeout: 2 * time.Second}
	err = transport.Send(context.Background(), "bot@example.com", []string{"a@example.com"}, []byte("x"))

	var mailErr *common.MailError
	require.True(t, errors.As(err, &mailErr))
	assert.Equal(t, "dial", mailErr.Op)
}

func TestNewSMTPTransport(t *testing.T) {
	transport := NewSMTPTransport(testSMTPConfig())
	assert.Equal(t, "smtp.example.com", transport.Host)
	assert.Equal(t, 587, transport.Port)
	assert.Equal(t, "starttls", transport.TLS)
	assert.Equal(t, 5*time.Second, transport.DialTimeout)
}
