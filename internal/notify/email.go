package notify

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/adirsaban8-oss/ADIRS/internal/config"

	"github.com/rs/zerolog"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// ErrDisabled is returned by senders whose channel is switched off.
var ErrDisabled = errors.New("notify: channel disabled")

// SendGridSender sends email through the SendGrid v3 API.
type SendGridSender struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
	logger    *zerolog.Logger
}

func NewSendGridSender(apiKey, fromEmail, fromName string, logger *zerolog.Logger) *SendGridSender {
	return newSendGridSender(apiKey, "", fromEmail, fromName, logger)
}

// newSendGridSender allows overriding the API host.
func newSendGridSender(apiKey, host, fromEmail, fromName string, logger *zerolog.Logger) *SendGridSender {
	req := sendgrid.GetRequest(apiKey, "/v3/mail/send", host)
	req.Method = "POST"
	return &SendGridSender{
		client:    &sendgrid.Client{Request: req},
		fromEmail: fromEmail,
		fromName:  fromName,
		logger:    logger,
	}
}

func (s *SendGridSender) SendEmail(ctx context.Context, to, subject, htmlBody string) error {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	message := mail.NewSingleEmail(from, subject, mail.NewEmail("", to), "", htmlBody)

	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("notify: sendgrid send failed: %w", err)
	}
	if resp.StatusCode >= 400 {
		s.logger.Error().Int("status", resp.StatusCode).Str("body", resp.Body).Msg("sendgrid returned error status")
		return fmt.Errorf("notify: sendgrid returned status %d", resp.StatusCode)
	}
	s.logger.Info().Str("subject", subject).Int("status", resp.StatusCode).Msg("email sent via sendgrid")
	return nil
}

// SMTPSender sends email with STARTTLS and PLAIN auth.
type SMTPSender struct {
	addr     string
	host     string
	auth     smtp.Auth
	from     string
	fromName string
	logger   *zerolog.Logger
	send     func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(cfg config.EmailConfig, logger *zerolog.Logger) *SMTPSender {
	var auth smtp.Auth
	if cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPHost)
	}
	from := cfg.FromAddress
	if from == "" {
		from = cfg.SMTPUsername
	}
	return &SMTPSender{
		addr:     net.JoinHostPort(cfg.SMTPHost, strconv.Itoa(cfg.SMTPPort)),
		host:     cfg.SMTPHost,
		auth:     auth,
		from:     from,
		fromName: cfg.FromName,
		logger:   logger,
		send:     smtp.SendMail,
	}
}

func (s *SMTPSender) SendEmail(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := buildMIME(s.fromName, s.from, to, subject, htmlBody)
	if err := s.send(s.addr, s.auth, s.from, []string{to}, msg); err != nil {
		return fmt.Errorf("notify: smtp send failed: %w", err)
	}
	s.logger.Info().Str("subject", subject).Msg("email sent via smtp")
	return nil
}

func buildMIME(fromName, from, to, subject, htmlBody string) []byte {
	var b strings.Builder
	fromHeader := from
	if fromName != "" {
		fromHeader = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", fromName), from)
	}
	b.WriteString("From: " + fromHeader + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String())
}

// NoopEmailSender is used when email.provider is none.
type NoopEmailSender struct {
	logger *zerolog.Logger
}

func NewNoopEmailSender(logger *zerolog.Logger) *NoopEmailSender {
	return &NoopEmailSender{logger: logger}
}

func (s *NoopEmailSender) SendEmail(_ context.Context, _, subject, _ string) error {
	s.logger.Debug().Str("subject", subject).Msg("email disabled, not sent")
	return ErrDisabled
}
