package email

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

const defaultSendTimeout = 30 * time.Second

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// Secure forces implicit TLS regardless of port.
	Secure bool
}

// SMTPMailer sends through an SMTP relay with go-mail. A client is dialed per message.
type SMTPMailer struct {
	cfg SMTPConfig
	log *zap.Logger
}

func NewSMTP(cfg SMTPConfig, log *zap.Logger) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, log: log.Named("email.smtp")}
}

func (m *SMTPMailer) Configured() bool { return true }

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	built, err := m.buildMessage(msg)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(m.cfg.Host, m.clientOptions()...)
	if err != nil {
		return fmt.Errorf("%w: create client: %w", ErrDeliveryFailed, err)
	}

	if err := client.DialAndSendWithContext(ctx, built); err != nil {
		m.log.Warn("smtp send failed",
			zap.String("host", m.cfg.Host),
			zap.Int("port", m.cfg.Port),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}

	m.log.Debug("smtp message sent",
		zap.Int("recipients", len(msg.To)),
		zap.Int("attachments", len(msg.Attachments)),
	)
	return nil
}

func (m *SMTPMailer) buildMessage(msg Message) (*mail.Msg, error) {
	if len(msg.To) == 0 {
		return nil, ErrNoRecipient
	}

	out := mail.NewMsg()
	from := msg.From
	if from == "" {
		from = m.cfg.From
	}
	if err := out.From(from); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if err := out.To(msg.To...); err != nil {
		return nil, fmt.Errorf("invalid to address: %w", err)
	}
	out.Subject(msg.Subject)
	out.SetBodyString(mail.TypeTextPlain, msg.Text)

	for key, value := range msg.Headers {
		out.SetGenHeader(mail.Header(key), value)
	}

	for _, att := range msg.Attachments {
		contentType := att.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		if err := out.AttachReader(att.Filename, bytes.NewReader(att.Content),
			mail.WithFileContentType(mail.ContentType(contentType))); err != nil {
			return nil, fmt.Errorf("attach %s: %w", att.Filename, err)
		}
	}
	return out, nil
}

func (m *SMTPMailer) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTimeout(defaultSendTimeout),
	}

	switch {
	case m.cfg.Secure || m.cfg.Port == 465:
		opts = append(opts, mail.WithSSL())
	case m.cfg.Port == 587:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	if m.cfg.Username != "" && m.cfg.Password != "" {
		opts = append(opts,
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
			mail.WithSMTPAuth(mail.SMTPAuthAutoDiscover),
		)
	}
	return opts
}
