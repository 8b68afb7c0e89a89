package mail

import (
	"context"
	"fmt"
	"time"

	gomail "github.com/wneessen/go-mail"
)

const implicitTLSPort = 465

// SMTPConfig configures SMTPSender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// SMTPSender sends mail through an SMTP relay. Port 465 uses implicit TLS; other ports
// upgrade with STARTTLS when the server offers it.
type SMTPSender struct {
	cfg SMTPConfig
}

// NewSMTPSender returns an SMTPSender. It does not dial until Send.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("mail: SMTP host is not set")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("mail: from address is not set")
	}
	if cfg.Port == 0 {
		cfg.Port = implicitTLSPort
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &SMTPSender{cfg: cfg}, nil
}

// Send builds the message and delivers it in a fresh SMTP session.
func (s *SMTPSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	m := gomail.NewMsg()
	if err := m.From(s.cfg.From); err != nil {
		return fmt.Errorf("mail: from address: %w", err)
	}
	if err := m.To(to); err != nil {
		return fmt.Errorf("%w: recipient %q: %v", ErrRejected, to, err)
	}
	m.Subject(subject)
	m.SetBodyString(gomail.TypeTextHTML, htmlBody)

	opts := []gomail.Option{
		gomail.WithPort(s.cfg.Port),
		gomail.WithTimeout(s.cfg.Timeout),
	}
	if s.cfg.Port == implicitTLSPort {
		opts = append(opts, gomail.WithSSL())
	} else {
		opts = append(opts, gomail.WithTLSPortPolicy(gomail.TLSOpportunistic))
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.cfg.Username),
			gomail.WithPassword(s.cfg.Password),
		)
	}
	c, err := gomail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("mail: client: %w", err)
	}
	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}
	return nil
}
